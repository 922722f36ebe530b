package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/irfndi/catalyst-ai-go/internal/catalyst"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/services"
	"github.com/irfndi/catalyst-ai-go/internal/utils"
)

type Pipeline interface {
	Process(ctx context.Context, asset models.Asset, items []models.NewsItem) (*services.PipelineResult, error)
}

type CatalystHandler struct {
	pipeline Pipeline
	validate *validator.Validate
}

func NewCatalystHandler(pipeline Pipeline) *CatalystHandler {
	return &CatalystHandler{pipeline: pipeline, validate: validator.New()}
}

type NoiseRequest struct {
	Headlines []string `json:"headlines" binding:"required,min=1"`
}

type NoiseVerdict struct {
	Headline string `json:"headline"`
	Noise    bool   `json:"noise"`
	Rule     string `json:"rule,omitempty"`
}

// CheckNoise reports which headlines the noise filter would drop.
func (h *CatalystHandler) CheckNoise(c *gin.Context) {
	var req NoiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	verdicts := make([]NoiseVerdict, len(req.Headlines))
	for i, headline := range req.Headlines {
		rule, noisy := catalyst.MatchNoise(headline)
		verdicts[i] = NoiseVerdict{Headline: headline, Noise: noisy, Rule: rule}
	}
	c.JSON(http.StatusOK, gin.H{"results": verdicts})
}

// Process runs one asset's headlines through the full catalyst pipeline.
func (h *CatalystHandler) Process(c *gin.Context) {
	var batch services.AssetBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.validate.Struct(batch); err != nil {
		respondError(c, utils.FromValidator(err))
		return
	}

	res, err := h.pipeline.Process(c.Request.Context(), batch.Asset, batch.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
