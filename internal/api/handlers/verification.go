package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/services"
	"github.com/irfndi/catalyst-ai-go/internal/verification"
)

type VerificationService interface {
	Run(ctx context.Context, opts services.RunOptions) (models.VerificationRunSummary, error)
	Report() (models.CatalystVerificationMetrics, []models.OpportunityLogEntry, error)
}

type VerificationHandler struct {
	runner   VerificationService
	currency string
}

func NewVerificationHandler(runner VerificationService, currency string) *VerificationHandler {
	return &VerificationHandler{runner: runner, currency: currency}
}

type RunRequest struct {
	// Checkpoint accepts 1hr, session or 24hr. Empty means auto-detect.
	Checkpoint   string `json:"checkpoint"`
	MinAgeMins   int    `json:"min_age_minutes" binding:"min=0"`
	DryRun       bool   `json:"dry_run"`
	DelaySeconds int    `json:"delay_seconds" binding:"min=0,max=60"`
}

// Run performs one verification pass over the opportunity log.
func (h *VerificationHandler) Run(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	opts := services.RunOptions{
		MinAge: time.Duration(req.MinAgeMins) * time.Minute,
		DryRun: req.DryRun,
		Delay:  time.Duration(req.DelaySeconds) * time.Second,
	}
	if req.Checkpoint != "" {
		cp, err := models.ParseCheckpointFlag(req.Checkpoint)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		opts.Checkpoint = cp
	}

	summary, err := h.runner.Run(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Report returns accuracy metrics as JSON, or as markdown with ?format=markdown.
func (h *VerificationHandler) Report(c *gin.Context) {
	metrics, entries, err := h.runner.Report()
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "markdown" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8",
			[]byte(verification.RenderMarkdown(metrics, entries, h.currency, 10)))
		return
	}
	c.JSON(http.StatusOK, metrics)
}
