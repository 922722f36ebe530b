package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/catalyst-ai-go/internal/services"
)

type PositionRefresher interface {
	Refresh(ctx context.Context) ([]services.PositionStatus, error)
}

type PositionHandler struct {
	monitor PositionRefresher
}

func NewPositionHandler(monitor PositionRefresher) *PositionHandler {
	return &PositionHandler{monitor: monitor}
}

// Refresh ratchets trailing exits for approved BUYs and reports exit advice.
func (h *PositionHandler) Refresh(c *gin.Context) {
	statuses, err := h.monitor.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	exits := 0
	for _, s := range statuses {
		if s.Advice.Exit {
			exits++
		}
	}
	c.JSON(http.StatusOK, gin.H{"positions": statuses, "count": len(statuses), "exit_signals": exits})
}
