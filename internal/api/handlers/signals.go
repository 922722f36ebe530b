package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/services"
)

type SignalLister interface {
	List(ctx context.Context, status models.SignalStatus, limit int) ([]models.CatalystSignal, error)
}

type SignalLifecycle interface {
	Dismiss(ctx context.Context, id int64) (*models.CatalystSignal, error)
	MarkActed(ctx context.Context, id int64) (*models.CatalystSignal, error)
	Sweep(ctx context.Context) (services.SweepResult, error)
}

type SignalHandler struct {
	signals   SignalLister
	lifecycle SignalLifecycle
}

func NewSignalHandler(signals SignalLister, lifecycle SignalLifecycle) *SignalHandler {
	return &SignalHandler{signals: signals, lifecycle: lifecycle}
}

// List returns signals in ?status= (default active).
func (h *SignalHandler) List(c *gin.Context) {
	status := models.SignalStatus(c.DefaultQuery("status", string(models.SignalActive)))
	switch status {
	case models.SignalActive, models.SignalPendingMarketOpen, models.SignalActed,
		models.SignalExpired, models.SignalDismissed:
	default:
		badRequest(c, "unknown status "+string(status))
		return
	}

	signals, err := h.signals.List(c.Request.Context(), status, queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

func (h *SignalHandler) Dismiss(c *gin.Context) {
	h.transition(c, h.lifecycle.Dismiss)
}

func (h *SignalHandler) MarkActed(c *gin.Context) {
	h.transition(c, h.lifecycle.MarkActed)
}

func (h *SignalHandler) transition(c *gin.Context, fn func(context.Context, int64) (*models.CatalystSignal, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	signal, err := fn(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, signal)
}

// Sweep activates pending signals and expires stale signals and suggestions.
func (h *SignalHandler) Sweep(c *gin.Context) {
	res, err := h.lifecycle.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
