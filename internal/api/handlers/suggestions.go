package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/suggestion"
)

type SuggestionWriter interface {
	Propose(ctx context.Context, s models.CatalystSuggestion) (suggestion.StoredSuggestion, error)
	Approve(ctx context.Context, id int64) error
	Reject(ctx context.Context, id int64) error
}

type SuggestionReader interface {
	Get(ctx context.Context, id int64) (*models.CatalystSuggestion, error)
	List(ctx context.Context, status models.SuggestionStatus, limit int) ([]models.CatalystSuggestion, error)
	Since(ctx context.Context, t time.Time) ([]models.CatalystSuggestion, error)
}

type TradeSource interface {
	Trades(ctx context.Context, since time.Time) ([]models.Trade, error)
}

type SuggestionHandler struct {
	store   SuggestionWriter
	reader  SuggestionReader
	trades  TradeSource
	matcher *suggestion.Matcher
	window  time.Duration
	clock   clock.Clock
}

func NewSuggestionHandler(store SuggestionWriter, reader SuggestionReader, trades TradeSource, policy suggestion.MatchPolicy, clk clock.Clock) *SuggestionHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &SuggestionHandler{
		store:   store,
		reader:  reader,
		trades:  trades,
		matcher: suggestion.NewMatcher(policy),
		window:  time.Duration(policy.WindowDays) * 24 * time.Hour,
		clock:   clk,
	}
}

// List filters by ?status= (default pending).
func (h *SuggestionHandler) List(c *gin.Context) {
	status := models.SuggestionStatus(c.DefaultQuery("status", string(models.SuggestionPending)))
	switch status {
	case models.SuggestionPending, models.SuggestionApproved, models.SuggestionRejected,
		models.SuggestionExpired, models.SuggestionSuperseded:
	default:
		badRequest(c, "unknown status "+strconv.Quote(string(status)))
		return
	}

	list, err := h.reader.List(c.Request.Context(), status, queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": list, "count": len(list)})
}

func (h *SuggestionHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s, err := h.reader.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Create stores a manually entered suggestion as pending.
func (h *SuggestionHandler) Create(c *gin.Context) {
	var s models.CatalystSuggestion
	if err := c.ShouldBindJSON(&s); err != nil {
		badRequest(c, err.Error())
		return
	}
	s.ID = 0
	s.ExitCondition = nil

	stored, err := h.store.Propose(c.Request.Context(), s)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (h *SuggestionHandler) Approve(c *gin.Context) {
	h.review(c, h.store.Approve, models.SuggestionApproved)
}

func (h *SuggestionHandler) Reject(c *gin.Context) {
	h.review(c, h.store.Reject, models.SuggestionRejected)
}

func (h *SuggestionHandler) review(c *gin.Context, fn func(context.Context, int64) error, status models.SuggestionStatus) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

// Matches links trades from the last ?days= (default 7) to the suggestions that preceded them.
func (h *SuggestionHandler) Matches(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		badRequest(c, "days must be a positive integer")
		return
	}

	ctx := c.Request.Context()
	since := h.clock.Now().AddDate(0, 0, -days)
	trades, err := h.trades.Trades(ctx, since)
	if err != nil {
		respondError(c, err)
		return
	}
	suggestions, err := h.reader.Since(ctx, since.Add(-h.window))
	if err != nil {
		respondError(c, err)
		return
	}

	matches := h.matcher.Match(trades, suggestions)
	c.JSON(http.StatusOK, gin.H{
		"matches":     matches,
		"trades":      len(trades),
		"suggestions": len(suggestions),
	})
}
