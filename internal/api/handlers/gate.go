package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/gate"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
)

type Evaluator interface {
	Evaluate(ctx context.Context, req gate.Request, snapshot models.PortfolioSnapshot) models.Decision
}

type InstrumentSource interface {
	Load(ctx context.Context, symbol, ticker string) (models.Instrument, []string)
}

type PortfolioSource interface {
	Snapshot(ctx context.Context, now time.Time, lookback time.Duration) (models.PortfolioSnapshot, error)
}

type DecisionStore interface {
	Record(ctx context.Context, d models.Decision) error
	List(ctx context.Context, symbol string, limit int) ([]models.Decision, error)
}

type SessionSource interface {
	Mode(t time.Time) models.MarketMode
}

// GateHandler exposes the portfolio gate for manual proposals.
type GateHandler struct {
	gate        Evaluator
	instruments InstrumentSource
	portfolio   PortfolioSource
	decisions   DecisionStore
	session     SessionSource
	clock       clock.Clock
	lookback    time.Duration
}

func NewGateHandler(g Evaluator, instruments InstrumentSource, portfolio PortfolioSource, decisions DecisionStore, session SessionSource, clk clock.Clock) *GateHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &GateHandler{
		gate:        g,
		instruments: instruments,
		portfolio:   portfolio,
		decisions:   decisions,
		session:     session,
		clock:       clk,
		lookback:    7 * 24 * time.Hour,
	}
}

type EvaluateRequest struct {
	Symbol       string             `json:"symbol" binding:"required"`
	Action       models.TradeAction `json:"action" binding:"required,oneof=BUY SELL HOLD WATCH"`
	SignalID     *int64             `json:"signal_id"`
	IsCatalyst   bool               `json:"is_catalyst"`
	ImpactType   models.ImpactType  `json:"impact_type"`
	Confidence   int                `json:"confidence"`
	Entry        decimal.Decimal    `json:"entry"`
	Target       decimal.Decimal    `json:"target"`
	Stop         decimal.Decimal    `json:"stop"`
	Quantity     int64              `json:"quantity" binding:"min=0"`
	MinHoldHours int                `json:"min_hold_hours"`
	MaxHoldHours int                `json:"max_hold_hours"`
	// Record persists the decision in the audit table.
	Record bool `json:"record"`
}

type EvaluateResponse struct {
	Decision   models.Decision   `json:"decision"`
	Instrument models.Instrument `json:"instrument"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// Evaluate runs a proposed trade through the gate against the current portfolio.
func (h *GateHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	now := h.clock.Now()
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	snapshot, err := h.portfolio.Snapshot(ctx, now, h.lookback)
	if err != nil {
		respondError(c, err)
		return
	}
	instrument, warnings := h.instruments.Load(ctx, symbol, "")

	decision := h.gate.Evaluate(ctx, gate.Request{
		Symbol:       symbol,
		Action:       req.Action,
		SignalID:     req.SignalID,
		IsCatalyst:   req.IsCatalyst,
		ImpactType:   models.ParseImpactType(string(req.ImpactType)),
		Confidence:   req.Confidence,
		Entry:        req.Entry,
		Target:       req.Target,
		Stop:         req.Stop,
		Quantity:     req.Quantity,
		MinHoldHours: req.MinHoldHours,
		MaxHoldHours: req.MaxHoldHours,
		Instrument:   instrument,
		MarketMode:   h.session.Mode(now),
	}, snapshot)

	if req.Record {
		if err := h.decisions.Record(ctx, decision); err != nil {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, EvaluateResponse{Decision: decision, Instrument: instrument, Warnings: warnings})
}

// ListDecisions returns recent gate decisions, optionally for one symbol.
func (h *GateHandler) ListDecisions(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	decisions, err := h.decisions.List(c.Request.Context(), symbol, queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": decisions, "count": len(decisions)})
}
