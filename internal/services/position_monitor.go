package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/database"
	"github.com/irfndi/catalyst-ai-go/internal/gate"
	"github.com/irfndi/catalyst-ai-go/internal/market"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type PositionStore interface {
	OpenPositions(ctx context.Context) ([]models.CatalystSuggestion, error)
	UpdateExitCondition(ctx context.Context, id int64, ec *models.ExitCondition) error
}

type PriceRecorder interface {
	UpdateCurrentPrice(ctx context.Context, symbol string, price decimal.Decimal) error
}

// PositionStatus is the trailing-stop state of one approved BUY after a refresh.
type PositionStatus struct {
	SuggestionID int64                `json:"suggestion_id"`
	Symbol       string               `json:"symbol"`
	Price        decimal.Decimal      `json:"price"`
	Exit         models.ExitCondition `json:"exit_condition"`
	Advice       gate.ExitAdvice      `json:"advice"`
	Error        string               `json:"error,omitempty"`
}

// PositionMonitor walks approved BUY suggestions, advances their phased
// trailing stops from fresh daily bars and reports which should be exited.
type PositionMonitor struct {
	positions PositionStore
	holdings  PriceRecorder
	bars      market.BarSource
	policy    gate.Policy
	suffix    string
	barDays   int
	clock     clock.Clock
	logger    *logrus.Logger
}

func NewPositionMonitor(positions PositionStore, holdings PriceRecorder, bars market.BarSource, policy gate.Policy, localSuffix string, clk clock.Clock, logger *logrus.Logger) *PositionMonitor {
	if clk == nil {
		clk = clock.Real{}
	}
	return &PositionMonitor{
		positions: positions,
		holdings:  holdings,
		bars:      bars,
		policy:    policy,
		suffix:    localSuffix,
		barDays:   60,
		clock:     clk,
		logger:    logger,
	}
}

// Refresh returns one status per open position. A position whose bars
// cannot be fetched is reported with Error set and left unchanged.
func (m *PositionMonitor) Refresh(ctx context.Context) ([]PositionStatus, error) {
	open, err := m.positions.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load open positions: %w", err)
	}

	now := m.clock.Now()
	statuses := make([]PositionStatus, 0, len(open))
	for i := range open {
		if ctx.Err() != nil {
			break
		}
		statuses = append(statuses, m.refreshOne(ctx, &open[i], now))
	}

	exits := 0
	for _, s := range statuses {
		if s.Advice.Exit {
			exits++
		}
	}
	m.logger.WithFields(logrus.Fields{
		"component": "position_monitor",
		"positions": len(statuses),
		"exits":     exits,
	}).Info("Positions refreshed")
	return statuses, nil
}

func (m *PositionMonitor) refreshOne(ctx context.Context, s *models.CatalystSuggestion, now time.Time) PositionStatus {
	status := PositionStatus{SuggestionID: s.ID, Symbol: s.Symbol}
	log := m.logger.WithFields(logrus.Fields{
		"component":     "position_monitor",
		"suggestion_id": s.ID,
		"symbol":        s.Symbol,
	})

	bars, err := m.bars.DailyBars(ctx, market.LocalTicker(s.Symbol, m.suffix), m.barDays)
	if err != nil || len(bars) == 0 {
		if err == nil {
			err = market.ErrPriceNotFound
		}
		log.WithError(err).Warn("Bars unavailable, trailing stop not advanced")
		status.Error = err.Error()
		if s.ExitCondition != nil {
			status.Exit = *s.ExitCondition
		}
		return status
	}

	ind := m.policy.ComputeIndicators(bars)
	view := ind.View(decimal.Zero)
	view.AsOf = now
	status.Price = view.Price

	ec := s.ExitCondition
	if ec == nil {
		ec = m.policy.InitialExit(s.EntryPrice, s.StopLoss, ind.ATR, now)
	}
	next := m.policy.AdvanceExit(*ec, s.EntryPrice, view)
	status.Exit = next

	if err := m.positions.UpdateExitCondition(ctx, s.ID, &next); err != nil {
		log.WithError(err).Warn("Exit condition not saved")
		status.Error = err.Error()
	}
	if err := m.holdings.UpdateCurrentPrice(ctx, s.Symbol, view.Price); err != nil && !errors.Is(err, database.ErrNotFound) {
		log.WithError(err).Warn("Holding price not updated")
	}

	openedAt := s.CreatedAt
	if s.ReviewedAt != nil {
		openedAt = *s.ReviewedAt
	}
	status.Advice = m.policy.ShouldExit(next, view.Price, openedAt, now, s.MaxHoldHours)
	if status.Advice.Exit {
		log.WithField("reason", status.Advice.Reason).Info("Exit advised")
	}
	return status
}
