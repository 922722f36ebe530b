package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/market"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrMissingBasePrice = errors.New("missing base price")
	ErrCheckpointExists = errors.New("checkpoint already recorded")
)

// Engine measures one checkpoint of one entry. It never writes; callers
// persist the result through the opportunity log.
type Engine struct {
	prices  market.PriceSource
	clock   clock.Clock
	bandPct float64
	logger  *logrus.Logger
}

func NewEngine(prices market.PriceSource, clk clock.Clock, bandPct float64, logger *logrus.Logger) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	if bandPct <= 0 {
		bandPct = DefaultNeutralBandPct
	}
	return &Engine{prices: prices, clock: clk, bandPct: bandPct, logger: logger}
}

// Verify prices the entry's global ticker and judges the move since the
// signal fired. The local ticker, when recorded, is reported alongside but
// does not affect the verdict.
func (e *Engine) Verify(ctx context.Context, entry *models.OpportunityLogEntry, cp models.CheckpointType) (models.Checkpoint, error) {
	ctx, span := telemetry.StartSpan(ctx, "verification.Verify",
		attribute.String("entry.id", entry.ID),
		attribute.String("checkpoint", string(cp)),
	)
	defer span.End()

	if entry.HasCheckpoint(cp) {
		return models.Checkpoint{}, ErrCheckpointExists
	}
	if entry.Market.GlobalTicker == "" || !entry.Market.GlobalBasePrice.IsPositive() {
		return models.Checkpoint{}, ErrMissingBasePrice
	}

	price, err := e.prices.CurrentPrice(ctx, entry.Market.GlobalTicker)
	if err != nil {
		telemetry.RecordError(span, err)
		return models.Checkpoint{}, fmt.Errorf("price for %s: %w", entry.Market.GlobalTicker, err)
	}

	now := e.clock.Now()
	change := PercentChange(entry.Market.GlobalBasePrice, price)
	result := models.Checkpoint{
		Type:           cp,
		CheckedAt:      now,
		MinutesElapsed: int(now.Sub(entry.Timestamp).Minutes()),
		Price:          price,
		ChangePct:      change,
		Verdict:        Judge(change, entry.Sentiment, e.bandPct),
	}

	if entry.Market.LocalTicker != "" && entry.Market.LocalBasePrice.IsPositive() {
		local, err := e.prices.CurrentPrice(ctx, entry.Market.LocalTicker)
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"component": "verification",
				"entry_id":  entry.ID,
				"ticker":    entry.Market.LocalTicker,
				"error":     err.Error(),
			}).Warn("Local price unavailable; verdict uses global ticker only")
		} else {
			localChange := PercentChange(entry.Market.LocalBasePrice, local)
			result.LocalPrice = &local
			result.LocalChangePct = &localChange
		}
	}

	span.SetAttributes(
		attribute.Float64("change_pct", change),
		attribute.String("verdict", string(result.Verdict)),
	)
	return result, nil
}
