package market

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ChainSource asks each source in order and returns the first price found.
// It reports ErrPriceNotFound only when every source says so.
type ChainSource struct {
	sources []PriceSource
	logger  *logrus.Logger
}

func NewChainSource(logger *logrus.Logger, sources ...PriceSource) *ChainSource {
	return &ChainSource{sources: sources, logger: logger}
}

func (c *ChainSource) Name() string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *ChainSource) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	var errs []error
	allNotFound := true

	for _, src := range c.sources {
		price, err := src.CurrentPrice(ctx, ticker)
		if err == nil {
			return price, nil
		}
		if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
		if !errors.Is(err, ErrPriceNotFound) {
			allNotFound = false
		}
		errs = append(errs, fmt.Errorf("%s: %v", src.Name(), err))
		c.logger.WithFields(logrus.Fields{
			"component": "price_chain",
			"source":    src.Name(),
			"ticker":    ticker,
		}).WithError(err).Debug("Price source failed, trying next")
	}

	if allNotFound {
		return decimal.Zero, fmt.Errorf("%s: %w", ticker, ErrPriceNotFound)
	}
	// Source errors are flattened so a partial miss never reads as ErrPriceNotFound.
	return decimal.Zero, errors.Join(errs...)
}

// DailyBars delegates to the first source that serves bars.
func (c *ChainSource) DailyBars(ctx context.Context, ticker string, days int) ([]models.Bar, error) {
	for _, src := range c.sources {
		if bs, ok := src.(BarSource); ok {
			return bs.DailyBars(ctx, ticker, days)
		}
	}
	return nil, fmt.Errorf("no bar source configured: %w", ErrPriceNotFound)
}
