package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/resilience"
	"github.com/irfndi/catalyst-ai-go/internal/telemetry"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// GuardedSource spaces requests, bounds each call with a timeout and retries
// transient failures. A not-found answer is final.
type GuardedSource struct {
	inner   PriceSource
	retrier *resilience.Retrier
	limiter *rate.Limiter
	timeout time.Duration
}

func NewGuardedSource(inner PriceSource, policy resilience.RetryPolicy, interval, timeout time.Duration, logger *logrus.Logger) *GuardedSource {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &GuardedSource{
		inner:   inner,
		retrier: resilience.NewRetrier(policy, logger),
		limiter: rate.NewLimiter(limit, 1),
		timeout: timeout,
	}
}

func (g *GuardedSource) Name() string { return g.inner.Name() }

func (g *GuardedSource) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	ctx, span := telemetry.StartSpan(ctx, "market.CurrentPrice", attribute.String("ticker", ticker))
	defer span.End()

	var price decimal.Decimal
	err := g.do(ctx, "price_"+ticker, func(ctx context.Context) error {
		p, err := g.inner.CurrentPrice(ctx, ticker)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	if err != nil && !errors.Is(err, ErrPriceNotFound) {
		telemetry.RecordError(span, err)
	}
	return price, err
}

func (g *GuardedSource) DailyBars(ctx context.Context, ticker string, days int) ([]models.Bar, error) {
	bs, ok := g.inner.(BarSource)
	if !ok {
		return nil, fmt.Errorf("%s serves no bars: %w", g.inner.Name(), ErrPriceNotFound)
	}

	var bars []models.Bar
	err := g.do(ctx, "bars_"+ticker, func(ctx context.Context) error {
		b, err := bs.DailyBars(ctx, ticker, days)
		if err != nil {
			return err
		}
		bars = b
		return nil
	})
	return bars, err
}

func (g *GuardedSource) do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return g.retrier.Do(ctx, name, func(ctx context.Context) error {
		if err := g.limiter.Wait(ctx); err != nil {
			return resilience.Permanent(err)
		}
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		err := fn(callCtx)
		if errors.Is(err, ErrPriceNotFound) {
			return resilience.Permanent(err)
		}
		return err
	})
}
