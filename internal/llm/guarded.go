package llm

import (
	"context"
	"errors"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/resilience"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// GuardedClient adds a per-call timeout, request spacing, bounded retries and
// a circuit breaker around a provider.
type GuardedClient struct {
	inner   LanguageModelClient
	retrier *resilience.Retrier
	breaker *resilience.CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
	logger  *logrus.Logger
}

// GuardOptions configures GuardedClient.
type GuardOptions struct {
	Timeout         time.Duration
	RequestInterval time.Duration
	Retry           resilience.RetryPolicy
	Breaker         *resilience.CircuitBreaker
}

func NewGuardedClient(inner LanguageModelClient, opts GuardOptions, logger *logrus.Logger) *GuardedClient {
	limit := rate.Inf
	if opts.RequestInterval > 0 {
		limit = rate.Every(opts.RequestInterval)
	}
	return &GuardedClient{
		inner:   inner,
		retrier: resilience.NewRetrier(opts.Retry, logger),
		breaker: opts.Breaker,
		limiter: rate.NewLimiter(limit, 1),
		timeout: opts.Timeout,
		logger:  logger,
	}
}

func (g *GuardedClient) Name() string { return g.inner.Name() }

func (g *GuardedClient) Generate(ctx context.Context, prompt string) (string, error) {
	var text string
	err := g.retrier.Do(ctx, "llm_generate", func(ctx context.Context) error {
		if err := g.limiter.Wait(ctx); err != nil {
			return resilience.Permanent(err)
		}

		call := func(ctx context.Context) error {
			callCtx := ctx
			if g.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, g.timeout)
				defer cancel()
			}
			out, err := g.inner.Generate(callCtx, prompt)
			if err != nil {
				return err
			}
			text = out
			return nil
		}

		if g.breaker != nil {
			err := g.breaker.Execute(ctx, call)
			if errors.Is(err, resilience.ErrCircuitOpen) {
				return resilience.Permanent(err)
			}
			return err
		}
		return call(ctx)
	})
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"provider": g.inner.Name(),
			"error":    err.Error(),
		}).Error("Language model call failed")
		return "", err
	}
	return text, nil
}
