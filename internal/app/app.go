// Package app wires configuration into the services shared by the HTTP server
// and the catalyst CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/cache"
	"github.com/irfndi/catalyst-ai-go/internal/catalyst"
	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/config"
	"github.com/irfndi/catalyst-ai-go/internal/database"
	"github.com/irfndi/catalyst-ai-go/internal/gate"
	"github.com/irfndi/catalyst-ai-go/internal/llm"
	"github.com/irfndi/catalyst-ai-go/internal/logging"
	"github.com/irfndi/catalyst-ai-go/internal/market"
	"github.com/irfndi/catalyst-ai-go/internal/notification"
	"github.com/irfndi/catalyst-ai-go/internal/resilience"
	"github.com/irfndi/catalyst-ai-go/internal/services"
	"github.com/irfndi/catalyst-ai-go/internal/suggestion"
	"github.com/irfndi/catalyst-ai-go/internal/telemetry"
	"github.com/irfndi/catalyst-ai-go/internal/verification"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Observability installs tracing and, when enabled, OTLP log export. The
// returned function flushes both.
func Observability(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (func(context.Context), error) {
	provider, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	var hook *logging.OTLPHook
	if cfg.Telemetry.Enabled && cfg.Telemetry.OTLPLogs {
		hook, err = logging.NewOTLPHook(ctx, logging.OTLPConfig{
			Endpoint:       cfg.Telemetry.OTLPEndpoint,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Environment,
		})
		if err != nil {
			logger.WithError(err).Warn("OTLP log export disabled")
		} else {
			logger.AddHook(hook)
		}
	}

	return func(ctx context.Context) {
		if hook != nil {
			if err := hook.Shutdown(ctx); err != nil {
				logger.WithError(err).Warn("Failed to flush OTLP logs")
			}
		}
		if err := provider.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("Failed to shutdown telemetry")
		}
	}, nil
}

// PriceSources builds Yahoo then Google Finance, each rate limited and
// retried, behind a ticker blacklist and, when a client is given, a Redis
// quote cache.
func PriceSources(cfg config.PricesConfig, rdb *redis.Client, clk clock.Clock, logger *logrus.Logger) (market.PriceSource, market.BarSource) {
	retry := resilience.RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  cfg.InitialBackoff,
		MaxDelay:      10 * cfg.InitialBackoff,
		BackoffFactor: 2,
		JitterEnabled: true,
	}
	guard := func(src market.PriceSource) market.PriceSource {
		return market.NewGuardedSource(src, retry, cfg.RequestInterval, cfg.Timeout, logger)
	}

	chain := market.NewChainSource(logger,
		guard(market.NewYahooClient(cfg.YahooBaseURL, cfg.Timeout)),
		guard(market.NewGoogleFinanceClient(cfg.GoogleFinanceBaseURL, cfg.Timeout)),
	)

	var list cache.TickerBlacklist = cache.NewInMemoryTickerBlacklist(clk)
	if rdb != nil {
		list = cache.NewRedisTickerBlacklist(rdb, clk, logger)
	}
	var source market.PriceSource = chain
	if cfg.BlacklistTTL > 0 {
		source = cache.NewBlacklistedSource(chain, list, cfg.BlacklistTTL)
	}
	bars := source.(market.BarSource)

	if rdb == nil || cfg.CacheTTL <= 0 {
		return source, bars
	}
	return cache.NewRedisPriceCache(rdb, source, cfg.CacheTTL, clk, logger), bars
}

// LanguageModel builds the configured provider behind a timeout, request
// spacing, retries and a circuit breaker.
func LanguageModel(ctx context.Context, cfg config.LLMConfig, clk clock.Clock, logger *logrus.Logger) (llm.LanguageModelClient, error) {
	client, err := llm.NewFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	breaker := resilience.NewCircuitBreaker("llm_"+client.Name(), resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
	}, clk, logger)

	return llm.NewGuardedClient(client, llm.GuardOptions{
		Timeout:         cfg.Timeout,
		RequestInterval: cfg.RequestInterval,
		Retry: resilience.RetryPolicy{
			MaxRetries:    cfg.MaxRetries,
			InitialDelay:  cfg.InitialBackoff,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 2,
			JitterEnabled: true,
		},
		Breaker: breaker,
	}, logger), nil
}

// VerificationRunner needs only prices and the opportunity log, so the
// verify command runs without a database.
func VerificationRunner(cfg *config.Config, oplog *verification.OpportunityLog, prices market.PriceSource, notifier notification.Notifier, clk clock.Clock, out io.Writer, logger *logrus.Logger) *services.VerificationRunner {
	engine := verification.NewEngine(prices, clk, cfg.Verification.NeutralBandPct, logger)
	return services.NewVerificationRunner(oplog, engine, verification.DefaultSchedule(), notifier, clk,
		cfg.Verification.NotifyPassSummary, out, logger)
}

// App holds every service backed by Postgres.
type App struct {
	Config *config.Config
	Logger *logrus.Logger
	Clock  clock.Clock

	DB    *database.PostgresDB
	Redis *database.RedisClient

	Policy      gate.Policy
	MatchPolicy suggestion.MatchPolicy
	Calendar    *market.Calendar
	Notifier    notification.Notifier
	Log         *verification.OpportunityLog
	Prices      market.PriceSource
	Bars        market.BarSource

	Signals     *database.SignalRepository
	Suggestions *database.SuggestionRepository
	Portfolio   *database.PortfolioRepository
	Decisions   *database.DecisionRepository
	Store       *suggestion.Store
	Gate        *gate.Gate
	Instruments *services.InstrumentLoader
	Pipeline    *services.CatalystPipeline
	Lifecycle   *services.SignalLifecycle
	Monitor     *services.PositionMonitor
	Runner      *services.VerificationRunner
}

// New connects to Postgres (migrating the schema) and, optionally, Redis, and
// builds the services. Redis being unreachable only disables the price cache.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger, out io.Writer) (*App, error) {
	clk := clock.Real{}

	db, err := database.NewPostgresConnection(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db.Pool); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	pool := database.NewTracedPool(db.Pool)

	a := &App{Config: cfg, Logger: logger, Clock: clk, DB: db}

	var rdb *redis.Client
	if rc, err := database.NewRedisConnection(ctx, cfg.Redis); err != nil {
		logger.WithError(err).Warn("Redis unavailable, price cache disabled")
	} else {
		a.Redis = rc
		rdb = rc.Client
	}

	a.Calendar, err = market.NewCalendar(cfg.Market)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Notifier, err = notification.New(cfg.Telegram, cfg.Market.Currency, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	model, err := LanguageModel(ctx, cfg.LLM, clk, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Policy = gate.PolicyFromConfig(cfg.Gate, cfg.Market)
	a.MatchPolicy = suggestion.MatchPolicyFromConfig(cfg.Verification)
	a.Prices, a.Bars = PriceSources(cfg.Prices, rdb, clk, logger)
	a.Log = verification.NewOpportunityLog(cfg.Verification.LogPath)

	a.Signals = database.NewSignalRepository(pool)
	a.Suggestions = database.NewSuggestionRepository(pool)
	a.Portfolio = database.NewPortfolioRepository(pool)
	a.Decisions = database.NewDecisionRepository(pool)
	a.Store = suggestion.NewStore(a.Suggestions, a.Signals, clk, logger)
	a.Gate = gate.New(a.Policy, clk, logger)

	pipelineCfg := services.PipelineConfig{
		LocalSuffix:         cfg.Market.LocalSuffix,
		DefaultGlobalTicker: cfg.Market.GlobalTicker,
	}
	a.Pipeline = services.NewCatalystPipeline(services.PipelineDeps{
		Classifier:  catalyst.NewClassifier(model, logger),
		Proposer:    catalyst.NewProposer(model, services.PolicySummary(a.Policy), logger),
		Gate:        a.Gate,
		Signals:     a.Signals,
		Portfolio:   a.Portfolio,
		Decisions:   a.Decisions,
		Suggestions: a.Store,
		Opportunity: a.Log,
		Prices:      a.Prices,
		Bars:        a.Bars,
		Session:     a.Calendar,
		Notifier:    a.Notifier,
		Clock:       clk,
		Logger:      logger,
	}, pipelineCfg)
	a.Instruments = services.NewInstrumentLoader(a.Prices, a.Bars, a.Policy, cfg.Market.LocalSuffix, 0)

	a.Lifecycle = services.NewSignalLifecycle(a.Signals, a.Store, a.Calendar,
		time.Duration(cfg.Gate.SignalMaxAgeHours)*time.Hour,
		time.Duration(cfg.Gate.SuggestionReviewHours)*time.Hour,
		clk, logger)
	a.Monitor = services.NewPositionMonitor(a.Suggestions, a.Portfolio, a.Bars, a.Policy, cfg.Market.LocalSuffix, clk, logger)
	a.Runner = VerificationRunner(cfg, a.Log, a.Prices, a.Notifier, clk, out, logger)

	return a, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
