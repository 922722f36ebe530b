package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/catalyst-ai-go/internal/api"
	"github.com/irfndi/catalyst-ai-go/internal/api/handlers"
	"github.com/irfndi/catalyst-ai-go/internal/app"
	"github.com/irfndi/catalyst-ai-go/internal/config"
	"github.com/irfndi/catalyst-ai-go/internal/logging"
	"github.com/irfndi/catalyst-ai-go/internal/middleware"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// sweepInterval is how often pending signals are activated and stale ones expired.
const sweepInterval = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := app.Observability(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTelemetry(flushCtx)
	}()

	a, err := app.New(ctx, cfg, logger, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Lifecycle.Start(ctx, sweepInterval)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(cfg, routeHandlers(a), logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"service": cfg.Telemetry.ServiceName,
			"version": cfg.Telemetry.ServiceVersion,
			"port":    cfg.Server.Port,
			"event":   "startup",
		}).Info("Application startup")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.WithField("event", "shutdown").Info("Application shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}

func routeHandlers(a *app.App) api.Handlers {
	var redis handlers.HealthChecker
	if a.Redis != nil {
		redis = a.Redis
	}
	return api.Handlers{
		Health:       handlers.NewHealthHandler(a.DB, redis),
		Catalyst:     handlers.NewCatalystHandler(a.Pipeline),
		Gate:         handlers.NewGateHandler(a.Gate, a.Instruments, a.Portfolio, a.Decisions, a.Calendar, a.Clock),
		Suggestions:  handlers.NewSuggestionHandler(a.Store, a.Suggestions, a.Portfolio, a.MatchPolicy, a.Clock),
		Signals:      handlers.NewSignalHandler(a.Signals, a.Lifecycle),
		Verification: handlers.NewVerificationHandler(a.Runner, a.Config.Market.Currency),
		Positions:    handlers.NewPositionHandler(a.Monitor),
	}
}

func newRouter(cfg *config.Config, h api.Handlers, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	api.SetupRoutes(router, h, api.RouteOptions{
		ServiceName: cfg.Telemetry.ServiceName,
		AdminAPIKey: cfg.Server.AdminAPIKey,
		Logger:      logger,
	})
	return router
}
