package api

import (
	"github.com/gin-gonic/gin"
	"github.com/irfndi/catalyst-ai-go/internal/api/handlers"
	"github.com/irfndi/catalyst-ai-go/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Handlers groups the HTTP handlers SetupRoutes registers. A nil handler
// leaves its routes unregistered.
type Handlers struct {
	Health       *handlers.HealthHandler
	Catalyst     *handlers.CatalystHandler
	Gate         *handlers.GateHandler
	Suggestions  *handlers.SuggestionHandler
	Signals      *handlers.SignalHandler
	Verification *handlers.VerificationHandler
	Positions    *handlers.PositionHandler
}

// RouteOptions carries the cross-cutting settings for the router.
type RouteOptions struct {
	ServiceName string
	AdminAPIKey string
	Logger      *logrus.Logger
}

// SetupRoutes configures all HTTP routes. Read endpoints are open; anything
// that writes state or spends LLM/price quota requires the admin key.
func SetupRoutes(router *gin.Engine, h Handlers, opts RouteOptions) {
	admin := middleware.NewAdminMiddleware(opts.AdminAPIKey)
	if opts.Logger != nil {
		router.Use(middleware.RequestLogger(opts.Logger))
	}

	if h.Health != nil {
		router.GET("/health", h.Health.HealthCheck)
		router.HEAD("/health", h.Health.HealthCheck)
		router.GET("/ready", h.Health.ReadinessCheck)
		router.GET("/live", h.Health.LivenessCheck)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TelemetryMiddleware(opts.ServiceName))
	protected := admin.RequireAdminAuth()

	if h.Catalyst != nil {
		catalyst := v1.Group("/catalyst")
		{
			catalyst.POST("/noise", h.Catalyst.CheckNoise)
			catalyst.POST("/process", protected, h.Catalyst.Process)
		}
	}

	if h.Gate != nil {
		g := v1.Group("/gate")
		{
			g.POST("/evaluate", protected, h.Gate.Evaluate)
			g.GET("/decisions", h.Gate.ListDecisions)
		}
	}

	if h.Suggestions != nil {
		suggestions := v1.Group("/suggestions")
		{
			suggestions.GET("", h.Suggestions.List)
			suggestions.GET("/matches", h.Suggestions.Matches)
			suggestions.GET("/:id", h.Suggestions.Get)
			suggestions.POST("", protected, h.Suggestions.Create)
			suggestions.POST("/:id/approve", protected, h.Suggestions.Approve)
			suggestions.POST("/:id/reject", protected, h.Suggestions.Reject)
		}
	}

	if h.Signals != nil {
		signals := v1.Group("/signals")
		{
			signals.GET("", h.Signals.List)
			signals.POST("/sweep", protected, h.Signals.Sweep)
			signals.POST("/:id/dismiss", protected, h.Signals.Dismiss)
			signals.POST("/:id/acted", protected, h.Signals.MarkActed)
		}
	}

	if h.Verification != nil {
		verification := v1.Group("/verification")
		{
			verification.GET("/report", h.Verification.Report)
			verification.POST("/run", protected, h.Verification.Run)
		}
	}

	if h.Positions != nil {
		v1.POST("/positions/refresh", protected, h.Positions.Refresh)
	}
}
