package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-essay-evaluator/internal/config"
	"github.com/noah-isme/gema-essay-evaluator/internal/handler"
	"github.com/noah-isme/gema-essay-evaluator/internal/middleware"
	"github.com/noah-isme/gema-essay-evaluator/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler *handler.EvaluationHandler
	PageHandler       *handler.PageHandler
	// RateLimit guards the evaluation routes; nil builds one from cfg.
	RateLimit fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	rateLimit := deps.RateLimit
	if rateLimit == nil {
		rateLimit = middleware.RateLimit("evaluate", cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if deps.EvaluationHandler != nil {
		deps.EvaluationHandler.Register(api, rateLimit)
	}

	if deps.PageHandler != nil {
		deps.PageHandler.Register(app, rateLimit)
	}
}
