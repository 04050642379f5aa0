package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-essay-evaluator/internal/config"
	"github.com/noah-isme/gema-essay-evaluator/internal/handler"
	"github.com/noah-isme/gema-essay-evaluator/internal/middleware"
	"github.com/noah-isme/gema-essay-evaluator/internal/render"
	"github.com/noah-isme/gema-essay-evaluator/internal/router"
	"github.com/noah-isme/gema-essay-evaluator/internal/rubric"
	"github.com/noah-isme/gema-essay-evaluator/internal/service"
	"github.com/noah-isme/gema-essay-evaluator/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	rubrics, err := rubric.Load(cfg.RubricVariant, cfg.RubricFile)
	if err != nil {
		log.Fatalf("failed to load rubrics: %v", err)
	}

	pages, err := render.NewPages()
	if err != nil {
		log.Fatalf("failed to parse page templates: %v", err)
	}

	if cfg.DefaultAPIKey(cfg.AIProvider) == "" {
		logger.Warn().Str("provider", cfg.AIProvider).Msg("no default api key configured, requests must supply one")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	evaluationService := service.NewEvaluationService(rubrics, ai.NewInvoker, validate, service.EvaluationConfig{
		Provider:       cfg.AIProvider,
		Model:          cfg.AIModel,
		BaseURL:        cfg.AIBaseURL,
		Temperature:    ai.Float32(cfg.AITemperature),
		MaxTokens:      cfg.AIMaxTokens,
		Timeout:        cfg.AITimeout,
		MaxRetries:     cfg.AIMaxRetries,
		ResponseFormat: cfg.AIResponseFormat,
		Topics:         cfg.Topics,
		APIKeys: map[string]string{
			ai.ProviderOpenAI: cfg.OpenAIAPIKey,
			ai.ProviderGemini: cfg.GeminiAPIKey,
		},
	}, logger)

	evaluationHandler := handler.NewEvaluationHandler(evaluationService, logger)
	pageHandler := handler.NewPageHandler(evaluationService, pages, int64(cfg.MaxUploadBytes), logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    cfg.MaxUploadBytes + 64*1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.AITimeout*time.Duration(cfg.AIMaxRetries+1) + 30*time.Second,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler: evaluationHandler,
		PageHandler:       pageHandler,
	})

	logger.Info().
		Str("address", cfg.HTTPAddress()).
		Str("provider", cfg.AIProvider).
		Str("model", cfg.AIModel).
		Str("rubric", rubrics.Default().ID).
		Msg("starting essay evaluator")

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
