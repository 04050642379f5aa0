package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-essay-evaluator/internal/dto"
	"github.com/noah-isme/gema-essay-evaluator/internal/feedback"
	"github.com/noah-isme/gema-essay-evaluator/internal/middleware"
	"github.com/noah-isme/gema-essay-evaluator/internal/observability"
	"github.com/noah-isme/gema-essay-evaluator/internal/prompt"
	"github.com/noah-isme/gema-essay-evaluator/internal/render"
	"github.com/noah-isme/gema-essay-evaluator/internal/rubric"
	"github.com/noah-isme/gema-essay-evaluator/pkg/ai"
)

var (
	// ErrMissingCredential indicates neither the request nor the configuration carries an API key.
	ErrMissingCredential = errors.New("api key is required")
	// ErrEmptyEssay indicates the essay is blank after trimming.
	ErrEmptyEssay = prompt.ErrEmptyEssay
	// ErrEmptyCustomTopic indicates the custom topic was selected but left blank.
	ErrEmptyCustomTopic = prompt.ErrEmptyCustomTopic
	// ErrUnknownRubric indicates the requested rubric id is not registered.
	ErrUnknownRubric = rubric.ErrUnknownRubric
	// ErrUnsupportedProvider indicates the requested provider has no invoker.
	ErrUnsupportedProvider = ai.ErrUnsupportedProvider
	// ErrProviderFailure wraps every failure reported by the model provider.
	ErrProviderFailure = errors.New("model provider request failed")
)

// Credential is a caller supplied API key. It never appears in logs or errors.
type Credential struct {
	APIKey string
}

// String hides the key from formatted output.
func (c Credential) String() string {
	if c.APIKey == "" {
		return ""
	}
	return "[redacted]"
}

// EvaluationConfig carries the process level defaults of the pipeline.
type EvaluationConfig struct {
	Provider       string
	Model          string
	BaseURL        string
	// Temperature is forwarded as is; nil leaves the provider default.
	Temperature    *float32
	MaxTokens      int
	Timeout        time.Duration
	MaxRetries     int
	ResponseFormat string
	Topics         []string
	// APIKeys maps a provider name to the credential used when a request carries none.
	APIKeys map[string]string
}

// EvaluationService runs the compile, invoke, parse and render pipeline.
type EvaluationService interface {
	Evaluate(ctx context.Context, req dto.EvaluationRequest, cred Credential) (dto.EvaluationResponse, error)
	Options() dto.OptionsResponse
}

type evaluationService struct {
	rubrics   *rubric.Registry
	factory   ai.Factory
	validator *validator.Validate
	cfg       EvaluationConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewEvaluationService constructs the evaluation pipeline. A nil factory uses ai.NewInvoker.
func NewEvaluationService(rubrics *rubric.Registry, factory ai.Factory, validate *validator.Validate, cfg EvaluationConfig, logger zerolog.Logger) EvaluationService {
	if factory == nil {
		factory = ai.NewInvoker
	}
	if validate == nil {
		validate = validator.New()
	}
	if rubrics == nil {
		rubrics = rubric.Builtin()
	}
	cfg.Provider = normalizeProvider(cfg.Provider)
	if cfg.Provider == "" {
		cfg.Provider = ai.ProviderOpenAI
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = prompt.DefaultTopics()
	}

	return &evaluationService{
		rubrics:   rubrics,
		factory:   factory,
		validator: validate,
		cfg:       cfg,
		logger:    logger.With().Str("component", "evaluation_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-essay-evaluator/internal/service/evaluation"),
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, req dto.EvaluationRequest, cred Credential) (dto.EvaluationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.evaluate")
	defer span.End()

	logger := s.logger
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		logger = logger.With().Str("correlation_id", correlation).Logger()
		span.SetAttributes(attribute.String("correlation_id", correlation))
	}

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.EvaluationResponse{}, err
	}

	provider := normalizeProvider(req.Provider)
	if provider == "" {
		provider = s.cfg.Provider
	}
	if provider != ai.ProviderOpenAI && provider != ai.ProviderGemini {
		span.SetStatus(codes.Error, "unsupported provider")
		return dto.EvaluationResponse{}, fmt.Errorf("%w: %q", ErrUnsupportedProvider, req.Provider)
	}

	apiKey := strings.TrimSpace(cred.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(s.cfg.APIKeys[provider])
	}
	if apiKey == "" {
		span.SetStatus(codes.Error, "missing credential")
		return dto.EvaluationResponse{}, ErrMissingCredential
	}

	if strings.TrimSpace(req.Essay) == "" {
		span.SetStatus(codes.Error, "empty essay")
		return dto.EvaluationResponse{}, ErrEmptyEssay
	}

	r, err := s.rubrics.Lookup(strings.TrimSpace(req.Rubric))
	if err != nil {
		span.SetStatus(codes.Error, "unknown rubric")
		return dto.EvaluationResponse{}, err
	}

	language := prompt.ParseLanguage(req.Language)
	compiled, err := prompt.NewCompiler(r, s.cfg.Topics).Compile(prompt.Request{
		Topic:       req.Topic,
		CustomTopic: req.CustomTopic,
		Essay:       req.Essay,
		Language:    language,
	})
	if err != nil {
		span.SetStatus(codes.Error, "compile failed")
		return dto.EvaluationResponse{}, err
	}

	model := strings.TrimSpace(req.Model)
	if model == "" && provider == s.cfg.Provider {
		model = s.cfg.Model
	}

	span.SetAttributes(
		attribute.String("rubric", r.ID),
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.Int("essay.runes", utf8.RuneCountInString(req.Essay)),
	)

	invoker, err := s.factory(ai.Config{
		Provider:       provider,
		APIKey:         apiKey,
		Model:          model,
		BaseURL:        s.cfg.BaseURL,
		Temperature:    s.cfg.Temperature,
		MaxTokens:      s.cfg.MaxTokens,
		Timeout:        s.cfg.Timeout,
		MaxRetries:     s.cfg.MaxRetries,
		ResponseFormat: s.cfg.ResponseFormat,
		Logger:         logger,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invoker setup failed")
		if errors.Is(err, ai.ErrMissingAPIKey) {
			return dto.EvaluationResponse{}, ErrMissingCredential
		}
		return dto.EvaluationResponse{}, err
	}

	completion, err := invoker.Complete(ctx, ai.Request{
		System:     compiled.System,
		User:       compiled.User,
		SchemaName: prompt.SchemaName,
		Schema:     prompt.OutputSchema(r),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		logger.Warn().Err(err).Str("provider", provider).Str("rubric", r.ID).Msg("model completion failed")
		return dto.EvaluationResponse{}, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}

	outcome := feedback.Parse(completion.Text)
	observability.Evaluations().WithLabelValues(r.ID, outcome.Step.String()).Inc()
	observability.EssayLength().WithLabelValues(r.ID).Observe(float64(utf8.RuneCountInString(req.Essay)))

	export, err := render.Export(outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		return dto.EvaluationResponse{}, fmt.Errorf("export evaluation: %w", err)
	}

	response := dto.EvaluationResponse{
		Topic:      compiled.Topic,
		Language:   string(language),
		Rubric:     r.ID,
		Step:       outcome.Step.String(),
		Completion: completion,
		Report:     render.BuildReport(r, outcome),
		Export:     export,
	}

	if outcome.Structured() {
		response.Status = dto.StatusStructured
		response.Result = outcome.Result
		response.Deviations = feedback.Deviations(r, outcome.Result)
		if len(response.Deviations) > 0 {
			logger.Debug().Strs("deviations", response.Deviations).Str("rubric", r.ID).Msg("model output deviates from rubric")
		}
	} else {
		response.Status = dto.StatusRawFallback
		response.Raw = outcome.Fallback.Raw
		response.Notice = render.FallbackNotice
		logger.Warn().Str("rubric", r.ID).Int("raw_length", len(outcome.Fallback.Raw)).Msg("model output could not be parsed")
	}

	span.SetAttributes(attribute.String("parse.step", response.Step))
	span.SetStatus(codes.Ok, response.Status)

	logger.Info().
		Str("topic", compiled.Topic).
		Str("rubric", r.ID).
		Str("language", string(language)).
		Str("provider", completion.Provider).
		Str("model", completion.Model).
		Int("essay_runes", utf8.RuneCountInString(req.Essay)).
		Int("attempts", completion.Attempts).
		Str("step", response.Step).
		Msg("essay evaluated")

	return response, nil
}

func (s *evaluationService) Options() dto.OptionsResponse {
	languages := make([]dto.LanguageOption, 0, len(prompt.Languages()))
	for _, lang := range prompt.Languages() {
		languages = append(languages, dto.LanguageOption{Value: string(lang), Label: lang.Label()})
	}

	defaultID := s.rubrics.Default().ID
	rubrics := make([]dto.RubricOption, 0)
	for _, r := range s.rubrics.List() {
		rubrics = append(rubrics, dto.RubricOption{
			ID:       r.ID,
			Title:    r.Title,
			ScaleMin: r.Scale.Min,
			ScaleMax: r.Scale.Max,
			Grades:   r.UsesGrades(),
			Default:  r.ID == defaultID,
		})
	}

	return dto.OptionsResponse{
		Topics:       append([]string(nil), s.cfg.Topics...),
		CustomTopic:  prompt.CustomTopic,
		Languages:    languages,
		Rubrics:      rubrics,
		Providers:    []string{ai.ProviderOpenAI, ai.ProviderGemini},
		Provider:     s.cfg.Provider,
		DefaultModel: s.cfg.Model,
	}
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
