package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIInvoker implements Invoker against the OpenAI chat completion API.
type OpenAIInvoker struct {
	client *openai.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIInvoker builds an invoker bound to the credential in cfg.
func NewOpenAIInvoker(cfg Config) (*OpenAIInvoker, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	cfg = cfg.withDefaults(defaultOpenAIModel)

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIInvoker{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-essay-evaluator/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_invoker").Str("model", cfg.Model).Logger(),
	}, nil
}

// Complete sends the system and user messages and returns the first choice's text.
func (e *OpenAIInvoker) Complete(parent context.Context, req Request) (Completion, error) {
	ctx, span := e.tracer.Start(parent, "openai.complete", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
		attribute.String("response_format", e.cfg.ResponseFormat),
	))
	defer span.End()

	completion, err := invoke(ctx, ProviderOpenAI, e.cfg, e.logger, func(ctx context.Context) (Completion, error) {
		return e.attempt(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, err
	}

	span.SetAttributes(attribute.Int("attempts", completion.Attempts))
	return completion, nil
}

func (e *OpenAIInvoker) attempt(ctx context.Context, req Request) (Completion, error) {
	request := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: wireTemperature(*e.cfg.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.User,
			},
		},
		ResponseFormat: e.responseFormat(req),
	}

	resp, err := e.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return Completion{}, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return Completion{}, ErrEmptyCompletion
	}

	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return Completion{}, ErrEmptyCompletion
	}

	model := resp.Model
	if model == "" {
		model = e.cfg.Model
	}

	return Completion{
		Text:             text,
		Provider:         ProviderOpenAI,
		Model:            model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (e *OpenAIInvoker) responseFormat(req Request) *openai.ChatCompletionResponseFormat {
	switch e.cfg.ResponseFormat {
	case FormatText:
		return nil
	case FormatJSONSchema:
		if req.Schema != nil {
			name := req.SchemaName
			if name == "" {
				name = "response"
			}
			return &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   name,
					Schema: req.Schema,
					Strict: false,
				},
			}
		}
	}
	return &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}

	if isTransportError(err) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

// wireTemperature keeps an explicit zero from being dropped by the omitempty request field.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
