package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiInvoker implements Invoker against the Gemini generateContent API.
type GeminiInvoker struct {
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiInvoker builds an invoker bound to the credential in cfg.
func NewGeminiInvoker(cfg Config) (*GeminiInvoker, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	cfg = cfg.withDefaults(defaultGeminiModel)

	return &GeminiInvoker{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-essay-evaluator/pkg/ai/gemini"),
		logger: cfg.Logger.With().Str("component", "gemini_invoker").Str("model", cfg.Model).Logger(),
	}, nil
}

// Complete sends the system instruction and user text and joins the first candidate's text parts.
func (e *GeminiInvoker) Complete(parent context.Context, req Request) (Completion, error) {
	ctx, span := e.tracer.Start(parent, "gemini.complete", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
	))
	defer span.End()

	completion, err := invoke(ctx, ProviderGemini, e.cfg, e.logger, func(ctx context.Context) (Completion, error) {
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

func (e *GeminiInvoker) attempt(ctx context.Context, req Request) (Completion, error) {
	opts := []option.ClientOption{
		option.WithAPIKey(e.cfg.APIKey),
		option.WithHTTPClient(&http.Client{Transport: &geminiTransport{
			base:   http.DefaultTransport,
			apiKey: e.cfg.APIKey,
		}}),
	}
	if e.cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(e.cfg.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return Completion{}, classifyGeminiError(err)
	}
	defer client.Close()

	model := client.GenerativeModel(e.cfg.Model)
	temperature := *e.cfg.Temperature
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: &temperature,
	}
	if e.cfg.ResponseFormat != FormatText {
		model.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if e.cfg.MaxTokens > 0 {
		maxTokens := int32(e.cfg.MaxTokens)
		model.GenerationConfig.MaxOutputTokens = &maxTokens
	}
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.System)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return Completion{}, classifyGeminiError(err)
	}

	text := firstText(resp)
	if strings.TrimSpace(text) == "" {
		return Completion{}, ErrEmptyCompletion
	}

	completion := Completion{
		Text:     text,
		Provider: ProviderGemini,
		Model:    e.cfg.Model,
	}
	if resp.UsageMetadata != nil {
		completion.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		completion.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return completion, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		b := strings.Builder{}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

// geminiTransport authenticates REST calls and returns transient HTTP statuses as
// errors, so the SDK never retries them and each attempt sends one request.
type geminiTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *geminiTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("x-goog-api-key", t.apiKey)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if !errors.Is(statusError(resp.StatusCode), ErrTransient) {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	_ = resp.Body.Close()
	return nil, &responseStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
}

type responseStatusError struct {
	status int
	body   string
}

func (e *responseStatusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("gemini: http status %d", e.status)
	}
	return fmt.Sprintf("gemini: http status %d: %s", e.status, e.body)
}

func (e *responseStatusError) HTTPCode() int {
	return e.status
}

type httpCoder interface {
	HTTPCode() int
}

func classifyGeminiError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return classifyStatus(gErr.Code, err)
	}

	var coded httpCoder
	if errors.As(err, &coded) {
		return classifyStatus(coded.HTTPCode(), err)
	}

	if isTransportError(err) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}
