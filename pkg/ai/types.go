package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Supported providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Response formats understood by the invokers.
const (
	FormatJSONObject = "json_object"
	FormatJSONSchema = "json_schema"
	FormatText       = "text"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultGeminiModel = "gemini-1.5-flash"
	defaultTemperature = 0.2
	defaultTimeout     = 60 * time.Second
	defaultRetryDelay  = 500 * time.Millisecond
)

// Float32 returns a pointer to v, for optional Config fields.
func Float32(v float32) *float32 {
	return &v
}

var (
	// ErrMissingAPIKey is returned when no credential was supplied.
	ErrMissingAPIKey = errors.New("api key is required")
	// ErrUnsupportedProvider is returned for an unknown provider name.
	ErrUnsupportedProvider = errors.New("unsupported ai provider")
	// ErrUnauthorized marks credential rejections. Never retried.
	ErrUnauthorized = errors.New("provider rejected the credential")
	// ErrQuotaExceeded marks rate-limit and quota rejections. Never retried.
	ErrQuotaExceeded = errors.New("provider quota or rate limit exceeded")
	// ErrTransient marks network failures, attempt timeouts and 5xx responses.
	ErrTransient = errors.New("transient provider failure")
	// ErrEmptyCompletion is returned when the provider answered without any text.
	ErrEmptyCompletion = errors.New("provider returned no completion text")
)

// Request is a single chat-style completion request.
type Request struct {
	System string
	User   string

	// Schema and SchemaName are sent when the json_schema format is configured.
	SchemaName string
	Schema     json.Marshaler
}

// Completion is the raw model output of one request.
type Completion struct {
	Text             string `json:"-"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Attempts         int    `json:"attempts"`
}

// Invoker sends a compiled prompt to a model and returns its raw text.
type Invoker interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// Config configures one invoker. The API key is scoped to the invoker that receives it
// and is never logged.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string
	// Temperature is the sampling temperature. Nil selects the default, zero is greedy decoding.
	Temperature    *float32
	MaxTokens      int
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	ResponseFormat string
	Logger         zerolog.Logger
}

func (c Config) withDefaults(defaultModel string) Config {
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Temperature == nil || *c.Temperature < 0 {
		temperature := float32(defaultTemperature)
		c.Temperature = &temperature
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxRetries > 1 {
		c.MaxRetries = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	switch c.ResponseFormat {
	case FormatJSONObject, FormatJSONSchema, FormatText:
	default:
		c.ResponseFormat = FormatJSONObject
	}
	if c.Logger.GetLevel() == zerolog.Disabled {
		c.Logger = zerolog.Nop()
	}
	return c
}

// NewInvoker builds the invoker for cfg.Provider.
func NewInvoker(cfg Config) (Invoker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return NewOpenAIInvoker(cfg)
	case ProviderGemini:
		return NewGeminiInvoker(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

// Factory builds an invoker per request.
type Factory func(cfg Config) (Invoker, error)
