package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the evaluator service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	AIProvider       string
	AIModel          string
	AIBaseURL        string
	AITemperature    float32
	AIMaxTokens      int
	AITimeout        time.Duration
	AIMaxRetries     int
	AIResponseFormat string
	OpenAIAPIKey     string
	GeminiAPIKey     string

	RubricVariant string
	RubricFile    string
	Topics        []string

	RateLimitMax    int
	RateLimitWindow time.Duration
	MaxUploadBytes  int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// DefaultAPIKey returns the configured credential for provider, if any.
func (c Config) DefaultAPIKey(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gemini":
		return c.GeminiAPIKey
	case "", "openai":
		return c.OpenAIAPIKey
	default:
		return ""
	}
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ESSAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("app.name", "Essay Evaluator")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.max_retries", 1)
	v.SetDefault("ai.response_format", "json_object")
	v.SetDefault("rubric.variant", "five_point")
	v.SetDefault("rate_limit.max", 20)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("upload.max_bytes", 1<<20)

	// Provider keys are read under their conventional unprefixed names too.
	_ = v.BindEnv("openai_api_key", "ESSAY_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("gemini_api_key", "ESSAY_GEMINI_API_KEY", "GEMINI_API_KEY")

	timeout, err := parseDuration(v.GetString("ai.timeout"), 60*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ai timeout: %w", err)
	}

	window, err := parseDuration(v.GetString("rate_limit.window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		AIProvider:       strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
		AIModel:          strings.TrimSpace(v.GetString("ai.model")),
		AIBaseURL:        strings.TrimSpace(v.GetString("ai.base_url")),
		AITemperature:    float32(v.GetFloat64("ai.temperature")),
		AIMaxTokens:      v.GetInt("ai.max_tokens"),
		AITimeout:        timeout,
		AIMaxRetries:     v.GetInt("ai.max_retries"),
		AIResponseFormat: strings.ToLower(strings.TrimSpace(v.GetString("ai.response_format"))),
		OpenAIAPIKey:     strings.TrimSpace(v.GetString("openai_api_key")),
		GeminiAPIKey:     strings.TrimSpace(v.GetString("gemini_api_key")),
		RubricVariant:    strings.TrimSpace(v.GetString("rubric.variant")),
		RubricFile:       strings.TrimSpace(v.GetString("rubric.file")),
		Topics:           splitList(v.GetString("topics")),
		RateLimitMax:     v.GetInt("rate_limit.max"),
		RateLimitWindow:  window,
		MaxUploadBytes:   v.GetInt("upload.max_bytes"),
	}

	switch cfg.AIProvider {
	case "openai", "gemini":
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	if cfg.AIMaxRetries < 0 || cfg.AIMaxRetries > 1 {
		return Config{}, fmt.Errorf("ai max retries must be 0 or 1, got %d", cfg.AIMaxRetries)
	}

	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 20
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 1 << 20
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return fallback, nil
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
