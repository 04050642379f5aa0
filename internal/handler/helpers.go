package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-essay-evaluator/internal/middleware"
	"github.com/noah-isme/gema-essay-evaluator/internal/service"
	"github.com/noah-isme/gema-essay-evaluator/pkg/ai"
)

// APIKeyHeader carries a per-request provider credential.
const APIKeyHeader = "X-API-Key"

var (
	// ErrEssayFileType indicates the uploaded essay is not plain UTF-8 text.
	ErrEssayFileType = errors.New("essay file must be a plain text file")
	// ErrEssayFileTooLarge indicates the uploaded essay exceeds the size limit.
	ErrEssayFileTooLarge = errors.New("essay file is too large")
)

// Error codes carried in the response envelope.
const (
	codeInputError    = "input_error"
	codeProviderAuth  = "provider_auth"
	codeProviderQuota = "provider_quota"
	codeProviderError = "provider_error"
)

type errorMapping struct {
	status  int
	code    string
	message string
}

// mapError converts pipeline errors into the HTTP status, code and user facing message.
func mapError(err error) errorMapping {
	switch {
	case isValidationError(err):
		return errorMapping{fiber.StatusBadRequest, codeInputError, "invalid payload"}
	case errors.Is(err, service.ErrMissingCredential):
		return errorMapping{fiber.StatusBadRequest, codeInputError, "Please provide an API key."}
	case errors.Is(err, service.ErrEmptyEssay):
		return errorMapping{fiber.StatusBadRequest, codeInputError, "Please paste a student's essay."}
	case errors.Is(err, service.ErrEmptyCustomTopic):
		return errorMapping{fiber.StatusBadRequest, codeInputError, "Please enter a custom topic."}
	case errors.Is(err, service.ErrUnknownRubric):
		return errorMapping{fiber.StatusBadRequest, codeInputError, "Unknown rubric."}
	case errors.Is(err, service.ErrUnsupportedProvider):
		return errorMapping{fiber.StatusBadRequest, codeInputError, "Unsupported model provider."}
	case errors.Is(err, ErrEssayFileType), errors.Is(err, ErrEssayFileTooLarge):
		return errorMapping{fiber.StatusBadRequest, codeInputError, capitalize(err.Error()) + "."}
	case errors.Is(err, ai.ErrUnauthorized):
		return errorMapping{fiber.StatusUnauthorized, codeProviderAuth, "The model provider rejected the API key."}
	case errors.Is(err, ai.ErrQuotaExceeded):
		return errorMapping{fiber.StatusTooManyRequests, codeProviderQuota, "The model provider quota or rate limit was exceeded."}
	case errors.Is(err, service.ErrProviderFailure):
		return errorMapping{fiber.StatusBadGateway, codeProviderError, "The model provider request failed. Please try again."}
	default:
		return errorMapping{fiber.StatusInternalServerError, "", "failed to evaluate essay"}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func credentialFrom(c *fiber.Ctx, formKey string) service.Credential {
	key := strings.TrimSpace(c.Get(APIKeyHeader))
	if key == "" && formKey != "" {
		key = strings.TrimSpace(c.FormValue(formKey))
	}
	return service.Credential{APIKey: key}
}

// readEssayFile returns the text of an uploaded essay after checking it is UTF-8 plain text.
func readEssayFile(header *multipart.FileHeader, maxBytes int64) (string, error) {
	if header.Size > maxBytes {
		return "", ErrEssayFileTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open essay file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read essay file: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return "", ErrEssayFileTooLarge
	}

	if !isPlainText(data) {
		return "", ErrEssayFileType
	}

	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

// isPlainText accepts UTF-8 text/plain and its descendants, such as the text/csv
// reported for lines with matching comma counts.
func isPlainText(data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
