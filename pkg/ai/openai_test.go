package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type chatCall struct {
	Model          string  `json:"model"`
	Temperature    float32 `json:"temperature"`
	ResponseFormat struct {
		Type       string          `json:"type"`
		JSONSchema json.RawMessage `json:"json_schema"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionBody(content string) string {
	payload := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func errorBody(code, message string) string {
	return fmt.Sprintf(`{"error":{"message":%q,"type":"invalid_request_error","code":%q}}`, message, code)
}

type scriptedServer struct {
	calls     atomic.Int32
	lastCall  chatCall
	lastAuth  string
	responses []func(w http.ResponseWriter)
}

func (s *scriptedServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &s.lastCall))
		s.lastAuth = r.Header.Get("Authorization")

		idx := int(s.calls.Add(1)) - 1
		if idx >= len(s.responses) {
			idx = len(s.responses) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		s.responses[idx](w)
	}
}

func respond(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newTestInvoker(t *testing.T, srv *httptest.Server, format string) *OpenAIInvoker {
	t.Helper()
	invoker, err := NewOpenAIInvoker(Config{
		APIKey:         "sk-test",
		BaseURL:        srv.URL + "/v1",
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
		Timeout:        2 * time.Second,
		ResponseFormat: format,
	})
	require.NoError(t, err)
	return invoker
}

func TestOpenAIInvokerSendsContract(t *testing.T) {
	script := &scriptedServer{responses: []func(http.ResponseWriter){respond(http.StatusOK, completionBody(`{"overall_score":4}`))}}
	srv := httptest.NewServer(script.handler(t))
	defer srv.Close()

	invoker := newTestInvoker(t, srv, FormatJSONObject)
	completion, err := invoker.Complete(context.Background(), Request{System: "sys", User: "usr"})
	require.NoError(t, err)

	require.Equal(t, `{"overall_score":4}`, completion.Text)
	require.Equal(t, ProviderOpenAI, completion.Provider)
	require.Equal(t, 1, completion.Attempts)
	require.Equal(t, 11, completion.PromptTokens)
	require.Equal(t, 7, completion.CompletionTokens)

	call := script.lastCall
	require.Equal(t, "gpt-4o-mini", call.Model)
	require.InDelta(t, 0.2, call.Temperature, 0.0001)
	require.Equal(t, "json_object", call.ResponseFormat.Type)
	require.Len(t, call.Messages, 2)
	require.Equal(t, "system", call.Messages[0].Role)
	require.Equal(t, "sys", call.Messages[0].Content)
	require.Equal(t, "user", call.Messages[1].Role)
	require.Equal(t, "usr", call.Messages[1].Content)
	require.Equal(t, "Bearer sk-test", script.lastAuth)
}

func TestOpenAIInvokerJSONSchemaFormat(t *testing.T) {
	script := &scriptedServer{responses: []func(http.ResponseWriter){respond(http.StatusOK, completionBody(`{}`))}}
	srv := httptest.NewServer(script.handler(t))
	defer srv.Close()

	invoker := newTestInvoker(t, srv, FormatJSONSchema)
	_, err := invoker.Complete(context.Background(), Request{
		System:     "sys",
		User:       "usr",
		SchemaName: "essay_evaluation",
		Schema:     json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)

	require.Equal(t, "json_schema", script.lastCall.ResponseFormat.Type)
	var schema struct {
		Name   string          `json:"name"`
		Schema json.RawMessage `json:"schema"`
	}
	require.NoError(t, json.Unmarshal(script.lastCall.ResponseFormat.JSONSchema, &schema))
	require.Equal(t, "essay_evaluation", schema.Name)
	require.JSONEq(t, `{"type":"object"}`, string(schema.Schema))
}

func TestOpenAIInvokerRetriesTransientFailureOnce(t *testing.T) {
	script := &scriptedServer{responses: []func(http.ResponseWriter){
		respond(http.StatusBadGateway, errorBody("server_error", "upstream down")),
		respond(http.StatusOK, completionBody(`{"praise":[]}`)),
	}}
	srv := httptest.NewServer(script.handler(t))
	defer srv.Close()

	completion, err := newTestInvoker(t, srv, "").Complete(context.Background(), Request{System: "s", User: "u"})
	require.NoError(t, err)
	require.Equal(t, 2, completion.Attempts)
	require.Equal(t, int32(2), script.calls.Load())
}

func TestOpenAIInvokerGivesUpAfterOneRetry(t *testing.T) {
	script := &scriptedServer{responses: []func(http.ResponseWriter){
		respond(http.StatusInternalServerError, errorBody("server_error", "boom")),
	}}
	srv := httptest.NewServer(script.handler(t))
	defer srv.Close()

	_, err := newTestInvoker(t, srv, "").Complete(context.Background(), Request{System: "s", User: "u"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTransient))
	require.Equal(t, int32(2), script.calls.Load())
}

func TestOpenAIInvokerDoesNotRetryPermanentFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   string
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, code: "invalid_api_key", want: ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, code: "unsupported_country", want: ErrUnauthorized},
		{name: "quota", status: http.StatusTooManyRequests, code: "insufficient_quota", want: ErrQuotaExceeded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			script := &scriptedServer{responses: []func(http.ResponseWriter){respond(tc.status, errorBody(tc.code, "nope"))}}
			srv := httptest.NewServer(script.handler(t))
			defer srv.Close()

			_, err := newTestInvoker(t, srv, "").Complete(context.Background(), Request{System: "s", User: "u"})
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.want))
			require.Equal(t, int32(1), script.calls.Load())
		})
	}
}

func TestOpenAIInvokerEmptyCompletion(t *testing.T) {
	script := &scriptedServer{responses: []func(http.ResponseWriter){respond(http.StatusOK, completionBody("   "))}}
	srv := httptest.NewServer(script.handler(t))
	defer srv.Close()

	_, err := newTestInvoker(t, srv, "").Complete(context.Background(), Request{System: "s", User: "u"})
	require.True(t, errors.Is(err, ErrEmptyCompletion))
	require.Equal(t, int32(1), script.calls.Load())
}

func TestOpenAIInvokerRetriesAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody(`{"overall_comment":"ok"}`))
	}))
	defer srv.Close()

	invoker, err := NewOpenAIInvoker(Config{
		APIKey:     "sk-test",
		BaseURL:    srv.URL + "/v1",
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		Timeout:    100 * time.Millisecond,
	})
	require.NoError(t, err)

	completion, err := invoker.Complete(context.Background(), Request{System: "s", User: "u"})
	require.NoError(t, err)
	require.Equal(t, 2, completion.Attempts)
}

func TestNewInvoker(t *testing.T) {
	_, err := NewInvoker(Config{Provider: "openai"})
	require.True(t, errors.Is(err, ErrMissingAPIKey))

	_, err = NewInvoker(Config{Provider: "gemini", APIKey: " "})
	require.True(t, errors.Is(err, ErrMissingAPIKey))

	_, err = NewInvoker(Config{Provider: "claude", APIKey: "k"})
	require.True(t, errors.Is(err, ErrUnsupportedProvider))

	invoker, err := NewInvoker(Config{Provider: "Gemini", APIKey: "k"})
	require.NoError(t, err)
	require.IsType(t, &GeminiInvoker{}, invoker)

	invoker, err = NewInvoker(Config{APIKey: "k", MaxRetries: 5})
	require.NoError(t, err)
	openaiInvoker := invoker.(*OpenAIInvoker)
	require.Equal(t, 1, openaiInvoker.cfg.MaxRetries)
	require.Equal(t, defaultOpenAIModel, openaiInvoker.cfg.Model)
	require.Equal(t, FormatJSONObject, openaiInvoker.cfg.ResponseFormat)
	require.InDelta(t, defaultTemperature, *openaiInvoker.cfg.Temperature, 0.0001)

	invoker, err = NewInvoker(Config{APIKey: "k", Temperature: Float32(0)})
	require.NoError(t, err)
	require.Zero(t, *invoker.(*OpenAIInvoker).cfg.Temperature)

	invoker, err = NewInvoker(Config{APIKey: "k", Temperature: Float32(-1)})
	require.NoError(t, err)
	require.InDelta(t, defaultTemperature, *invoker.(*OpenAIInvoker).cfg.Temperature, 0.0001)
}

func TestOpenAIInvokerSendsZeroTemperature(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody(`{}`))
	}))
	defer srv.Close()

	invoker, err := NewOpenAIInvoker(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Temperature: Float32(0)})
	require.NoError(t, err)
	_, err = invoker.Complete(context.Background(), Request{System: "s", User: "u"})
	require.NoError(t, err)

	temperature, ok := raw["temperature"].(float64)
	require.True(t, ok, "temperature must be sent")
	require.Less(t, temperature, 1e-6)
}

func TestStatusError(t *testing.T) {
	require.Equal(t, ErrUnauthorized, statusError(http.StatusUnauthorized))
	require.Equal(t, ErrQuotaExceeded, statusError(http.StatusTooManyRequests))
	require.Equal(t, ErrTransient, statusError(http.StatusServiceUnavailable))
	require.Equal(t, ErrTransient, statusError(http.StatusRequestTimeout))
	require.Nil(t, statusError(http.StatusBadRequest))
}

func TestClassifyGeminiError(t *testing.T) {
	err := classifyGeminiError(fmt.Errorf("wrapped: %w", context.DeadlineExceeded))
	require.True(t, errors.Is(err, ErrTransient))

	err = classifyGeminiError(errors.New("model not found"))
	require.False(t, errors.Is(err, ErrTransient))
}
