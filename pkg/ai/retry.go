package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "essay",
		Subsystem: "ai",
		Name:      "completion_duration_seconds",
		Help:      "Duration of model completion requests including retries",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"provider", "model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "essay",
		Subsystem: "ai",
		Name:      "completion_failures_total",
		Help:      "Number of failed model completion requests",
	}, []string{"provider", "model", "reason"})

	aiRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "essay",
		Subsystem: "ai",
		Name:      "completion_retries_total",
		Help:      "Number of retried model completion attempts",
	}, []string{"provider", "model"})
)

type attemptFunc func(ctx context.Context) (Completion, error)

// invoke runs fn with a per-attempt timeout and retries once on transient failures.
func invoke(ctx context.Context, provider string, cfg Config, logger zerolog.Logger, fn attemptFunc) (Completion, error) {
	start := time.Now()
	defer func() {
		aiDuration.WithLabelValues(provider, cfg.Model).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries+1; attempt++ {
		if attempt > 1 {
			aiRetries.WithLabelValues(provider, cfg.Model).Inc()
			logger.Warn().Err(lastErr).Int("attempt", attempt).Msg("retrying model completion")

			timer := time.NewTimer(cfg.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Completion{}, fail(provider, cfg.Model, ctx.Err())
			case <-timer.C:
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		completion, err := fn(attemptCtx)
		cancel()

		if err == nil {
			completion.Attempts = attempt
			return completion, nil
		}

		if ctx.Err() != nil {
			return Completion{}, fail(provider, cfg.Model, fmt.Errorf("%s complete: %w", provider, ctx.Err()))
		}
		lastErr = err
		if !errors.Is(err, ErrTransient) {
			break
		}
	}

	return Completion{}, fail(provider, cfg.Model, fmt.Errorf("%s complete: %w", provider, lastErr))
}

func fail(provider, model string, err error) error {
	aiFailures.WithLabelValues(provider, model, failureReason(err)).Inc()
	return err
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrEmptyCompletion):
		return "empty"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}

// statusError maps an HTTP status code onto the retry taxonomy. It returns nil for
// statuses that are neither auth, quota nor transient.
func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusTooManyRequests:
		return ErrQuotaExceeded
	case status == http.StatusRequestTimeout, status >= http.StatusInternalServerError:
		return ErrTransient
	default:
		return nil
	}
}

// classifyStatus wraps err with the sentinel for status, when there is one.
func classifyStatus(status int, err error) error {
	if sentinel := statusError(status); sentinel != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}

// isTransportError reports network level failures worth one more attempt.
func isTransportError(err error) bool {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return true
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNREFUSED):
		return true
	case errors.As(err, &netErr):
		return true
	default:
		return false
	}
}
