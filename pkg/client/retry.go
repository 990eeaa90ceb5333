package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	dipRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dip_retries_total",
		Help: "Total number of retry attempts by error category",
	}, []string{"category"})

	dipRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dip_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error category",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"category"})

	dipRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dip_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error category",
	}, []string{"category"})
)

// maxRetryAfter caps how long a server-supplied Retry-After header may
// stretch a single backoff wait.
const maxRetryAfter = 60 * time.Second

// backoffBase returns the base delay for an error category. The actual wait
// before attempt n+1 is base * n, so a rate-limited request backs off 5s,
// 10s, ... while a flaky connection retries after 1s, 2s, ...
func backoffBase(category ErrorCategory) time.Duration {
	switch category {
	case CategoryRateLimited:
		// Longest tier: the source told us explicitly to slow down.
		return 5 * time.Second
	case CategoryConnectionFailure, CategoryTimeout:
		return 2 * time.Second
	default:
		return 1 * time.Second
	}
}

// runWithRetry executes attempt up to maxRetries times total (the first try
// counts), with a linear backoff between failures: wait = base(category) *
// attemptNumber. A server-supplied Retry-After on the failed attempt
// overrides the computed wait, capped at maxRetryAfter.
//
// Non-retryable failures and non-APIError failures return immediately.
// Exhaustion wraps the last failure in ErrRetryExhausted.
func runWithRetry(ctx context.Context, maxRetries int, attempt func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error

	for try := 1; try <= maxRetries; try++ {
		err := attempt()
		if err == nil {
			if try > 1 {
				log.Info().
					Int("attempt", try).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() {
			return lastErr
		}
		apiErr.Attempts = try

		if try >= maxRetries {
			break
		}

		delay := backoffBase(apiErr.Category) * time.Duration(try)
		if apiErr.RetryAfter > 0 {
			delay = apiErr.RetryAfter
			if delay > maxRetryAfter {
				delay = maxRetryAfter
			}
		}

		dipRetriesTotal.WithLabelValues(string(apiErr.Category)).Inc()
		dipRetryBackoffSeconds.WithLabelValues(string(apiErr.Category)).Observe(delay.Seconds())

		log.Debug().
			Str("category", string(apiErr.Category)).
			Int("attempt", try).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn().
				Str("category", string(apiErr.Category)).
				Int("attempt", try).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	category := ErrorCategory("unknown")
	var apiErr *APIError
	if errors.As(lastErr, &apiErr) {
		category = apiErr.Category
	}

	dipRetryExhaustedTotal.WithLabelValues(string(category)).Inc()
	log.Warn().
		Str("category", string(category)).
		Int("max_retries", maxRetries).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxRetries, lastErr)
}

// parseRetryAfter reads a Retry-After header value in delta-seconds form.
// HTTP-date form is rare on this API and treated as absent.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(value, "%d", &seconds); err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
