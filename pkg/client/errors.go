package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during
	// a rate-limit wait or retry backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorCategory classifies a transport outcome. Every outcome maps to
// exactly one category; the category decides retry eligibility and the
// backoff tier.
type ErrorCategory string

const (
	// CategoryUnauthorized is HTTP 401: missing or invalid API key.
	CategoryUnauthorized ErrorCategory = "unauthorized"

	// CategoryForbidden is HTTP 403: the key lacks access to the resource.
	CategoryForbidden ErrorCategory = "forbidden"

	// CategoryRateLimited is HTTP 429: the source is throttling us.
	CategoryRateLimited ErrorCategory = "rate_limited"

	// CategoryClientError is any other 4xx: the request itself is wrong.
	CategoryClientError ErrorCategory = "client_error"

	// CategoryServerError is any 5xx.
	CategoryServerError ErrorCategory = "server_error"

	// CategoryConnectionFailure is a refused/reset/unreachable connection.
	CategoryConnectionFailure ErrorCategory = "connection_failure"

	// CategoryTimeout is a transport-level deadline exceeded.
	CategoryTimeout ErrorCategory = "timeout"

	// CategoryMalformed is a successful transport whose body does not decode.
	CategoryMalformed ErrorCategory = "malformed"
)

// APIError is a typed failure carrying the classification and the original
// detail, so callers can distinguish "gave up after rate limiting" from
// "gave up after repeated timeouts" without parsing message strings.
type APIError struct {
	StatusCode int
	Category   ErrorCategory
	Message    string
	Attempts   int
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		if e.Err != nil {
			return fmt.Sprintf("DIP %s error (status %d): %s: %v",
				e.Category, e.StatusCode, e.Message, e.Err)
		}
		return fmt.Sprintf("DIP %s error (status %d): %s",
			e.Category, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("DIP %s error: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("DIP %s error: %s", e.Category, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same request can plausibly
// succeed for this category.
func (e *APIError) Retryable() bool {
	return retryable(e.Category)
}

// ClassifyStatus maps an HTTP status code to its category.
// ok is false for codes below 400 (not an error).
func ClassifyStatus(status int) (category ErrorCategory, ok bool) {
	switch {
	case status < 400:
		return "", false
	case status == http.StatusUnauthorized:
		return CategoryUnauthorized, true
	case status == http.StatusForbidden:
		return CategoryForbidden, true
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited, true
	case status < 500:
		return CategoryClientError, true
	default:
		return CategoryServerError, true
	}
}

// ClassifyTransport maps a transport-level error (the request never produced
// a status code) to Timeout or ConnectionFailure.
func ClassifyTransport(err error) ErrorCategory {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return CategoryTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}

	// Refused, reset, unreachable and everything else the dialer throws.
	// A request that never reached the server is worth repeating.
	return CategoryConnectionFailure
}

// retryable reports whether an error category should be retried.
func retryable(category ErrorCategory) bool {
	switch category {
	case CategoryRateLimited, CategoryServerError, CategoryConnectionFailure, CategoryTimeout:
		return true
	default:
		// Unauthorized, Forbidden, ClientError, Malformed: repeating the
		// same call cannot change the outcome.
		return false
	}
}

// statusMessage returns caller guidance for statuses where "check your
// request" is the wrong advice.
func statusMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "authentication failed, check the API key"
	case http.StatusForbidden:
		return "access denied, the API key lacks permission for this resource"
	case http.StatusTooManyRequests:
		return "rate limit exceeded"
	default:
		return http.StatusText(status)
	}
}
