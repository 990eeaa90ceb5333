// Package ratelimit spaces outbound DIP API requests.
//
// The DIP API has no published request budget, but hammering it gets keys
// throttled. The limiter enforces a minimum interval between consecutive
// requests issued by one client instance. It is deliberately not a token
// bucket: there is no burst allowance, just strict sequential spacing.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for rate limiting.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dip_ratelimit_waits_total",
		Help: "Total number of requests delayed by the rate limiter",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dip_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a rate limiter slot",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})
)

// DefaultMinDelay is the default spacing between consecutive requests.
const DefaultMinDelay = 100 * time.Millisecond

// Limiter enforces a minimum interval between consecutive acquisitions on
// one client instance. Safe for concurrent use: each acquirer reserves its
// slot under a single lock, so two concurrent callers can never compute the
// same "elapsed since last request" and race past each other.
type Limiter struct {
	minDelay time.Duration

	mu   sync.Mutex
	next time.Time // earliest instant the next slot may start
}

// New creates a limiter with the given minimum delay.
// A non-positive delay disables spacing (every acquire returns immediately).
func New(minDelay time.Duration) *Limiter {
	return &Limiter{minDelay: minDelay}
}

// MinDelay returns the configured spacing.
func (l *Limiter) MinDelay() time.Duration {
	return l.minDelay
}

// Acquire blocks until the caller's reserved slot arrives, or until ctx is
// done. Reservation and bookkeeping happen atomically; the sleep happens
// outside the lock so waiting callers queue without blocking each other's
// reservations.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.minDelay <= 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.minDelay)
	l.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}

	rateLimitWaitsTotal.Inc()
	rateLimitWaitSeconds.Observe(wait.Seconds())
	log.Debug().
		Dur("wait", wait).
		Msg("Waiting for rate limiter slot")

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
