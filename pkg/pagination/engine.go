package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bundesdata/go-dip/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pagination.
var (
	dipPagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dip_pages_fetched_total",
		Help: "Total pages fetched by endpoint",
	}, []string{"endpoint"})

	dipPaginationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dip_pagination_duration_seconds",
		Help:    "End-to-end duration of multi-page fetches by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60},
	}, []string{"endpoint"})
)

// cursorParam is the query parameter carrying the continuation token.
const cursorParam = "cursor"

// Page is the wire shape of one DIP response: an items array and a
// continuation cursor. An empty cursor means the source is exhausted.
type Page struct {
	Documents []json.RawMessage `json:"documents"`
	Cursor    string            `json:"cursor"`
}

// Engine walks cursor pages through a client.Fetcher. It keeps no state
// between FetchN calls; each call owns its own accumulator.
type Engine struct {
	fetcher client.Fetcher
}

// NewEngine creates a pagination engine on top of a fetcher.
func NewEngine(fetcher client.Fetcher) *Engine {
	return &Engine{fetcher: fetcher}
}

// FetchN collects up to targetCount documents for the given descriptor,
// following cursors until the count is reached or the source is exhausted.
//
// The final page is truncated so the result never exceeds targetCount. Any
// fetch failure aborts the whole call: partially accumulated documents are
// discarded, so callers get all requested items or an error, never a short
// result caused by a failure. A short result caused by source exhaustion is
// legitimate and returned without error.
func (e *Engine) FetchN(ctx context.Context, desc client.Descriptor, targetCount int) ([]json.RawMessage, error) {
	if targetCount <= 0 {
		return nil, nil
	}

	endpoint := desc.Endpoint()
	start := time.Now()
	defer func() {
		dipPaginationDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	initialCap := targetCount
	if initialCap > 1024 {
		initialCap = 1024
	}
	collected := make([]json.RawMessage, 0, initialCap)
	cursor := ""
	pages := 0

	for len(collected) < targetCount {
		// Cancellation is checked at the top of each iteration so a
		// cancelled caller stops issuing page requests promptly.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pagination cancelled after %d pages: %w", pages, err)
		}

		pageDesc := desc
		if cursor != "" {
			pageDesc = desc.WithParam(cursorParam, cursor)
		}

		payload, err := e.fetcher.Fetch(ctx, pageDesc)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", pages+1, err)
		}

		var page Page
		if err := json.Unmarshal(payload, &page); err != nil {
			return nil, &client.APIError{
				Category: client.CategoryMalformed,
				Message:  fmt.Sprintf("page %d does not match the documents/cursor shape", pages+1),
				Err:      err,
			}
		}

		pages++
		dipPagesFetchedTotal.WithLabelValues(endpoint).Inc()

		remaining := targetCount - len(collected)
		if len(page.Documents) > remaining {
			page.Documents = page.Documents[:remaining]
		}
		collected = append(collected, page.Documents...)

		log.Debug().
			Str("endpoint", endpoint).
			Int("page", pages).
			Int("collected", len(collected)).
			Int("target", targetCount).
			Msg("Page collected")

		// Exhaustion: no documents, no cursor, or a cursor that did not
		// advance. The DIP API signals the last page by repeating the
		// previous cursor.
		if len(page.Documents) == 0 || page.Cursor == "" || page.Cursor == cursor {
			break
		}
		cursor = page.Cursor
	}

	log.Info().
		Str("endpoint", endpoint).
		Int("documents", len(collected)).
		Int("pages", pages).
		Dur("duration", time.Since(start)).
		Msg("Pagination complete")

	return collected, nil
}

// FetchAll collects every document the source has for the descriptor.
// Convenience wrapper used by the bulk export paths; same failure contract
// as FetchN.
func (e *Engine) FetchAll(ctx context.Context, desc client.Descriptor) ([]json.RawMessage, error) {
	const chunk = 1 << 20 // effectively unbounded
	return e.FetchN(ctx, desc, chunk)
}
