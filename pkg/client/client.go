// Package client provides the core DIP API client with rate limiting,
// caching, retry, and error classification.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bundesdata/go-dip/pkg/cache"
	"github.com/bundesdata/go-dip/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for DIP client operations.
var (
	dipRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dip_requests_total",
		Help: "Total DIP requests by endpoint and status",
	}, []string{"endpoint", "status"})

	dipRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dip_request_duration_seconds",
		Help:    "DIP request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	dipErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dip_errors_total",
		Help: "Total DIP errors by category",
	}, []string{"category"})
)

// DefaultBaseURL is the production DIP API endpoint.
const DefaultBaseURL = "https://search.dip.bundestag.de/api/v1"

// Default connection pool ceilings for the concurrent variant.
const (
	DefaultConnectorLimit        = 100
	DefaultConnectorLimitPerHost = 10
)

// Fetcher executes one logical DIP request and returns the decoded JSON
// payload. Both the blocking and the concurrent client satisfy it; the
// pagination engine and the resource methods depend only on this contract.
type Fetcher interface {
	Fetch(ctx context.Context, desc Descriptor) (json.RawMessage, error)
}

// Config holds the client configuration.
type Config struct {
	// APIKey authenticates every request (required).
	APIKey string

	// BaseURL of the DIP API. Defaults to DefaultBaseURL.
	BaseURL string

	// RateLimitDelay is the minimum spacing between consecutive requests.
	RateLimitDelay time.Duration

	// MaxRetries is the total number of attempts per request, the first
	// try included. Minimum 1.
	MaxRetries int

	// Timeout bounds each transport attempt.
	Timeout time.Duration

	// EnableCache turns response caching on.
	EnableCache bool

	// CacheTTL is the maximum age of a cached response.
	CacheTTL time.Duration

	// CacheDir is where the file-backed cache lives. Ignored when Store
	// is set.
	CacheDir string

	// Store overrides the default file-backed cache (e.g. a Redis store).
	Store cache.Store

	// Connection pool ceilings, honored by NewConcurrent only.
	ConnectorLimit        int
	ConnectorLimitPerHost int
}

// DefaultConfig returns a configuration with production defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:                apiKey,
		BaseURL:               DefaultBaseURL,
		RateLimitDelay:        ratelimit.DefaultMinDelay,
		MaxRetries:            3,
		Timeout:               30 * time.Second,
		EnableCache:           true,
		CacheTTL:              time.Hour,
		CacheDir:              ".dip_cache",
		ConnectorLimit:        DefaultConnectorLimit,
		ConnectorLimitPerHost: DefaultConnectorLimitPerHost,
	}
}

// Client is the blocking DIP client. Fetch blocks the caller for the
// duration of rate-limit waits, retry backoffs, and transport I/O.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	store      cache.Store
	config     Config
	logger     zerolog.Logger
}

// New creates a blocking client with the default transport.
func New(cfg Config) (*Client, error) {
	return newClient(cfg, nil)
}

// NewConcurrent creates a client safe for many in-flight requests on one
// instance: same Fetch contract, but the transport pools and reuses
// connections up to the configured ceilings instead of the stdlib defaults.
// Rate-limit spacing still applies across all concurrent callers.
func NewConcurrent(cfg Config) (*Client, error) {
	if cfg.ConnectorLimit <= 0 {
		cfg.ConnectorLimit = DefaultConnectorLimit
	}
	if cfg.ConnectorLimitPerHost <= 0 {
		cfg.ConnectorLimitPerHost = DefaultConnectorLimitPerHost
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = cfg.ConnectorLimit
	transport.MaxConnsPerHost = cfg.ConnectorLimitPerHost
	transport.MaxIdleConnsPerHost = cfg.ConnectorLimitPerHost

	return newClient(cfg, transport)
}

func newClient(cfg Config, transport http.RoundTripper) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "dip-client").Logger()

	store := cfg.Store
	if store == nil && cfg.EnableCache {
		fileStore, err := cache.NewFileStore(cfg.CacheDir, cfg.CacheTTL)
		if err != nil {
			// Caching is best-effort: an unusable cache directory degrades
			// to uncached operation, it never fails client construction.
			logger.Warn().
				Err(err).
				Str("dir", cfg.CacheDir).
				Msg("Cache unavailable, continuing without caching")
		} else {
			store = fileStore
		}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		limiter: ratelimit.New(cfg.RateLimitDelay),
		store:   store,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Fetch executes one logical request: cache lookup, rate-limit slot,
// transport with retry, cache write. Returns the raw JSON payload.
func (c *Client) Fetch(ctx context.Context, desc Descriptor) (json.RawMessage, error) {
	endpoint := desc.Endpoint()

	startTime := time.Now()
	defer func() {
		dipRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Cache hit skips transport and rate limiter entirely.
	if c.store != nil {
		payload, err := c.store.Get(ctx, desc.cacheKey())
		if err == nil {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Msg("Serving response from cache")
			dipRequestsTotal.WithLabelValues(endpoint, "cached").Inc()
			return payload, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
	}

	var payload json.RawMessage
	err := runWithRetry(ctx, c.config.MaxRetries, func() error {
		var attemptErr error
		payload, attemptErr = c.doAttempt(ctx, desc)
		return attemptErr
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			dipErrorsTotal.WithLabelValues(string(apiErr.Category)).Inc()
		}
		return nil, err
	}

	if c.store != nil {
		// Best-effort: a failed write is logged inside the store and must
		// never fail the request.
		if err := c.store.Put(ctx, desc.cacheKey(), payload, nil); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache put error")
		}
	}

	return payload, nil
}

// doAttempt performs exactly one transport exchange.
func (c *Client) doAttempt(ctx context.Context, desc Descriptor) (json.RawMessage, error) {
	endpoint := desc.Endpoint()

	req, err := c.buildRequest(ctx, desc)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Msg("Executing DIP request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		category := ClassifyTransport(err)
		dipRequestsTotal.WithLabelValues(endpoint, string(category)).Inc()
		c.logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Str("category", string(category)).
			Msg("DIP request failed")
		return nil, &APIError{
			Category: category,
			Message:  "transport failure",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	dipRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if category, isErr := ClassifyStatus(resp.StatusCode); isErr {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("category", string(category)).
			Msg("DIP request error")
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Category:   category,
			Message:    statusMessage(resp.StatusCode),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{
			Category: ClassifyTransport(err),
			Message:  "reading response body",
			Err:      err,
		}
	}

	if !json.Valid(body) {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Category:   CategoryMalformed,
			Message:    "response body is not valid JSON",
		}
	}

	return json.RawMessage(body), nil
}

// buildRequest encodes a descriptor into an HTTP request. The API key joins
// the query here, at transport time, so it never reaches the cache key.
func (c *Client) buildRequest(ctx context.Context, desc Descriptor) (*http.Request, error) {
	params := desc.Params()
	params.Set("apikey", c.config.APIKey)
	params.Set("format", "json")

	requestURL := fmt.Sprintf("%s/%s?%s", c.config.BaseURL, desc.Endpoint(), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// ClearCache removes all cached responses. No-op without a cache.
func (c *Client) ClearCache(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.Clear(ctx)
}

// ClearExpiredCache removes cached responses past their TTL.
func (c *Client) ClearExpiredCache(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.ClearExpired(ctx)
}

// BaseURL returns the configured API endpoint.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

var _ Fetcher = (*Client)(nil)
