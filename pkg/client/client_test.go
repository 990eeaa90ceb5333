package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// newTestConfig returns a config pointed at a test server, with rate
// limiting and caching off unless a test opts in.
func newTestConfig(t *testing.T, baseURL string) Config {
	t.Helper()

	cfg := DefaultConfig("test-key")
	cfg.BaseURL = baseURL
	cfg.RateLimitDelay = 0
	cfg.MaxRetries = 1
	cfg.EnableCache = false
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")
	return cfg
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("New() with empty API key: error = nil, want error")
	}
}

func TestClient_FetchSuccess(t *testing.T) {
	payload := `{"documents":[{"id":"1"}],"cursor":"abc"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	c, err := New(newTestConfig(t, server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := c.Fetch(context.Background(), NewDescriptor("person", nil))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(got) != payload {
		t.Errorf("Fetch() = %s, want %s", got, payload)
	}
}

func TestClient_FetchSendsKeyAndFormat(t *testing.T) {
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c, err := New(newTestConfig(t, server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	desc := NewDescriptor("person", url.Values{"f.wahlperiode": []string{"20"}})
	if _, err := c.Fetch(context.Background(), desc); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if query.Get("apikey") != "test-key" {
		t.Errorf("apikey = %q, want %q", query.Get("apikey"), "test-key")
	}
	if query.Get("format") != "json" {
		t.Errorf("format = %q, want %q", query.Get("format"), "json")
	}
	if query.Get("f.wahlperiode") != "20" {
		t.Errorf("f.wahlperiode = %q, want %q", query.Get("f.wahlperiode"), "20")
	}
}

// TestClient_FetchCachedWithinTTL is the core caching contract: the same
// logical request issued twice within the TTL returns byte-identical
// payloads and reaches the transport exactly once.
func TestClient_FetchCachedWithinTTL(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"documents":[{"id":"42"}],"cursor":""}`))
	}))
	defer server.Close()

	cfg := newTestConfig(t, server.URL)
	cfg.EnableCache = true
	cfg.CacheTTL = time.Hour

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	desc := NewDescriptor("person", url.Values{
		"anzahl":      []string{"10"},
		"wahlperiode": []string{"20"},
	})

	first, err := c.Fetch(context.Background(), desc)
	if err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}
	second, err := c.Fetch(context.Background(), desc)
	if err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("cached payload differs: %s vs %s", first, second)
	}
	if hits.Load() != 1 {
		t.Errorf("transport invoked %d times, want 1", hits.Load())
	}
}

func TestClient_FetchUnauthorized(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := newTestConfig(t, server.URL)
	cfg.MaxRetries = 3

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Fetch(context.Background(), NewDescriptor("person", nil))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Fetch() error = %v, want *APIError", err)
	}
	if apiErr.Category != CategoryUnauthorized {
		t.Errorf("Category = %q, want %q", apiErr.Category, CategoryUnauthorized)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
	if hits.Load() != 1 {
		t.Errorf("transport invoked %d times, want 1 (401 is not retried)", hits.Load())
	}
}

func TestClient_FetchMalformedBody(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("<html>definitely not json</html>"))
	}))
	defer server.Close()

	cfg := newTestConfig(t, server.URL)
	cfg.MaxRetries = 3

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Fetch(context.Background(), NewDescriptor("person", nil))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Fetch() error = %v, want *APIError", err)
	}
	if apiErr.Category != CategoryMalformed {
		t.Errorf("Category = %q, want %q", apiErr.Category, CategoryMalformed)
	}
	if hits.Load() != 1 {
		t.Errorf("transport invoked %d times, want 1 (malformed is not retried)", hits.Load())
	}
}

func TestClient_FetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := newTestConfig(t, server.URL)
	cfg.Timeout = 50 * time.Millisecond

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Fetch(context.Background(), NewDescriptor("person", nil))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Fetch() error = %v, want *APIError", err)
	}
	if apiErr.Category != CategoryTimeout {
		t.Errorf("Category = %q, want %q", apiErr.Category, CategoryTimeout)
	}
}

func TestClient_FetchFailureNotCached(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"documents":[],"cursor":""}`))
	}))
	defer server.Close()

	cfg := newTestConfig(t, server.URL)
	cfg.EnableCache = true
	cfg.CacheTTL = time.Hour

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	desc := NewDescriptor("person", nil)
	if _, err := c.Fetch(context.Background(), desc); err == nil {
		t.Fatal("first Fetch() error = nil, want 404 failure")
	}

	// The failure must not have been cached: the second call reaches transport.
	if _, err := c.Fetch(context.Background(), desc); err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("transport invoked %d times, want 2", hits.Load())
	}
}

// TestClient_UnusableCacheDirDegradesGracefully: a cache directory that
// cannot be created must leave the client working, just uncached.
func TestClient_UnusableCacheDirDegradesGracefully(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	cfg := newTestConfig(t, server.URL)
	cfg.EnableCache = true
	cfg.CacheTTL = time.Hour
	cfg.CacheDir = filepath.Join(blocker, "cache") // parent is a file

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v, want graceful degradation", err)
	}

	desc := NewDescriptor("person", nil)
	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(context.Background(), desc); err != nil {
			t.Fatalf("Fetch() #%d error = %v", i+1, err)
		}
	}
	if hits.Load() != 2 {
		t.Errorf("transport invoked %d times, want 2 (no caching)", hits.Load())
	}
}

func TestNewConcurrent_PoolsConnections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := newTestConfig(t, server.URL)
	cfg.ConnectorLimit = 20
	cfg.ConnectorLimitPerHost = 5

	c, err := NewConcurrent(cfg)
	if err != nil {
		t.Fatalf("NewConcurrent() error = %v", err)
	}

	transport, ok := c.httpClient.Transport.(*http.Transport)
	if !ok {
		t.Fatal("concurrent client does not use a tuned *http.Transport")
	}
	if transport.MaxIdleConns != 20 {
		t.Errorf("MaxIdleConns = %d, want 20", transport.MaxIdleConns)
	}
	if transport.MaxConnsPerHost != 5 {
		t.Errorf("MaxConnsPerHost = %d, want 5", transport.MaxConnsPerHost)
	}

	if _, err := c.Fetch(context.Background(), NewDescriptor("person", nil)); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
}

func TestDescriptor_WithParamDoesNotMutate(t *testing.T) {
	base := NewDescriptor("person", url.Values{"anzahl": []string{"10"}})
	next := base.WithParam("cursor", "page-2")

	if base.Params().Get("cursor") != "" {
		t.Error("WithParam mutated the original descriptor")
	}
	if next.Params().Get("cursor") != "page-2" {
		t.Error("WithParam did not set the parameter on the copy")
	}
	if next.Params().Get("anzahl") != "10" {
		t.Error("WithParam dropped existing parameters")
	}
}
