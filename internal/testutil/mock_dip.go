// Package testutil provides testing utilities for the DIP client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock DIP endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockDIP is a configurable mock DIP API server for testing.
type MockDIP struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	LastQuery    map[string][]string

	// RequireKey rejects requests whose apikey parameter differs (401).
	RequireKey string
}

// NewMockDIP creates a new mock DIP server.
func NewMockDIP() *MockDIP {
	mock := &MockDIP{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = r.URL.Query()
		requireKey := mock.RequireKey
		mock.mu.Unlock()

		if requireKey != "" && r.URL.Query().Get("apikey") != requireKey {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"An unknown API key was sent."}`))
			return
		}

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockDIP) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockDIP) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockDIP) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastQuery = nil
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockDIP) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// SetHandler sets a custom handler for a specific path.
func (m *MockDIP) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockDIP) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetDocuments serves a fixed set of documents on a resource path, paginated
// by the anzahl/cursor convention: each response carries at most pageSize
// documents and a cursor for the next slice; the last page repeats its
// cursor, which clients treat as exhaustion.
func (m *MockDIP) SetDocuments(path string, documents []json.RawMessage, pageSize int) {
	if pageSize <= 0 {
		pageSize = 100
	}

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		offset := 0
		cursor := r.URL.Query().Get("cursor")
		if cursor != "" {
			offset, _ = strconv.Atoi(cursor)
		}

		end := offset + pageSize
		if end > len(documents) {
			end = len(documents)
		}

		nextCursor := strconv.Itoa(end)
		if end >= len(documents) {
			// Last page: repeat the incoming cursor like the real API.
			nextCursor = cursor
		}

		page := map[string]any{
			"numFound":  len(documents),
			"documents": documents[offset:end],
			"cursor":    nextCursor,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	})
}

// defaultHandler answers with an empty, exhausted page.
func (m *MockDIP) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"numFound":0,"documents":[],"cursor":""}`))
}

// Documents builds n distinct test documents.
func Documents(n int) []json.RawMessage {
	docs := make([]json.RawMessage, n)
	for i := range docs {
		docs[i] = json.RawMessage(fmt.Sprintf(`{"id":"%d","titel":"Dokument %d"}`, i+1, i+1))
	}
	return docs
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfterSeconds int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message":"Rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Retry-After":  strconv.Itoa(retryAfterSeconds),
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message":"Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewUnauthorizedResponse creates a 401 response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"message":"An unknown API key was sent."}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}
