package cache

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrCacheMiss indicates the requested key was not found or has expired.
var ErrCacheMiss = errors.New("cache miss")

// Store is the contract shared by the cache backends.
//
// Get returns ErrCacheMiss for missing, expired, or unreadable entries.
// Put writes best-effort: callers on the request path are expected to log
// and swallow its error. Clear and ClearExpired are bulk maintenance
// operations and never interrupt in-flight requests.
type Store interface {
	Get(ctx context.Context, key Key) (json.RawMessage, error)
	Put(ctx context.Context, key Key, payload json.RawMessage, headers map[string]string) error
	Clear(ctx context.Context) error
	ClearExpired(ctx context.Context) error
}
