package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const entrySuffix = ".json"

// FileStore is a file-backed cache store. Each entry lives in its own file
// named after the key fingerprint. Writes are atomic: the entry is written
// to a temporary file in the same directory and renamed into place.
type FileStore struct {
	dir string
	ttl time.Duration
}

// NewFileStore creates a file store rooted at dir, creating the directory
// if needed. Entries older than ttl are treated as absent on read.
func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive (got %v)", ttl)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &FileStore{dir: dir, ttl: ttl}, nil
}

// TTL returns the store's time-to-live.
func (s *FileStore) TTL() time.Duration {
	return s.ttl
}

// Get retrieves the cached payload for key.
// Returns ErrCacheMiss if the entry is missing, expired, or unreadable.
// Expiry is lazy: checked here, at read time; expired and corrupt entries
// are removed on the spot.
func (s *FileStore) Get(_ context.Context, key Key) (json.RawMessage, error) {
	path := s.entryPath(key)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			CacheMisses.WithLabelValues("file").Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("file", "get").Inc()
		return nil, fmt.Errorf("read cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.evict(path)
		CacheMisses.WithLabelValues("file").Inc()
		return nil, ErrCacheMiss
	}

	if entry.Expired(s.ttl, time.Now()) {
		s.evict(path)
		CacheMisses.WithLabelValues("file").Inc()
		return nil, ErrCacheMiss
	}

	body := entry.Body()
	if body == nil {
		s.evict(path)
		CacheMisses.WithLabelValues("file").Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("file").Inc()
	return body, nil
}

// Put writes an entry for key with the current timestamp. The write is
// atomic from the perspective of a concurrent reader: write-to-temporary,
// then rename.
func (s *FileStore) Put(_ context.Context, key Key, payload json.RawMessage, headers map[string]string) error {
	data, err := json.Marshal(NewEntry(payload, headers))
	if err != nil {
		CacheErrors.WithLabelValues("file", "put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, key.Fingerprint()+".tmp-*")
	if err != nil {
		CacheErrors.WithLabelValues("file", "put").Inc()
		return fmt.Errorf("create temp cache file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		CacheErrors.WithLabelValues("file", "put").Inc()
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		CacheErrors.WithLabelValues("file", "put").Inc()
		return fmt.Errorf("close cache entry: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.entryPath(key)); err != nil {
		os.Remove(tmp.Name())
		CacheErrors.WithLabelValues("file", "put").Inc()
		return fmt.Errorf("rename cache entry: %w", err)
	}

	return nil
}

// Clear removes all entries. Per-entry removal failures are logged and
// skipped so maintenance never fails a request path.
func (s *FileStore) Clear(_ context.Context) error {
	paths, err := s.entryPaths()
	if err != nil {
		CacheErrors.WithLabelValues("file", "clear").Inc()
		return err
	}

	for _, path := range paths {
		s.evict(path)
	}
	return nil
}

// ClearExpired removes entries older than the TTL. Entries that cannot be
// decoded are removed as well, since Get would discard them anyway.
func (s *FileStore) ClearExpired(_ context.Context) error {
	paths, err := s.entryPaths()
	if err != nil {
		CacheErrors.WithLabelValues("file", "clear").Inc()
		return err
	}

	now := time.Now()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to read cache entry during sweep")
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil || entry.Expired(s.ttl, now) {
			s.evict(path)
		}
	}
	return nil
}

// entryPath returns the file path for a key.
func (s *FileStore) entryPath(key Key) string {
	return filepath.Join(s.dir, key.Fingerprint()+entrySuffix)
}

// entryPaths lists all entry files, ignoring temp files from in-flight writes.
func (s *FileStore) entryPaths() ([]string, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache directory: %w", err)
	}

	paths := make([]string, 0, len(dirents))
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), entrySuffix) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, d.Name()))
	}
	return paths, nil
}

// evict removes an entry file, logging failures instead of propagating them.
func (s *FileStore) evict(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove cache entry")
		CacheErrors.WithLabelValues("file", "delete").Inc()
		return
	}
	CacheEvictions.WithLabelValues("file").Inc()
}
