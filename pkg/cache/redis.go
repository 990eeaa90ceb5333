package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces cache entries in a shared Redis instance.
const redisKeyPrefix = "dip:cache:"

// RedisStore is a Redis-backed cache store for deployments where several
// processes share one cache. Entries use the same JSON record format as the
// file store; Redis key expiry mirrors the TTL so expired entries also age
// out server-side.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a Redis store with the given TTL.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive (got %v)", ttl)
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

// Get retrieves the cached payload for key.
// Returns ErrCacheMiss if the entry is missing, expired, or undecodable.
func (s *RedisStore) Get(ctx context.Context, key Key) (json.RawMessage, error) {
	data, err := s.rdb.Get(ctx, redisKeyPrefix+key.Fingerprint()).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.WithLabelValues("redis").Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("redis", "get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.evict(ctx, key)
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, ErrCacheMiss
	}

	// Lazy expiry check in case the server-side TTL was longer (e.g. after
	// a config change lowered the TTL).
	if entry.Expired(s.ttl, time.Now()) {
		s.evict(ctx, key)
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, ErrCacheMiss
	}

	body := entry.Body()
	if body == nil {
		s.evict(ctx, key)
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	return body, nil
}

// Put writes an entry for key with the current timestamp.
func (s *RedisStore) Put(ctx context.Context, key Key, payload json.RawMessage, headers map[string]string) error {
	data, err := json.Marshal(NewEntry(payload, headers))
	if err != nil {
		CacheErrors.WithLabelValues("redis", "put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.rdb.Set(ctx, redisKeyPrefix+key.Fingerprint(), data, s.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("redis", "put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear removes all entries under the cache prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.sweep(ctx, func(Entry) bool { return true })
}

// ClearExpired removes entries older than the TTL. With server-side expiry
// this is usually a no-op; it matters after the TTL was lowered.
func (s *RedisStore) ClearExpired(ctx context.Context) error {
	now := time.Now()
	return s.sweep(ctx, func(e Entry) bool { return e.Expired(s.ttl, now) })
}

// sweep iterates all cache keys and deletes those whose entry matches.
// Undecodable entries are always deleted.
func (s *RedisStore) sweep(ctx context.Context, match func(Entry) bool) error {
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := s.rdb.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil || match(entry) {
			if err := s.rdb.Del(ctx, key).Err(); err == nil {
				CacheEvictions.WithLabelValues("redis").Inc()
			}
		}
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("redis", "clear").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}

func (s *RedisStore) evict(ctx context.Context, key Key) {
	if err := s.rdb.Del(ctx, redisKeyPrefix+key.Fingerprint()).Err(); err == nil {
		CacheEvictions.WithLabelValues("redis").Inc()
	}
}
