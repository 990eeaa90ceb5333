// Package cache provides response caching for DIP API requests.
//
// Cached responses are keyed by a fingerprint: the SHA-256 digest of the
// normalized request (endpoint plus sorted query parameters). Two logical
// requests that differ only in parameter insertion order share a fingerprint.
//
// Two store backends implement the same Store interface:
//
//   - FileStore: one file per entry under a cache directory, named
//     <fingerprint>.json. Writes go to a temporary file first and are moved
//     into place with an atomic rename, so a concurrent reader sees either
//     the old entry or the new one, never a torn write.
//   - RedisStore: the same entry format stored in Redis, for deployments
//     where several processes share one cache.
//
// Entries expire lazily: expiry is checked on read against the store's TTL,
// there is no background eviction. ClearExpired sweeps the store on demand.
//
// The cache is a resilience optimization, not a correctness requirement.
// Callers are expected to treat Put/Clear errors as non-fatal: log and keep
// going. The request executor in pkg/client does exactly that.
//
// # Entry format
//
// Each entry is a JSON record:
//
//	{
//	  "timestamp": 1724400000.123,
//	  "data": {"json": {...decoded body...}, "headers": {"Content-Type": "..."}}
//	}
//
// Readers also tolerate the raw-bytes shape {"data": {"content": "..."}}
// written by other producers.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - dip_cache_hits_total{backend} - Cache hits
//   - dip_cache_misses_total{backend} - Cache misses
//   - dip_cache_errors_total{backend, operation} - Store operation errors
//   - dip_cache_evictions_total{backend} - Entries removed (expired or invalid)
package cache
