package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend (file, redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dip_cache_hits_total",
			Help: "Total number of DIP cache hits",
		},
		[]string{"backend"},
	)

	// CacheMisses tracks cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dip_cache_misses_total",
			Help: "Total number of DIP cache misses",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dip_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"backend", "operation"}, // "get", "put", "delete", "clear"
	)

	// CacheEvictions tracks removed entries (expired or invalid)
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dip_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		},
		[]string{"backend"},
	)
)
