package blocks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts block sets served from cache.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockd_cache_hits_total",
			Help: "Total number of block sets served from cache",
		},
	)

	// CacheMisses counts lookups that went to the block API.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockd_cache_misses_total",
			Help: "Total number of block set cache misses",
		},
	)

	// CacheErrors counts failed cache operations.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockd_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set"
	)

	// BlockFetches counts single block fetches by outcome.
	BlockFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockd_block_fetches_total",
			Help: "Total number of block API requests",
		},
		[]string{"result"}, // "ok", "bad_status", "error"
	)

	// BlockFetchDuration tracks block API latency.
	BlockFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blockd_block_fetch_duration_seconds",
			Help:    "Block API request duration",
			Buckets: prometheus.DefBuckets,
		},
	)
)
