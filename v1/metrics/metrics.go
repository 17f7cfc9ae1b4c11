package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AcquireCounter tracks successful lock acquisitions.
	AcquireCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idemlock_acquire_total",
		Help: "Total number of successful lock acquisitions",
	})
	// ConflictCounter tracks acquisition attempts that found the lock held.
	ConflictCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idemlock_conflict_total",
		Help: "Total number of lock acquisition conflicts",
	})
	// CacheHitCounter tracks result cache hits.
	CacheHitCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idemlock_cache_hits_total",
		Help: "Total number of result cache hits",
	})
	// CacheMissCounter tracks result cache misses.
	CacheMissCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idemlock_cache_misses_total",
		Help: "Total number of result cache misses",
	})
	// StaleReleaseCounter tracks releases that found a foreign or missing token.
	StaleReleaseCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idemlock_stale_release_total",
		Help: "Total number of lock releases that found the token already replaced",
	})
	// StoreErrorCounter tracks backing store failures, kept separate from
	// conflicts so outages are visible as outages.
	StoreErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idemlock_store_errors_total",
		Help: "Total number of backing store errors",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers idemlock core metrics on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		AcquireCounter,
		ConflictCounter,
		CacheHitCounter,
		CacheMissCounter,
		StaleReleaseCounter,
		StoreErrorCounter,
	)
}
