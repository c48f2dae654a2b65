package cache

import (
	"github.com/cofabri/site-backend/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache lookups by resource key and result (hit, miss)",
		},
		[]string{"key", "result"},
	)

	cacheRefreshFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "cache",
			Name:      "refresh_failures_total",
			Help:      "Upstream fetches that failed and left the cached entry untouched",
		},
		[]string{"key"},
	)

	cacheStaleServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "cache",
			Name:      "stale_served_total",
			Help:      "Expired payloads served because the refresh failed",
		},
		[]string{"key"},
	)

	cacheCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "cache",
			Name:      "coalesced_total",
			Help:      "Misses that shared an in-flight upstream fetch",
		},
		[]string{"key"},
	)
)

func recordHit(key string) {
	cacheRequests.WithLabelValues(key, "hit").Inc()
}

func recordMiss(key string) {
	cacheRequests.WithLabelValues(key, "miss").Inc()
}

func recordRefreshFailure(key string) {
	cacheRefreshFailures.WithLabelValues(key).Inc()
}

func recordStale(key string) {
	cacheStaleServed.WithLabelValues(key).Inc()
}

func recordCoalesced(key string) {
	cacheCoalesced.WithLabelValues(key).Inc()
}
