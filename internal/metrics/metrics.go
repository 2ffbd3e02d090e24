// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus instrumentation for the matching
// pipeline and its cache.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parts_cache_hits_total",
		Help: "Cache lookups served from a live entry",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parts_cache_misses_total",
		Help: "Cache lookups that invoked the compute function",
	})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parts_cache_evictions_total",
		Help: "Entries removed by expiry or capacity eviction",
	})

	CatalogCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parts_catalog_calls_total",
			Help: "Catalog API calls by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	CatalogCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parts_catalog_call_duration_seconds",
			Help:    "Catalog API call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RowsMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parts_rows_matched_total",
			Help: "Row match outcomes by resolved status",
		},
		[]string{"status"},
	)
)

// RecordCatalogCall records one catalog API call.
func RecordCatalogCall(endpoint, status string, duration time.Duration) {
	CatalogCalls.WithLabelValues(endpoint, status).Inc()
	CatalogCallDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
