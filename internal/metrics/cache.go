// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subarr_response_cache_ops_total",
		Help: "Response cache operations by backend and result",
	}, []string{"backend", "op", "result"})

	cacheSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "subarr_response_cache_entries",
		Help: "Approximate number of live response cache entries",
	}, []string{"backend"})
)

// RecordCacheOp counts a single cache operation outcome (hit, miss, ok, error).
func RecordCacheOp(backend, op, result string) {
	cacheOps.WithLabelValues(backend, op, result).Inc()
}

// SetCacheSize publishes the approximate entry count for a backend.
func SetCacheSize(backend string, n int) {
	cacheSize.WithLabelValues(backend).Set(float64(n))
}
