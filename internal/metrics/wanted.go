// SPDX-License-Identifier: MIT

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wantedItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "subarr_wanted_items",
		Help: "Wanted items by status",
	}, []string{"status"})

	schedulerPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subarr_scheduler_passes_total",
		Help: "Completed scheduler passes by kind (scan, process, watchdog)",
	}, []string{"kind"})

	schedulerPassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "subarr_scheduler_pass_duration_seconds",
		Help:    "Duration of a full scheduler pass",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800},
	}, []string{"kind"})
)

// SetWantedCount publishes the row count for one wanted status.
func SetWantedCount(status string, n int) {
	wantedItems.WithLabelValues(status).Set(float64(n))
}

// RecordSchedulerPass records one completed pass of the given kind.
func RecordSchedulerPass(kind string, d time.Duration) {
	schedulerPasses.WithLabelValues(kind).Inc()
	schedulerPassDuration.WithLabelValues(kind).Observe(d.Seconds())
}
