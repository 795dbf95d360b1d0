// SPDX-License-Identifier: MIT

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subarr_provider_searches_total",
		Help: "Provider search calls by outcome",
	}, []string{"provider", "outcome"})

	providerSearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "subarr_provider_search_duration_seconds",
		Help:    "Wall-clock duration of provider search calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	providerDownloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subarr_provider_downloads_total",
		Help: "Provider subtitle downloads by outcome",
	}, []string{"provider", "outcome"})
)

// RecordProviderSearch records one search call and its duration.
func RecordProviderSearch(provider, outcome string, d time.Duration) {
	providerSearches.WithLabelValues(provider, outcome).Inc()
	providerSearchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordProviderDownload records one download attempt outcome.
func RecordProviderDownload(provider, outcome string) {
	providerDownloads.WithLabelValues(provider, outcome).Inc()
}
