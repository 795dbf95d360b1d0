// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subarr_events_published_total",
		Help: "Events published on the internal bus by name",
	}, []string{"event"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subarr_events_dropped_total",
		Help: "Events dropped because a subscriber queue was full",
	}, []string{"event"})

	pushClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "subarr_push_clients",
		Help: "Connected websocket push clients",
	})
)

// RecordEventPublished counts a successful bus publish.
func RecordEventPublished(event string) { eventsPublished.WithLabelValues(event).Inc() }

// RecordEventDropped counts a drop on a saturated subscriber.
func RecordEventDropped(event string) { eventsDropped.WithLabelValues(event).Inc() }

// SetPushClients publishes the number of connected push clients.
func SetPushClients(n int) { pushClients.Set(float64(n)) }
