// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "subarr_circuit_breaker_state",
		Help: "Circuit breaker state by provider (the active state carries 1, others 0)",
	}, []string{"provider", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subarr_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker transitions to the open state",
	}, []string{"provider", "reason"})
)

var circuitStates = []string{"closed", "half_open", "open"}

// SetCircuitBreakerState records the active circuit breaker state for a provider.
func SetCircuitBreakerState(provider, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(provider, s).Set(value)
	}
}

// RecordCircuitBreakerTrip increments the trip counter when a breaker opens.
func RecordCircuitBreakerTrip(provider, reason string) {
	circuitBreakerTrips.WithLabelValues(provider, reason).Inc()
}
