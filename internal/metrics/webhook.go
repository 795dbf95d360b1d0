// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var webhookStages = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "subarr_webhook_stages_total",
	Help: "Webhook pipeline stage executions by outcome",
}, []string{"stage", "outcome"})

// RecordWebhookStage counts one pipeline stage execution.
func RecordWebhookStage(stage, outcome string) {
	webhookStages.WithLabelValues(stage, outcome).Inc()
}
