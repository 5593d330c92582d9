package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(webhookEventsTotal)
}

var webhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Provider callbacks by provider and outcome (confirmed/canceled/chargeback/duplicate/stale/rejected/unmatched/ignored).",
	},
	[]string{"provider", "outcome"},
)

func IncWebhookEvent(provider, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}
