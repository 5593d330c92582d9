package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(subscriptionActivationsTotal)
}

var subscriptionActivationsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "subscription_activations_total",
		Help: "Subscription windows opened (first grants and renewals).",
	},
)

func IncSubscriptionActivated() {
	subscriptionActivationsTotal.Inc()
}
