package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		intentsTotal,
		intentsExpiredTotal,
		paymentsRevenueTotal,
	)
}

var (
	intentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_total",
			Help: "Payment intents by provider and outcome (created/checkout_failed).",
		},
		[]string{"provider", "outcome"},
	)

	intentsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_intents_expired_total",
			Help: "Pending intents flipped to expired by the sweep.",
		},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of confirmed payments, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncIntent(provider, outcome string) {
	intentsTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func AddIntentsExpired(n int64) {
	intentsExpiredTotal.Add(float64(n))
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}
