package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsExpiredTotal,
		subscriptionsActivatedTotal,
	)
}

var (
	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_subscriptions_expired_total",
			Help: "Total number of users downgraded by the expiry sweeper.",
		},
	)

	subscriptionsActivatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_subscriptions_activated_total",
			Help: "Paid subscription activations by tier.",
		},
		[]string{"tier"},
	)
)

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func IncSubscriptionActivated(tier string) {
	subscriptionsActivatedTotal.WithLabelValues(norm(tier)).Inc()
}
