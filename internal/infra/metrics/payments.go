package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		transactionsTotal,
		paymentsRevenueTotal,
		webhookEventsTotal,
	)
}

var (
	transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_transactions_total",
			Help: "Ledger resolutions by terminal status (success/failed).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_revenue_total",
			Help: "The total monetary value of successful payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Webhook deliveries by event type and disposition (processed/ignored/rejected).",
		},
		[]string{"event", "disposition"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncTransaction(status string) {
	transactionsTotal.WithLabelValues(norm(status)).Inc()
}

func AddRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncWebhookEvent(event, disposition string) {
	webhookEventsTotal.WithLabelValues(norm(event), norm(disposition)).Inc()
}
