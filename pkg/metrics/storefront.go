// Package metrics exposes the Prometheus collectors used by the API and the
// cron worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Storefront counts checkout, payment and webhook outcomes. The zero value
// and a nil pointer are both safe to use and record nothing.
type Storefront struct {
	orders   *prometheus.CounterVec
	payments *prometheus.CounterVec
	webhooks *prometheus.CounterVec
}

// NewStorefront registers the storefront counters on reg.
func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return &Storefront{}
	}
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Orders placed, by payment method.",
	}, []string{"method"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_verifications_total",
		Help:      "Payment confirmation attempts, by outcome.",
	}, []string{"outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Gateway webhook deliveries, by event and outcome.",
	}, []string{"event", "outcome"})
	reg.MustRegister(orders, payments, webhooks)
	return &Storefront{orders: orders, payments: payments, webhooks: webhooks}
}

func (s *Storefront) OrderCreated(method string) {
	if s == nil || s.orders == nil {
		return
	}
	s.orders.WithLabelValues(normalizeLabel(method)).Inc()
}

func (s *Storefront) PaymentVerification(outcome string) {
	if s == nil || s.payments == nil {
		return
	}
	s.payments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (s *Storefront) WebhookEvent(event, outcome string) {
	if s == nil || s.webhooks == nil {
		return
	}
	s.webhooks.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}
