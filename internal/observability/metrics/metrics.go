package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics carries the service counters and the registry they live in. Each
// instance owns its registry, so tests can build one without colliding with
// the default registerer.
type Metrics struct {
	registry *prometheus.Registry

	OrdersCreated        *prometheus.CounterVec
	WebhookEvents        *prometheus.CounterVec
	ConversionDispatches *prometheus.CounterVec
	CardTokenRequests    *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_orders_created_total",
			Help: "Orders created, by payment method.",
		}, []string{"payment_method"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_webhook_events_total",
			Help: "Lifecycle events received via webhook, by event and outcome.",
		}, []string{"event", "outcome"}),
		ConversionDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_conversion_dispatches_total",
			Help: "Conversion dispatch attempts, by event and result status.",
		}, []string{"event", "status"}),
		CardTokenRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_card_token_requests_total",
			Help: "Card tokenization attempts, by gateway and outcome.",
		}, []string{"gateway", "outcome"}),
	}

	registry.MustRegister(
		m.OrdersCreated,
		m.WebhookEvents,
		m.ConversionDispatches,
		m.CardTokenRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
