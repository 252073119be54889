package metrics

import (
	"time"

	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EntitlementMetrics интерфейс для метрик подписок
type EntitlementMetrics interface {
	ObserveCheckout(plan, outcome string, took time.Duration)
	ObserveWebhook(eventType, outcome string, took time.Duration)
	IncTierChange(tier string)
	WatcherOpened()
	WatcherClosed()
}

type entitlementMetrics struct {
	log              *logger.Logger
	checkoutSessions *prometheus.CounterVec
	checkoutDuration *prometheus.HistogramVec
	webhookEvents    *prometheus.CounterVec
	webhookDuration  *prometheus.HistogramVec
	tierChanges      *prometheus.CounterVec
	watchers         prometheus.Gauge
}

// NewEntitlementMetrics регистрирует метрики в registry
func NewEntitlementMetrics(registry *prometheus.Registry, log *logger.Logger) EntitlementMetrics {
	factory := promauto.With(registry)

	return &entitlementMetrics{
		log: log,
		checkoutSessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_sessions_total",
				Help: "Checkout session requests by plan and outcome",
			},
			[]string{"plan", "outcome"},
		),
		checkoutDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "checkout_session_duration_seconds",
				Help:    "Time spent creating checkout sessions at the provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		webhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Provider webhook events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		webhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webhook_duration_seconds",
				Help:    "Webhook processing time",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		tierChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitlement_tier_changes_total",
				Help: "Entitlement writes by resulting tier",
			},
			[]string{"tier"},
		),
		watchers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "entitlement_watchers",
				Help: "Currently open entitlement watch streams",
			},
		),
	}
}

// ObserveCheckout учитывает одну попытку создать сессию оплаты
func (m *entitlementMetrics) ObserveCheckout(plan, outcome string, took time.Duration) {
	m.checkoutSessions.WithLabelValues(plan, outcome).Inc()
	m.checkoutDuration.WithLabelValues(outcome).Observe(took.Seconds())
}

// ObserveWebhook учитывает одно событие вебхука
func (m *entitlementMetrics) ObserveWebhook(eventType, outcome string, took time.Duration) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
	m.webhookDuration.WithLabelValues(eventType).Observe(took.Seconds())
}

func (m *entitlementMetrics) IncTierChange(tier string) {
	m.tierChanges.WithLabelValues(tier).Inc()
}

func (m *entitlementMetrics) WatcherOpened() { m.watchers.Inc() }

func (m *entitlementMetrics) WatcherClosed() { m.watchers.Dec() }
