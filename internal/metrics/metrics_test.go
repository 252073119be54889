package metrics

import (
	"testing"
	"time"

	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEntitlementMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEntitlementMetrics(reg, logger.Nop()).(*entitlementMetrics)

	m.ObserveCheckout("pro", "created", 120*time.Millisecond)
	m.ObserveCheckout("pro", "created", 80*time.Millisecond)
	m.ObserveWebhook("checkout.session.completed", "applied", time.Millisecond)
	m.IncTierChange("pro")
	m.WatcherOpened()
	m.WatcherOpened()
	m.WatcherClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkoutSessions.WithLabelValues("pro", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookEvents.WithLabelValues("checkout.session.completed", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tierChanges.WithLabelValues("pro")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.watchers))
}

func TestRuntimeMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRuntimeMetrics(reg, logger.Nop())

	m.Record()

	assert.Greater(t, testutil.ToFloat64(m.goroutines), 0.0)
	assert.Greater(t, testutil.ToFloat64(m.memorySys), 0.0)
}
