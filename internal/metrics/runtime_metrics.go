package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RuntimeMetrics периодически снимает показатели рантайма Go
type RuntimeMetrics struct {
	log         *logger.Logger
	goroutines  prometheus.Gauge
	memoryAlloc prometheus.Gauge
	memorySys   prometheus.Gauge
	gcRuns      prometheus.Counter
	lastNumGC   uint32
}

// NewRuntimeMetrics регистрирует метрики рантайма
func NewRuntimeMetrics(registry *prometheus.Registry, log *logger.Logger) *RuntimeMetrics {
	factory := promauto.With(registry)
	return &RuntimeMetrics{
		log: log,
		goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Name: "system_goroutines",
			Help: "Current number of goroutines",
		}),
		memoryAlloc: factory.NewGauge(prometheus.GaugeOpts{
			Name: "system_memory_alloc_bytes",
			Help: "Currently allocated memory in bytes",
		}),
		memorySys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "system_memory_system_bytes",
			Help: "Total memory obtained from system in bytes",
		}),
		gcRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "system_memory_gc_total",
			Help: "Total number of garbage collections",
		}),
	}
}

// Record снимает текущие значения
func (m *RuntimeMetrics) Record() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.memoryAlloc.Set(float64(memStats.Alloc))
	m.memorySys.Set(float64(memStats.Sys))
	// NumGC накопительный, в счетчик идет только прирост
	m.gcRuns.Add(float64(memStats.NumGC - m.lastNumGC))
	m.lastNumGC = memStats.NumGC
}

// Run снимает метрики каждые interval до отмены ctx
func (m *RuntimeMetrics) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.log.Info("Runtime metrics recording started with interval %s", interval)
	m.Record()
	for {
		select {
		case <-ticker.C:
			m.Record()
		case <-ctx.Done():
			m.log.Info("Runtime metrics recording stopped")
			return nil
		}
	}
}
