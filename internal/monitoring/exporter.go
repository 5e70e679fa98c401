// Package monitoring exposes the data layer's observability surface: a
// Prometheus exporter fed by pool snapshots and an HTTP server with
// health, stats and metrics endpoints.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/inkwell-press/inkwell/internal/database"
)

// Exporter publishes pool snapshots as Prometheus metrics. It implements
// database.StatsSink.
type Exporter struct {
	registry *prometheus.Registry

	totalConnections     prometheus.Gauge
	activeConnections    prometheus.Gauge
	idleConnections      prometheus.Gauge
	connectionsCreated   prometheus.Gauge
	connectionsDestroyed prometheus.Gauge
	acquireTimeouts      prometheus.Gauge
	avgWaitTimeMs        prometheus.Gauge
	avgQueryTimeMs       prometheus.Gauge
	cacheEntries         prometheus.Gauge
	cacheHitRate         prometheus.Gauge
}

// NewExporter creates an exporter with its own registry.
func NewExporter() *Exporter {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "inkwell",
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		})
	}

	e := &Exporter{
		registry:             prometheus.NewRegistry(),
		totalConnections:     gauge("total_connections", "Live connections in the pool"),
		activeConnections:    gauge("active_connections", "Connections currently checked out"),
		idleConnections:      gauge("idle_connections", "Connections sitting idle"),
		connectionsCreated:   gauge("connections_created_total", "Connections created since start"),
		connectionsDestroyed: gauge("connections_destroyed_total", "Connections destroyed since start"),
		acquireTimeouts:      gauge("acquire_timeouts_total", "Acquisitions that timed out"),
		avgWaitTimeMs:        gauge("avg_wait_time_ms", "Average acquisition wait in milliseconds"),
		avgQueryTimeMs:       gauge("avg_query_time_ms", "Average query latency in milliseconds"),
		cacheEntries:         gauge("cache_entries", "Live query cache entries"),
		cacheHitRate:         gauge("cache_hit_rate", "Query cache hit rate"),
	}

	e.registry.MustRegister(
		e.totalConnections, e.activeConnections, e.idleConnections,
		e.connectionsCreated, e.connectionsDestroyed, e.acquireTimeouts,
		e.avgWaitTimeMs, e.avgQueryTimeMs, e.cacheEntries, e.cacheHitRate,
	)
	return e
}

// Registry returns the exporter's Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// PublishSnapshot updates the gauges from a snapshot.
func (e *Exporter) PublishSnapshot(snap database.PoolSnapshot) {
	e.totalConnections.Set(float64(snap.TotalConnections))
	e.activeConnections.Set(float64(snap.ActiveConnections))
	e.idleConnections.Set(float64(snap.IdleConnections))
	e.connectionsCreated.Set(float64(snap.ConnectionsCreated))
	e.connectionsDestroyed.Set(float64(snap.ConnectionsDestroyed))
	e.acquireTimeouts.Set(float64(snap.AcquireTimeouts))
	e.avgWaitTimeMs.Set(snap.AvgWaitTimeMs)
	e.avgQueryTimeMs.Set(snap.AvgQueryTimeMs)
	e.cacheEntries.Set(float64(snap.CacheEntries))
	e.cacheHitRate.Set(snap.CacheHitRate)
}
