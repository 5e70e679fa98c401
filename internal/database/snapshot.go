package database

import "time"

// PoolSnapshot is the aggregated observability view combining connection
// counts, query metric aggregates and cache state. It is derived on
// demand, never stored.
type PoolSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	TotalConnections     int     `json:"total_connections"`
	ActiveConnections    int     `json:"active_connections"`
	IdleConnections      int     `json:"idle_connections"`
	ConnectionsCreated   uint64  `json:"connections_created"`
	ConnectionsDestroyed uint64  `json:"connections_destroyed"`
	ConnectionsReused    uint64  `json:"connections_reused"`
	AcquireTimeouts      uint64  `json:"acquire_timeouts"`
	AvgWaitTimeMs        float64 `json:"avg_wait_time_ms"`

	QueriesObserved int     `json:"queries_observed"`
	AvgQueryTimeMs  float64 `json:"avg_query_time_ms"`
	MaxQueryTimeMs  float64 `json:"max_query_time_ms"`

	CacheEntries int     `json:"cache_entries"`
	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// Utilization returns active / total, or 0 for an empty pool.
func (s PoolSnapshot) Utilization() float64 {
	if s.TotalConnections == 0 {
		return 0
	}
	return float64(s.ActiveConnections) / float64(s.TotalConnections)
}

// StatsSink receives periodic snapshots from the maintenance scheduler.
// The logging reporter and the Prometheus exporter both implement it.
type StatsSink interface {
	PublishSnapshot(PoolSnapshot)
}
