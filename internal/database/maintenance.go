package database

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-press/inkwell/internal/cache"
	"github.com/inkwell-press/inkwell/internal/config"
)

// MaintenanceScheduler owns the pool's background upkeep: idle-connection
// reaping, cache expiry sweeps and periodic stats reporting. Each task
// runs on its own interval, and a failing tick never stops the loop.
type MaintenanceScheduler struct {
	logger  *zap.Logger
	config  config.MaintenanceConfig
	pool    *ConnectionPool
	cache   *cache.QueryCache
	metrics *MetricsLog
	sinks   []StatsSink

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewMaintenanceScheduler creates a scheduler. Snapshots are delivered to
// every sink in order; a zap reporter is always included.
func NewMaintenanceScheduler(logger *zap.Logger, cfg config.MaintenanceConfig, pool *ConnectionPool, qc *cache.QueryCache, metrics *MetricsLog, sinks ...StatsSink) *MaintenanceScheduler {
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = 10 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = 10 * time.Second
	}
	return &MaintenanceScheduler{
		logger:  logger,
		config:  cfg,
		pool:    pool,
		cache:   qc,
		metrics: metrics,
		sinks:   sinks,
	}
}

// Start launches the three maintenance loops.
func (s *MaintenanceScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(3)
	go s.loop(ctx, s.config.ReapInterval, "reaper", s.reapTick)
	go s.loop(ctx, s.config.SweepInterval, "cache-sweep", s.sweepTick)
	go s.loop(ctx, s.config.StatsInterval, "stats", s.statsTick)

	s.logger.Info("Maintenance scheduler started",
		zap.Duration("reap_interval", s.config.ReapInterval),
		zap.Duration("sweep_interval", s.config.SweepInterval),
		zap.Duration("stats_interval", s.config.StatsInterval))
}

// Stop terminates the loops and waits for them to finish.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.started = false

	s.logger.Info("Maintenance scheduler stopped")
}

func (s *MaintenanceScheduler) loop(ctx context.Context, interval time.Duration, name string, tick func()) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTick(name, tick)
		}
	}
}

// runTick contains task panics so the next scheduled tick still happens.
func (s *MaintenanceScheduler) runTick(name string, tick func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Maintenance task panicked",
				zap.String("task", name),
				zap.Any("panic", r))
		}
	}()
	tick()
}

func (s *MaintenanceScheduler) reapTick() {
	now := time.Now()
	if reaped := s.pool.Reap(now); reaped > 0 {
		s.logger.Debug("Reaped idle connections", zap.Int("count", reaped))
	}
	for _, conn := range s.pool.LeakSuspects(now) {
		s.logger.Warn("Connection held without activity past leak threshold",
			zap.String("id", conn.ID()),
			zap.Time("last_used", conn.LastUsedAt()))
	}
}

func (s *MaintenanceScheduler) sweepTick() {
	if removed := s.cache.Sweep(time.Now()); removed > 0 {
		s.logger.Debug("Swept expired cache entries", zap.Int("count", removed))
	}
}

func (s *MaintenanceScheduler) statsTick() {
	snap := BuildSnapshot(s.pool, s.cache, s.metrics)
	s.logger.Info("Pool statistics",
		zap.Int("total_connections", snap.TotalConnections),
		zap.Int("active_connections", snap.ActiveConnections),
		zap.Int("idle_connections", snap.IdleConnections),
		zap.Float64("avg_query_time_ms", snap.AvgQueryTimeMs),
		zap.Int("cache_entries", snap.CacheEntries),
		zap.Float64("cache_hit_rate", snap.CacheHitRate))

	for _, sink := range s.sinks {
		sink.PublishSnapshot(snap)
	}
}

// BuildSnapshot assembles the derived observability view.
func BuildSnapshot(pool *ConnectionPool, qc *cache.QueryCache, metrics *MetricsLog) PoolSnapshot {
	stats := pool.Stats()
	agg := metrics.Aggregate()

	return PoolSnapshot{
		Timestamp:            time.Now(),
		TotalConnections:     stats.TotalConnections,
		ActiveConnections:    stats.ActiveConnections,
		IdleConnections:      stats.IdleConnections,
		ConnectionsCreated:   stats.Created,
		ConnectionsDestroyed: stats.Destroyed,
		ConnectionsReused:    stats.Reused,
		AcquireTimeouts:      stats.AcquireTimeouts,
		AvgWaitTimeMs:        float64(stats.AvgWaitTime) / float64(time.Millisecond),
		QueriesObserved:      agg.Count,
		AvgQueryTimeMs:       float64(agg.AvgDuration) / float64(time.Millisecond),
		MaxQueryTimeMs:       float64(agg.MaxDuration) / float64(time.Millisecond),
		CacheEntries:         qc.Len(),
		CacheHits:            qc.Hits(),
		CacheMisses:          qc.Misses(),
		CacheHitRate:         qc.HitRate(),
	}
}
