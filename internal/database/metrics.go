package database

import (
	"sync"
	"time"
)

// metricsCapacity bounds the metrics ring; oldest entries are evicted
// first. The log is observability-only and never drives correctness.
const metricsCapacity = 1000

// QueryMetric records one query execution.
type QueryMetric struct {
	Query        string
	Duration     time.Duration
	AffectedRows int64
	CacheHit     bool
	Timestamp    time.Time
}

// MetricAggregate summarizes the retained metrics.
type MetricAggregate struct {
	Count       int
	AvgDuration time.Duration
	MaxDuration time.Duration
	CacheHits   int
	HitRate     float64
}

// MetricsLog is a bounded append-only ring of recent query executions,
// appended in completion order.
type MetricsLog struct {
	mu      sync.Mutex
	entries [metricsCapacity]QueryMetric
	next    int
	size    int
}

// NewMetricsLog creates an empty metrics log.
func NewMetricsLog() *MetricsLog {
	return &MetricsLog{}
}

// Record appends a metric, evicting the oldest entry when full.
func (l *MetricsLog) Record(m QueryMetric) {
	l.mu.Lock()
	l.entries[l.next] = m
	l.next = (l.next + 1) % metricsCapacity
	if l.size < metricsCapacity {
		l.size++
	}
	l.mu.Unlock()
}

// Len returns the number of retained entries.
func (l *MetricsLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Snapshot returns the retained entries, oldest first.
func (l *MetricsLog) Snapshot() []QueryMetric {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]QueryMetric, l.size)
	start := 0
	if l.size == metricsCapacity {
		start = l.next
	}
	for i := 0; i < l.size; i++ {
		out[i] = l.entries[(start+i)%metricsCapacity]
	}
	return out
}

// Aggregate computes summary statistics over the retained entries.
func (l *MetricsLog) Aggregate() MetricAggregate {
	l.mu.Lock()
	defer l.mu.Unlock()

	agg := MetricAggregate{Count: l.size}
	if l.size == 0 {
		return agg
	}

	var total time.Duration
	start := 0
	if l.size == metricsCapacity {
		start = l.next
	}
	for i := 0; i < l.size; i++ {
		m := l.entries[(start+i)%metricsCapacity]
		total += m.Duration
		if m.Duration > agg.MaxDuration {
			agg.MaxDuration = m.Duration
		}
		if m.CacheHit {
			agg.CacheHits++
		}
	}
	agg.AvgDuration = total / time.Duration(l.size)
	agg.HitRate = float64(agg.CacheHits) / float64(l.size)
	return agg
}
