package database

import (
	"fmt"

	"github.com/inkwell-press/inkwell/internal/config"
)

// Utilization thresholds for pool sizing recommendations.
const (
	highUtilization = 0.8
	lowUtilization  = 0.3
	lowHitRate      = 0.2
	minHitSamples   = 50
)

// TuningReport carries sizing recommendations derived from current
// utilization. It only recommends; live configuration is never mutated.
type TuningReport struct {
	Recommendations []string          `json:"recommendations"`
	SuggestedConfig config.PoolConfig `json:"suggested_config"`
}

// Tune inspects a snapshot against the current configuration and suggests
// adjustments: grow above ~80% utilization, shrink below ~30% (bounded by
// the minimum), and enable caching when the hit rate is low.
func Tune(cfg config.PoolConfig, snap PoolSnapshot) *TuningReport {
	report := &TuningReport{SuggestedConfig: cfg}
	util := snap.Utilization()

	switch {
	case util > highUtilization:
		suggested := cfg.MaxConnections + cfg.MaxConnections/2
		if suggested <= cfg.MaxConnections {
			suggested = cfg.MaxConnections + 1
		}
		report.SuggestedConfig.MaxConnections = suggested
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("utilization %.0f%%: raise max_connections from %d to %d",
				util*100, cfg.MaxConnections, suggested))

	case util < lowUtilization && snap.TotalConnections > 0:
		suggested := cfg.MaxConnections / 2
		if suggested < cfg.MinConnections {
			suggested = cfg.MinConnections
		}
		if suggested < cfg.MaxConnections {
			report.SuggestedConfig.MaxConnections = suggested
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("utilization %.0f%%: lower max_connections from %d to %d",
					util*100, cfg.MaxConnections, suggested))
		}
	}

	if snap.QueriesObserved >= minHitSamples && snap.CacheHitRate < lowHitRate {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("cache hit rate %.0f%%: enable result caching for hot read queries",
				snap.CacheHitRate*100))
	}

	if snap.AcquireTimeouts > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%d acquisitions timed out: consider raising max_connections or acquire_timeout",
				snap.AcquireTimeouts))
	}

	return report
}
