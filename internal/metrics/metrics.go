// Package metrics exposes the Prometheus counters and gauges the platform's
// components report to, grounded on infrastructure/metrics's one-struct-of-
// collectors-registered-once pattern.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// BarCache holds the per-run/global counters spec §4.1 names explicitly.
type BarCache struct {
	CacheHit          prometheus.Counter
	CacheMiss         prometheus.Counter
	CacheSet          prometheus.Counter
	Bytes             prometheus.Counter
	LockWaits         prometheus.Counter
	ProviderFetch     prometheus.Counter
	StampedePrevented prometheus.Counter
	StampedeFallback  prometheus.Counter
}

// NewBarCache registers and returns the bar-cache counters on reg.
func NewBarCache(reg prometheus.Registerer) *BarCache {
	m := &BarCache{
		CacheHit:          prometheus.NewCounter(prometheus.CounterOpts{Name: "barcache_cache_hit_total"}),
		CacheMiss:         prometheus.NewCounter(prometheus.CounterOpts{Name: "barcache_cache_miss_total"}),
		CacheSet:          prometheus.NewCounter(prometheus.CounterOpts{Name: "barcache_cache_set_total"}),
		Bytes:             prometheus.NewCounter(prometheus.CounterOpts{Name: "barcache_bytes_total"}),
		LockWaits:         prometheus.NewCounter(prometheus.CounterOpts{Name: "barcache_lock_waits_total"}),
		ProviderFetch:     prometheus.NewCounter(prometheus.CounterOpts{Name: "barcache_provider_fetch_total"}),
		StampedePrevented: prometheus.NewCounter(prometheus.CounterOpts{Name: "barcache_stampede_prevented_total"}),
		StampedeFallback:  prometheus.NewCounter(prometheus.CounterOpts{Name: "barcache_stampede_fallback_total"}),
	}
	if reg != nil {
		reg.MustRegister(m.CacheHit, m.CacheMiss, m.CacheSet, m.Bytes, m.LockWaits,
			m.ProviderFetch, m.StampedePrevented, m.StampedeFallback)
	}
	return m
}

// Fleet holds the fleet kill-switch tier gauge and backtest/audit gauges.
type Fleet struct {
	Tier            prometheus.Gauge
	Drawdown        prometheus.Gauge
	BacktestSeconds prometheus.Histogram
	AuditChainLen   prometheus.Gauge
}

// NewFleet registers and returns the fleet/backtest/audit gauges on reg.
func NewFleet(reg prometheus.Registerer) *Fleet {
	m := &Fleet{
		Tier:            prometheus.NewGauge(prometheus.GaugeOpts{Name: "fleet_kill_switch_tier"}),
		Drawdown:        prometheus.NewGauge(prometheus.GaugeOpts{Name: "fleet_drawdown_pct"}),
		BacktestSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{Name: "backtest_duration_seconds"}),
		AuditChainLen:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "audit_chain_length"}),
	}
	if reg != nil {
		reg.MustRegister(m.Tier, m.Drawdown, m.BacktestSeconds, m.AuditChainLen)
	}
	return m
}
