package tokenlife

import "sync/atomic"

// MetricID names one in-process counter.
type MetricID uint16

const (
	MetricIssueSuccess MetricID = iota
	MetricIssueFailure
	MetricValidateSuccess
	MetricValidateFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricRefreshRateLimited
	MetricGenerationCapHit
	MetricFamilyRevoked
	MetricTokenRevoked
	MetricStoreUnavailable

	metricCount
)

var metricNames = [metricCount]string{
	MetricIssueSuccess:         "issue_success",
	MetricIssueFailure:         "issue_failure",
	MetricValidateSuccess:      "validate_success",
	MetricValidateFailure:      "validate_failure",
	MetricRefreshSuccess:       "refresh_success",
	MetricRefreshFailure:       "refresh_failure",
	MetricRefreshReuseDetected: "refresh_reuse_detected",
	MetricRefreshRateLimited:   "refresh_rate_limited",
	MetricGenerationCapHit:     "generation_cap_hit",
	MetricFamilyRevoked:        "family_revoked",
	MetricTokenRevoked:         "token_revoked",
	MetricStoreUnavailable:     "store_unavailable",
}

// Name returns the stable string name of the metric.
func (id MetricID) Name() string {
	if id >= metricCount {
		return "unknown"
	}
	return metricNames[id]
}

// Metrics is a fixed set of lock-free counters.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{}
}

// Inc bumps a counter. Safe on a nil receiver.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies all counters. Safe on a nil receiver.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricCount),
	}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
