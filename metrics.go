package authflow

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID int

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginLocked
	MetricTwoFactorRequired
	MetricTwoFactorSuccess
	MetricTwoFactorFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricLogout
	MetricMFAEnabled
	MetricSignUp
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricPurposeReplayBlocked

	metricIDCount
)

var metricNames = [metricIDCount]string{
	"authflow_login_success_total",
	"authflow_login_failure_total",
	"authflow_login_locked_total",
	"authflow_twofactor_required_total",
	"authflow_twofactor_success_total",
	"authflow_twofactor_failure_total",
	"authflow_refresh_success_total",
	"authflow_refresh_failure_total",
	"authflow_logout_total",
	"authflow_mfa_enabled_total",
	"authflow_signup_total",
	"authflow_password_reset_request_total",
	"authflow_password_reset_success_total",
	"authflow_purpose_replay_blocked_total",
}

// Name returns the exported instrument name of the counter.
func (id MetricID) Name() string {
	if id < 0 || id >= metricIDCount {
		return "authflow_unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every counter id in declaration order, for exporters.
func MetricIDs() []MetricID {
	ids := make([]MetricID, metricIDCount)
	for i := range ids {
		ids[i] = MetricID(i)
	}
	return ids
}

// Metrics holds the engine's atomic counters. All operations are no-ops on
// a nil receiver so disabled metrics cost nothing on hot paths.
type Metrics struct {
	counters [metricIDCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{}
}

// Inc increments the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id < 0 || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot deep-copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil {
		return snap
	}
	for i := range m.counters {
		snap.Counters[MetricID(i)] = m.counters[i].Load()
	}
	return snap
}
