package authflow

import (
	"context"

	"github.com/halvex/authflow/jwt"
	"github.com/halvex/authflow/password"
)

// PurposeTwoFactor is the purpose string binding a bridge token to the
// login-time second-factor verification step.
const PurposeTwoFactor = "2fa_verification"

// Engine is the authentication and session-lifecycle engine. It is safe
// for concurrent use; all mutable account state lives in the host's
// [UserStore] and every mutation is a single-field update with
// last-writer-wins semantics.
type Engine struct {
	config  Config
	store   UserStore
	sender  EmailSender
	clock   Clock
	hasher  *password.Hasher
	totp    *totpManager
	access  *jwt.Manager
	purpose *jwt.PurposeManager
	guard   *replayGuard
	audit   *auditDispatcher
	metrics *Metrics
}

// Close stops the audit dispatcher after draining buffered events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, subjectID string, err error, metadata map[string]string) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: e.clock.Now(),
		EventType: eventType,
		SubjectID: subjectID,
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}
	e.audit.Emit(ctx, event)
}
