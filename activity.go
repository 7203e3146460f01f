package authflow

import (
	"context"
	"time"
)

// AuditEventType enumerates audit event categories published to sinks.
type AuditEventType string

const (
	AuditEventActivity AuditEventType = "auth.activity"
	AuditEventSignup   AuditEventType = "auth.signup_attempt"
)

// AuditEvent is the transport-agnostic shape handed to ActivitySinks after
// a record was persisted (or failed to persist).
type AuditEvent struct {
	EventType  AuditEventType
	Activity   *ActivityRecord
	Signup     *SignupAttempt
	Persisted  bool
	OccurredAt time.Time
}

// ActivitySink consumes audit events for telemetry or forwarding.
type ActivitySink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event AuditEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event AuditEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, AuditEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
