package authflow

import (
	"context"
	"sync"
	"time"
)

// DefaultAuditQueueSize bounds the number of pending audit writes.
const DefaultAuditQueueSize = 256

// AuditStore persists audit rows.
type AuditStore interface {
	InsertActivity(ctx context.Context, record *ActivityRecord) error
	InsertSignupAttempt(ctx context.Context, record *SignupAttempt) error
}

// ActivityEntry describes an auth activity to record.
type ActivityEntry struct {
	Email  string
	Type   ActivityType
	Status ActivityStatus
	UserID string
}

// SignupAttemptEntry describes one phase of a signup attempt.
type SignupAttemptEntry struct {
	Email    string
	FullName string
	Role     Role
	RFID     string
	Status   SignupStatus
	UserID   string
	Error    string
}

// AuditLogger appends audit rows without ever affecting the outcome of the
// calling operation. Writes are queued and applied in FIFO order by a single
// worker; failures are logged and dropped.
type AuditLogger struct {
	store       AuditStore
	sinks       []ActivitySink
	logger      Logger
	now         func() time.Time
	synchronous bool
	queueSize   int

	mu      sync.Mutex
	queue   chan auditJob
	done    chan struct{}
	closed  bool
	started bool
}

type auditJob struct {
	ctx      context.Context
	activity *ActivityRecord
	signup   *SignupAttempt
	flushed  chan struct{}
}

// AuditOption customizes an AuditLogger.
type AuditOption func(*AuditLogger)

// WithAuditSynchronous writes records inline instead of queueing them.
func WithAuditSynchronous() AuditOption {
	return func(a *AuditLogger) {
		a.synchronous = true
	}
}

// WithAuditQueueSize overrides the pending write bound.
func WithAuditQueueSize(size int) AuditOption {
	return func(a *AuditLogger) {
		if size > 0 {
			a.queueSize = size
		}
	}
}

// WithAuditLogger sets the logger used for swallowed failures.
func WithAuditLogger(logger Logger) AuditOption {
	return func(a *AuditLogger) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAuditSink adds a sink notified for every record.
func WithAuditSink(sink ActivitySink) AuditOption {
	return func(a *AuditLogger) {
		if sink != nil {
			a.sinks = append(a.sinks, sink)
		}
	}
}

// WithAuditClock injects the clock used for record timestamps.
func WithAuditClock(clock func() time.Time) AuditOption {
	return func(a *AuditLogger) {
		if clock != nil {
			a.now = clock
		}
	}
}

// NewAuditLogger returns an AuditLogger writing to store. A nil store is
// allowed; records then only reach the sinks.
func NewAuditLogger(store AuditStore, opts ...AuditOption) *AuditLogger {
	a := &AuditLogger{
		store:     store,
		logger:    DiscardLogger(),
		now:       time.Now,
		queueSize: DefaultAuditQueueSize,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	if !a.synchronous {
		a.queue = make(chan auditJob, a.queueSize)
		a.done = make(chan struct{})
		a.started = true
		go a.run()
	}

	return a
}

// LogActivity records an activity row.
func (a *AuditLogger) LogActivity(ctx context.Context, entry ActivityEntry) {
	if a == nil {
		return
	}
	info := ClientInfoFromContext(ctx)
	now := a.now()
	record := &ActivityRecord{
		UserID:       parseUserID(entry.UserID),
		Email:        entry.Email,
		ActivityType: entry.Type,
		Status:       entry.Status,
		IPAddress:    stringPtr(info.IP),
		UserAgent:    info.UserAgent,
		CreatedAt:    &now,
	}
	a.submit(ctx, auditJob{activity: record})
}

// LogSignupAttempt records one signup attempt phase.
func (a *AuditLogger) LogSignupAttempt(ctx context.Context, entry SignupAttemptEntry) {
	if a == nil {
		return
	}
	now := a.now()
	record := &SignupAttempt{
		Email:     entry.Email,
		FullName:  entry.FullName,
		Role:      entry.Role,
		RFID:      stringPtr(entry.RFID),
		Status:    entry.Status,
		UserID:    parseUserID(entry.UserID),
		Error:     stringPtr(entry.Error),
		CreatedAt: &now,
	}
	a.submit(ctx, auditJob{signup: record})
}

// Flush blocks until every record submitted before the call was handled,
// or ctx is done.
func (a *AuditLogger) Flush(ctx context.Context) error {
	if a == nil || a.synchronous {
		return nil
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	flushed := make(chan struct{})
	select {
	case a.queue <- auditJob{flushed: flushed}:
		a.mu.Unlock()
	case <-ctx.Done():
		a.mu.Unlock()
		return ctx.Err()
	}

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending writes and stops the worker.
func (a *AuditLogger) Close(ctx context.Context) error {
	if a == nil || a.synchronous {
		return nil
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AuditLogger) submit(ctx context.Context, job auditJob) {
	// Audit writes outlive the request that triggered them.
	job.ctx = context.WithoutCancel(ctx)

	if a.synchronous {
		a.write(job)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		a.logger.Warn("audit logger closed, dropping record", auditArgs(job)...)
		return
	}

	select {
	case a.queue <- job:
	default:
		a.logger.Warn("audit queue full, dropping record", auditArgs(job)...)
	}
}

func (a *AuditLogger) run() {
	defer close(a.done)
	for job := range a.queue {
		if job.flushed != nil {
			close(job.flushed)
			continue
		}
		a.write(job)
	}
}

func (a *AuditLogger) write(job auditJob) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("audit write panicked", append(auditArgs(job), "panic", r)...)
		}
	}()

	event := AuditEvent{OccurredAt: a.now()}
	var err error

	switch {
	case job.activity != nil:
		event.EventType = AuditEventActivity
		event.Activity = job.activity
		if a.store != nil {
			err = a.store.InsertActivity(job.ctx, job.activity)
		}
	case job.signup != nil:
		event.EventType = AuditEventSignup
		event.Signup = job.signup
		if a.store != nil {
			err = a.store.InsertSignupAttempt(job.ctx, job.signup)
		}
	default:
		return
	}

	if err != nil {
		a.logger.Error("error logging audit record", append(auditArgs(job), "error", err)...)
	}
	event.Persisted = err == nil && a.store != nil

	for _, sink := range a.sinks {
		if serr := normalizeActivitySink(sink).Record(job.ctx, event); serr != nil {
			a.logger.Warn("activity sink record error", "error", serr)
		}
	}
}

func auditArgs(job auditJob) []any {
	switch {
	case job.activity != nil:
		return []any{
			"table", "user_activity_log",
			"email", job.activity.Email,
			"activity_type", job.activity.ActivityType,
			"status", job.activity.Status,
		}
	case job.signup != nil:
		return []any{
			"table", "user_signups",
			"email", job.signup.Email,
			"status", job.signup.Status,
		}
	}
	return nil
}
