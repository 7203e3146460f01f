package authflow

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockIdentityClient implements IdentityClient with testify expectations.
// Session events are delivered through Emit.
type MockIdentityClient struct {
	mock.Mock

	mu        sync.Mutex
	listeners map[int]func(SessionEvent)
	nextID    int
}

func (m *MockIdentityClient) CurrentSession(ctx context.Context) (*Session, error) {
	args := m.Called(ctx)
	session, _ := args.Get(0).(*Session)
	return session, args.Error(1)
}

func (m *MockIdentityClient) CurrentIdentity(ctx context.Context) (*Identity, error) {
	args := m.Called(ctx)
	identity, _ := args.Get(0).(*Identity)
	return identity, args.Error(1)
}

func (m *MockIdentityClient) SignInWithPassword(ctx context.Context, email, password string) (*Identity, error) {
	args := m.Called(ctx, email, password)
	identity, _ := args.Get(0).(*Identity)
	return identity, args.Error(1)
}

func (m *MockIdentityClient) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIdentityClient) ResendConfirmation(ctx context.Context, kind ResendType, email string) error {
	args := m.Called(ctx, kind, email)
	return args.Error(0)
}

func (m *MockIdentityClient) OnSessionChange(fn func(SessionEvent)) Unsubscribe {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listeners == nil {
		m.listeners = map[int]func(SessionEvent){}
	}
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Emit delivers event to every registered listener.
func (m *MockIdentityClient) Emit(event SessionEvent) {
	m.mu.Lock()
	fns := make([]func(SessionEvent), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(event)
	}
}

func (m *MockIdentityClient) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// MockAccountCreator implements AccountCreator.
type MockAccountCreator struct {
	mock.Mock
}

func (m *MockAccountCreator) CreateAccount(ctx context.Context, req AccountRequest) (*AccountResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*AccountResponse)
	return resp, args.Error(1)
}

// memoryProfiles is an in-memory Profiles store.
type memoryProfiles struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]Profile
	findErr   error
	upsertErr error
	upserts   int
	finds     int
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{rows: map[uuid.UUID]Profile{}}
}

func (p *memoryProfiles) FindByID(_ context.Context, id uuid.UUID) (*Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finds++
	if p.findErr != nil {
		return nil, p.findErr
	}
	row, ok := p.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (p *memoryProfiles) Upsert(_ context.Context, record *Profile) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.upserts++
	if p.upsertErr != nil {
		return p.upsertErr
	}
	p.rows[record.ID] = *record
	return nil
}

func (p *memoryProfiles) put(profile Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[profile.ID] = profile
}

func (p *memoryProfiles) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rows)
}

// recordingAuditStore keeps audit rows in insertion order.
type recordingAuditStore struct {
	mu         sync.Mutex
	order      []string
	activities []ActivityRecord
	signups    []SignupAttempt
	err        error
}

func (s *recordingAuditStore) InsertActivity(_ context.Context, record *ActivityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.order = append(s.order, "activity:"+string(record.ActivityType)+":"+string(record.Status))
	s.activities = append(s.activities, *record)
	return nil
}

func (s *recordingAuditStore) InsertSignupAttempt(_ context.Context, record *SignupAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.order = append(s.order, "signup:"+string(record.Status))
	s.signups = append(s.signups, *record)
	return nil
}

func (s *recordingAuditStore) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

func (s *recordingAuditStore) Activities() []ActivityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ActivityRecord(nil), s.activities...)
}

func (s *recordingAuditStore) Signups() []SignupAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SignupAttempt(nil), s.signups...)
}

// stubReconciler returns a fixed profile per user id.
type stubReconciler struct {
	mu       sync.Mutex
	profiles map[string]*Profile
	calls    []string
}

func (r *stubReconciler) Reconcile(_ context.Context, userID string) *Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, userID)
	return r.profiles[userID]
}

func (r *stubReconciler) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

var errBoom = errors.New("boom")

func strPtr(s string) *string {
	return &s
}
