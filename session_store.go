package authflow

import (
	"context"
	"sync"
	"sync/atomic"
)

const sessionEventBuffer = 64

// SessionStore owns the process-local session state: the current identity,
// its reconciled profile and a loading flag. It is the only writer; other
// components observe it through State and Subscribe.
type SessionStore struct {
	client     IdentityClient
	reconciler Reconciler
	logger     Logger

	mu       sync.RWMutex
	state    SessionState
	watchers map[int]func(SessionState)
	nextID   int

	lifecycle   sync.Mutex
	unsubscribe Unsubscribe
	events      chan storeMsg
	stop        chan struct{}
	stopped     chan struct{}
	closed      atomic.Bool
	baseCtx     context.Context
}

type storeMsg struct {
	event   SessionEvent
	initial context.Context
	flushed chan struct{}
}

// NewSessionStore returns a store in the loading state.
func NewSessionStore(client IdentityClient, reconciler Reconciler) *SessionStore {
	return &SessionStore{
		client:     client,
		reconciler: reconciler,
		logger:     DiscardLogger(),
		state:      SessionState{Loading: true},
		watchers:   map[int]func(SessionState){},
	}
}

// WithLogger sets the logger.
func (s *SessionStore) WithLogger(logger Logger) *SessionStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Start subscribes to session changes, then loads the existing provider
// session and reconciles its profile. It returns once the initial load is
// applied. Events delivered while the initial load runs are queued behind
// it and applied in order afterwards.
func (s *SessionStore) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	if s.closed.Load() || s.events != nil {
		s.lifecycle.Unlock()
		return nil
	}
	s.baseCtx = context.WithoutCancel(ctx)
	s.events = make(chan storeMsg, sessionEventBuffer)
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	stop := s.stop

	loaded := make(chan struct{})
	s.events <- storeMsg{initial: ctx, flushed: loaded}
	go s.run()
	s.unsubscribe = s.client.OnSessionChange(s.enqueue)
	s.lifecycle.Unlock()

	select {
	case <-loaded:
	case <-stop:
	}
	return nil
}

// Close unsubscribes from the provider and stops event processing. State
// is not mutated after Close returns.
func (s *SessionStore) Close() {
	s.lifecycle.Lock()
	if s.closed.Swap(true) {
		s.lifecycle.Unlock()
		return
	}
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	stop, stopped := s.stop, s.stopped
	s.lifecycle.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if stop != nil {
		close(stop)
		<-stopped
	}
}

// State returns a snapshot of the current state.
func (s *SessionStore) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to be called with every new state. The returned
// function removes the observer.
func (s *SessionStore) Subscribe(fn func(SessionState)) Unsubscribe {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// LoadProfile reconciles the profile for userID and stores the result. The
// profile is only assigned while userID is the held identity: when the
// store holds no identity or another user's, the result is discarded so a
// profile is never exposed without its identity. The loading flag is always
// cleared, even when reconciliation fails.
func (s *SessionStore) LoadProfile(ctx context.Context, userID string) {
	defer s.update(func(st *SessionState) {
		st.Loading = false
	})

	profile := s.reconciler.Reconcile(ctx, userID)
	s.update(func(st *SessionState) {
		if st.Identity == nil || st.Identity.ID != userID {
			return
		}
		st.Profile = profile
	})
}

// ClearProfile drops the held profile.
func (s *SessionStore) ClearProfile() {
	s.update(func(st *SessionState) {
		st.Profile = nil
	})
}

// CurrentIdentity returns the held identity, if any.
func (s *SessionStore) CurrentIdentity() *Identity {
	return s.State().Identity
}

func (s *SessionStore) enqueue(event SessionEvent) {
	if s.closed.Load() {
		return
	}

	select {
	case s.events <- storeMsg{event: event}:
	case <-s.stop:
	}
}

// Sync blocks until every session event delivered before the call has been
// applied, or ctx is done.
func (s *SessionStore) Sync(ctx context.Context) error {
	s.lifecycle.Lock()
	events, stop := s.events, s.stop
	s.lifecycle.Unlock()

	if events == nil || s.closed.Load() {
		return nil
	}

	flushed := make(chan struct{})
	select {
	case events <- storeMsg{flushed: flushed}:
	case <-stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-flushed:
		return nil
	case <-stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SessionStore) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.stop:
			return
		case msg := <-s.events:
			switch {
			case msg.initial != nil:
				s.loadCurrent(msg.initial)
				close(msg.flushed)
			case msg.flushed != nil:
				close(msg.flushed)
			default:
				s.handle(msg.event)
			}
		}
	}
}

func (s *SessionStore) loadCurrent(ctx context.Context) {
	session, err := s.client.CurrentSession(ctx)
	if err != nil {
		s.logger.Error("error loading current session", "error", err)
		session = nil
	}

	var identity *Identity
	if session != nil {
		identity = session.Identity
	}

	s.update(func(st *SessionState) {
		st.Identity = identity
	})

	if identity != nil {
		s.LoadProfile(ctx, identity.ID)
		return
	}

	s.update(func(st *SessionState) {
		st.Loading = false
	})
}

func (s *SessionStore) handle(event SessionEvent) {
	var identity *Identity
	if event.Session != nil {
		identity = event.Session.Identity
	}

	s.logger.Debug("session change", "event", event.Type, "signed_in", identity != nil)

	s.update(func(st *SessionState) {
		st.Identity = identity
	})

	if identity != nil {
		s.LoadProfile(s.baseCtx, identity.ID)
		return
	}

	s.update(func(st *SessionState) {
		st.Profile = nil
		st.Loading = false
	})
}

func (s *SessionStore) update(fn func(*SessionState)) {
	if s.closed.Load() {
		return
	}

	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	watchers := make([]func(SessionState), 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w(snapshot)
	}
}
