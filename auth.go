package authflow

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/goliatone/go-auth-flow"

// Auth is the entry point the rest of the application uses for sign-in,
// sign-up, sign-out and confirmation resends. Public operations never
// panic past their boundary; callers branch on the returned error.
type Auth struct {
	client IdentityClient
	store  *SessionStore
	signup *SignupOrchestrator
	audit  *AuditLogger
	logger Logger
	tracer trace.Tracer
}

// Options wires the collaborators of Auth.
type Options struct {
	Client     IdentityClient
	Creator    AccountCreator
	Profiles   Profiles
	Audit      *AuditLogger
	Reconciler Reconciler
	Logger     Logger
}

// New composes the audit logger, reconciler, session store and signup
// orchestrator around the identity client.
func New(opts Options) *Auth {
	logger := normalizeLogger(opts.Logger)

	audit := opts.Audit
	if audit == nil {
		audit = NewAuditLogger(nil, WithAuditSynchronous(), WithAuditLogger(logger))
	}

	reconciler := opts.Reconciler
	if reconciler == nil {
		reconciler = NewProfileReconciler(opts.Profiles, opts.Client).WithLogger(logger)
	}

	store := NewSessionStore(opts.Client, reconciler).WithLogger(logger)
	signup := NewSignupOrchestrator(opts.Creator, opts.Client, audit, store).WithLogger(logger)

	return &Auth{
		client: opts.Client,
		store:  store,
		signup: signup,
		audit:  audit,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Start initializes the session store from the provider.
func (a *Auth) Start(ctx context.Context) error {
	return a.store.Start(ctx)
}

// Close releases the provider subscription.
func (a *Auth) Close() {
	a.store.Close()
}

// Store returns the session store.
func (a *Auth) Store() *SessionStore {
	return a.store
}

// Sync waits until pending session events have been applied.
func (a *Auth) Sync(ctx context.Context) error {
	return a.store.Sync(ctx)
}

// State returns the current session snapshot.
func (a *Auth) State() SessionState {
	return a.store.State()
}

// Subscribe registers a read-only observer of the session state.
func (a *Auth) Subscribe(fn func(SessionState)) Unsubscribe {
	return a.store.Subscribe(fn)
}

// SignIn authenticates with email and password. Reconciliation follows
// from the provider's session-change event.
func (a *Auth) SignIn(ctx context.Context, email, password string) (err error) {
	ctx, span := a.startSpan(ctx, "authflow.SignIn", ActivityLogin)
	defer func() { a.endSpan(span, err) }()
	defer a.recoverOperation("sign in", &err, func() {
		a.audit.LogActivity(ctx, ActivityEntry{Email: email, Type: ActivityLogin, Status: ActivityFailed})
	})

	identity, err := a.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		a.audit.LogActivity(ctx, ActivityEntry{
			Email:  email,
			Type:   ActivityLogin,
			Status: ActivityFailed,
		})
		return err
	}

	if identity != nil {
		a.audit.LogActivity(ctx, ActivityEntry{
			Email:  email,
			Type:   ActivityLogin,
			Status: ActivitySuccess,
			UserID: identity.ID,
		})
	}

	return nil
}

// SignUp creates the account through the privileged step and signs in.
func (a *Auth) SignUp(ctx context.Context, req SignupRequest) (err error) {
	ctx, span := a.startSpan(ctx, "authflow.SignUp", ActivitySignup)
	defer func() { a.endSpan(span, err) }()
	defer a.recoverOperation("sign up", &err, func() {
		a.audit.LogActivity(ctx, ActivityEntry{Email: req.Email, Type: ActivitySignup, Status: ActivityFailed})
		a.audit.LogSignupAttempt(ctx, req.normalized().attempt(SignupFailed))
	})

	outcome := a.signup.SignUp(ctx, req)
	span.SetAttributes(
		attribute.String("authflow.signup.classification", string(outcome.Classification)),
		attribute.String("authflow.signup.status", string(outcome.Status)),
	)
	return outcome.Err
}

// SignOut records the logout for the held user, invalidates the provider
// session and clears the held profile.
func (a *Auth) SignOut(ctx context.Context) {
	var err error
	ctx, span := a.startSpan(ctx, "authflow.SignOut", ActivityLogout)
	defer func() { a.endSpan(span, err) }()
	defer a.recoverOperation("sign out", &err, nil)

	if identity := a.store.CurrentIdentity(); identity != nil && identity.Email != "" {
		a.audit.LogActivity(ctx, ActivityEntry{
			Email:  identity.Email,
			Type:   ActivityLogout,
			Status: ActivitySuccess,
			UserID: identity.ID,
		})
	}

	if err = a.client.SignOut(ctx); err != nil {
		a.logger.Error("provider sign out failed", "error", err)
	}

	a.store.ClearProfile()
}

// ResendConfirmation asks the provider to resend the signup confirmation.
func (a *Auth) ResendConfirmation(ctx context.Context, email string) (err error) {
	ctx, span := a.startSpan(ctx, "authflow.ResendConfirmation", "")
	defer func() { a.endSpan(span, err) }()
	defer a.recoverOperation("resend confirmation", &err, nil)

	return a.client.ResendConfirmation(ctx, ResendSignup, email)
}

func (a *Auth) recoverOperation(name string, err *error, onPanic func()) {
	r := recover()
	if r == nil {
		return
	}

	a.logger.Error("auth operation panicked", "operation", name, "panic", r)
	if onPanic != nil {
		onPanic()
	}

	clone := ErrOperationInterrupted.Clone()
	if clone == nil {
		*err = fmt.Errorf("%s: %v", name, r)
		return
	}
	clone.Source = fmt.Errorf("%v", r)
	*err = clone.WithMetadata(map[string]any{"operation": name})
}

func (a *Auth) startSpan(ctx context.Context, name string, activity ActivityType) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{}
	if activity != "" {
		attrs = append(attrs, attribute.String("authflow.activity", string(activity)))
	}
	return a.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (a *Auth) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
