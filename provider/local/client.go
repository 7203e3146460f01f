// Package local is an in-process identity provider backed by the
// auth_users table. It serves deployments without an external provider and
// end to end tests.
package local

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	authflow "github.com/goliatone/go-auth-flow"
)

// Client implements authflow.IdentityClient.
type Client struct {
	users  Users
	tokens *TokenIssuer
	cache  SessionCache
	mailer Mailer
	logger authflow.Logger
	now    func() time.Time

	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(authflow.SessionEvent)
}

var _ authflow.IdentityClient = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithSessionCache sets where the current session is persisted.
func WithSessionCache(cache SessionCache) Option {
	return func(c *Client) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// WithMailer sets the confirmation mailer.
func WithMailer(mailer Mailer) Option {
	return func(c *Client) {
		if mailer != nil {
			c.mailer = mailer
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger authflow.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient returns a Client. Sessions are kept in memory unless a cache is
// configured.
func NewClient(users Users, tokens *TokenIssuer, opts ...Option) *Client {
	c := &Client{
		users:       users,
		tokens:      tokens,
		cache:       NewMemorySessionCache(),
		logger:      authflow.DiscardLogger(),
		now:         time.Now,
		subscribers: map[int]func(authflow.SessionEvent){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.mailer == nil {
		c.mailer = logMailer{logger: c.logger}
	}
	return c
}

// CurrentSession returns the persisted session, or nil when there is none
// or it is no longer valid.
func (c *Client) CurrentSession(ctx context.Context) (*authflow.Session, error) {
	stored, err := c.cache.Load(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load session")
	}
	if stored == nil {
		return nil, nil
	}

	if _, err := c.tokens.Validate(stored.AccessToken); err != nil {
		c.logger.Debug("discarding invalid session", "email", stored.Email, "error", err)
		c.clearCache(ctx)
		return nil, nil
	}

	user, err := c.users.FindByEmail(ctx, stored.Email)
	if err != nil {
		if isNotFound(err) {
			c.clearCache(ctx)
			return nil, nil
		}
		return nil, err
	}

	expires := stored.ExpiresAt
	return &authflow.Session{
		AccessToken: stored.AccessToken,
		ExpiresAt:   &expires,
		Identity:    identityFromUser(user),
	}, nil
}

// CurrentIdentity returns the identity of the current session.
func (c *Client) CurrentIdentity(ctx context.Context) (*authflow.Identity, error) {
	session, err := c.CurrentSession(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	return session.Identity, nil
}

// SignInWithPassword verifies the credentials, persists a new session and
// emits SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*authflow.Identity, error) {
	user, err := c.users.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to look up user")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, err
	}

	token, expires, err := c.tokens.Issue(user.ID.String(), user.Email)
	if err != nil {
		return nil, err
	}

	stored := &StoredSession{
		AccessToken: token,
		UserID:      user.ID.String(),
		Email:       user.Email,
		ExpiresAt:   expires,
	}
	if err := c.cache.Save(ctx, stored); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist session")
	}

	if err := c.users.TrackSignIn(ctx, user.ID, c.now()); err != nil {
		c.logger.Warn("failed to track sign in", "user_id", user.ID, "error", err)
	}

	identity := identityFromUser(user)
	c.emit(authflow.SessionEvent{
		Type: authflow.SessionEventSignedIn,
		Session: &authflow.Session{
			AccessToken: token,
			ExpiresAt:   &expires,
			Identity:    identity,
		},
	})

	return identity, nil
}

// SignOut drops the persisted session and emits SIGNED_OUT.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.cache.Clear(ctx)
	c.emit(authflow.SessionEvent{Type: authflow.SessionEventSignedOut})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to clear session")
	}
	return nil
}

// ResendConfirmation forwards to the mailer. Unknown emails are not
// reported to the caller.
func (c *Client) ResendConfirmation(ctx context.Context, kind authflow.ResendType, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return goerrors.New("email is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if _, err := c.users.FindByEmail(ctx, email); err != nil {
		if isNotFound(err) {
			c.logger.Debug("confirmation requested for unknown email", "email", email)
			return nil
		}
		return err
	}

	return c.mailer.SendConfirmation(ctx, kind, email)
}

// OnSessionChange registers fn for session events. The returned function
// is safe to call more than once.
func (c *Client) OnSessionChange(fn func(authflow.SessionEvent)) authflow.Unsubscribe {
	if fn == nil {
		return func() {}
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) emit(event authflow.SessionEvent) {
	c.mu.Lock()
	fns := make([]func(authflow.SessionEvent), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

func (c *Client) clearCache(ctx context.Context) {
	if err := c.cache.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear session cache", "error", err)
	}
}

func identityFromUser(user *User) *authflow.Identity {
	if user == nil {
		return nil
	}
	metadata := make(map[string]any, len(user.Metadata))
	for k, v := range user.Metadata {
		metadata[k] = v
	}
	return &authflow.Identity{
		ID:       user.ID.String(),
		Email:    user.Email,
		Metadata: metadata,
	}
}
