package authflow

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-auth-flow/internal/logging"
)

// Logger is the logging contract used across the package. Arguments
// after the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity is the principal owned by the identity provider.
type Identity struct {
	ID       string
	Email    string
	Metadata map[string]any
}

// MetadataString returns the metadata value for key when it is a non
// empty string.
func (i *Identity) MetadataString(key string) string {
	if i == nil || i.Metadata == nil {
		return ""
	}
	if v, ok := i.Metadata[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Session is the provider session for an authenticated identity.
type Session struct {
	AccessToken string
	ExpiresAt   *time.Time
	Identity    *Identity
}

// SessionEventType names the provider session-change notifications.
type SessionEventType string

const (
	SessionEventInitial   SessionEventType = "INITIAL_SESSION"
	SessionEventSignedIn  SessionEventType = "SIGNED_IN"
	SessionEventSignedOut SessionEventType = "SIGNED_OUT"
	SessionEventRefreshed SessionEventType = "TOKEN_REFRESHED"
	SessionEventUpdated   SessionEventType = "USER_UPDATED"
)

// SessionEvent is pushed by the provider whenever the session changes.
// A nil Session clears the held identity.
type SessionEvent struct {
	Type    SessionEventType
	Session *Session
}

// Unsubscribe cancels a session-change subscription.
type Unsubscribe func()

// ResendType selects which confirmation email the provider resends.
type ResendType string

const ResendSignup ResendType = "signup"

// IdentityClient is the identity provider as seen by the client side.
type IdentityClient interface {
	CurrentSession(ctx context.Context) (*Session, error)
	OnSessionChange(fn func(SessionEvent)) Unsubscribe
	SignInWithPassword(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	ResendConfirmation(ctx context.Context, kind ResendType, email string) error
	CurrentIdentity(ctx context.Context) (*Identity, error)
}

// AccountRequest is sent to the privileged account-creation step.
type AccountRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Role     Role    `json:"role"`
	RFID     *string `json:"rfid"`
}

// AccountResponse is the privileged step's reply.
type AccountResponse struct {
	StatusCode int    `json:"-"`
	OK         bool   `json:"ok"`
	UserID     string `json:"user_id,omitempty"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
}

// AccountCreator invokes the privileged account-creation step. It runs
// with elevated credentials that never reach the caller.
type AccountCreator interface {
	CreateAccount(ctx context.Context, req AccountRequest) (*AccountResponse, error)
}

// Reconciler loads or lazily creates the profile for an identity.
type Reconciler interface {
	Reconcile(ctx context.Context, userID string) *Profile
}

// ClientInfo describes the caller for audit records.
type ClientInfo struct {
	UserAgent string
	IP        string
}

type clientInfoKey struct{}

// WithClientInfo attaches client metadata used by audit records.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

// ClientInfoFromContext returns the client metadata stored on ctx.
func ClientInfoFromContext(ctx context.Context) ClientInfo {
	if ctx == nil {
		return ClientInfo{}
	}
	if info, ok := ctx.Value(clientInfoKey{}).(ClientInfo); ok {
		return info
	}
	return ClientInfo{}
}

// NewLogger returns a JSON logger writing to stdout at the given level.
// Unknown levels default to info.
func NewLogger(level string) Logger {
	return logging.New(level)
}

// DiscardLogger drops all output.
func DiscardLogger() Logger {
	return logging.Discard()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return NewLogger("info")
	}
	return l
}
