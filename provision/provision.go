// Package provision implements the privileged account-creation step. It
// runs server side with elevated provider credentials and exposes a single
// JSON endpoint used by the sign-up flow.
package provision

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeEmailExists   = "EMAIL_EXISTS"
	TextCodeInvalid       = "INVALID_REQUEST"
	TextCodeFailed        = "CREATE_FAILED"
	TextCodeNotConfigured = "NOT_CONFIGURED"

	roleAdmin = "admin"
	roleMiner = "miner"
)

// ErrEmailExists is returned by AdminClient implementations when the email
// is already registered.
var ErrEmailExists = goerrors.New("A user with this email address has already been registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailExists).
	WithCode(goerrors.CodeConflict)

// NewUser is the account to create.
type NewUser struct {
	Email    string
	Password string
	Metadata map[string]any
}

// CreatedUser is the created account.
type CreatedUser struct {
	ID    string
	Email string
}

// AdminClient creates accounts with elevated credentials.
type AdminClient interface {
	CreateUser(ctx context.Context, user NewUser) (*CreatedUser, error)
}

// AdminClientFunc adapts a function to AdminClient.
type AdminClientFunc func(ctx context.Context, user NewUser) (*CreatedUser, error)

// CreateUser implements AdminClient.
func (f AdminClientFunc) CreateUser(ctx context.Context, user NewUser) (*CreatedUser, error) {
	return f(ctx, user)
}

// SignUpRequest is the endpoint payload.
type SignUpRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Role     string  `json:"role"`
	RFID     *string `json:"rfid"`
}

// Validate checks the payload.
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.FullName, validation.Length(0, 200)),
		validation.Field(&r.Role, validation.In(roleAdmin, roleMiner)),
	)
}

// Metadata returns the provider metadata for the new account. rfid is only
// included for miners.
func (r SignUpRequest) Metadata() map[string]any {
	meta := map[string]any{
		"full_name": strings.TrimSpace(r.FullName),
	}
	if r.Role != "" {
		meta["role"] = r.Role
	}
	if r.Role == roleMiner && r.RFID != nil && strings.TrimSpace(*r.RFID) != "" {
		meta["rfid"] = strings.TrimSpace(*r.RFID)
	}
	return meta
}

// SignUpResponse is the endpoint reply.
type SignUpResponse struct {
	OK     bool   `json:"ok"`
	UserID string `json:"user_id,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// IsEmailExists reports whether err is ErrEmailExists or a clone of it.
func IsEmailExists(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeEmailExists
	}
	return false
}
