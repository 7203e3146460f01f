package authflow

import (
	"errors"
	"regexp"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	TextCodeAccountExists        = "ACCOUNT_EXISTS"
	TextCodeEmailExists          = "EMAIL_EXISTS"
	TextCodeSignupFailed         = "SIGNUP_FAILED"
	TextCodeInvalidSignup        = "INVALID_SIGNUP"
	TextCodeProfileStoreMissing  = "PROFILE_STORE_MISSING"
	TextCodeNoSession            = "NO_SESSION"
	TextCodeUnexpectedResponse   = "UNEXPECTED_RESPONSE"
	TextCodeOperationInterrupted = "OPERATION_INTERRUPTED"

	// DefaultSignupError is surfaced when the account endpoint fails without
	// an error message.
	DefaultSignupError = "Failed to create account"
	// UnexpectedResponseError is used when the endpoint reply cannot be decoded.
	UnexpectedResponseError = "Unexpected response"

	pgUndefinedTable = "42P01"
	profilesTable    = "user_profiles"
)

// ErrAccountExistsSignIn is returned by sign-up when the account already
// exists but the supplied password did not sign in.
var ErrAccountExistsSignIn = goerrors.New("Account already exists. Please sign in with your password.", goerrors.CategoryConflict).
	WithTextCode(TextCodeAccountExists).
	WithCode(goerrors.CodeConflict)

// ErrSignupFailed is the base error for failed account creation.
var ErrSignupFailed = goerrors.New(DefaultSignupError, goerrors.CategoryOperation).
	WithTextCode(TextCodeSignupFailed).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidSignup is returned when sign-up input fails validation.
var ErrInvalidSignup = goerrors.New("invalid sign-up request", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidSignup).
	WithCode(goerrors.CodeBadRequest)

// ErrProfileStoreMissing flags a profile table that has not been provisioned.
var ErrProfileStoreMissing = goerrors.New("profile store is not provisioned", goerrors.CategoryNotFound).
	WithTextCode(TextCodeProfileStoreMissing).
	WithCode(goerrors.CodeNotFound)

// ErrNoSession is returned by providers when no session is held.
var ErrNoSession = goerrors.New("no active session", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrOperationInterrupted is returned when a public operation panics.
var ErrOperationInterrupted = goerrors.New("operation interrupted", goerrors.CategoryInternal).
	WithTextCode(TextCodeOperationInterrupted).
	WithCode(goerrors.CodeInternal)

var (
	schemaCacheRe  = regexp.MustCompile(`(?i)schema cache`)
	doesNotExistRe = regexp.MustCompile(`(?i)does not exist`)
	noSuchTableRe  = regexp.MustCompile(`(?i)no such table`)
)

// IsRelationNotFound reports whether err signals that a backing table has
// not been provisioned yet.
func IsRelationNotFound(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return true
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeProfileStoreMissing {
		return true
	}

	msg := err.Error()
	if strings.Contains(msg, pgUndefinedTable) || noSuchTableRe.MatchString(msg) {
		return true
	}

	if strings.Contains(strings.ToLower(msg), profilesTable) &&
		(schemaCacheRe.MatchString(msg) || doesNotExistRe.MatchString(msg)) {
		return true
	}

	return false
}

// HasTextCode reports whether err is a go-errors error carrying code.
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

func signupError(message string, source error, meta map[string]any) error {
	clone := ErrSignupFailed.Clone()
	if clone == nil {
		return errors.New(message)
	}
	if strings.TrimSpace(message) != "" {
		clone.Message = message
	}
	if source != nil {
		clone.Source = source
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

// ErrorMessage returns the user facing message of err. go-errors values
// yield their Message without category and source decoration.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}
