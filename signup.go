package authflow

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// SignupRequest carries the sign-up input. RFID is only kept for miners.
type SignupRequest struct {
	Email    string
	Password string
	FullName string
	Role     Role
	RFID     string
}

// Validate checks the request shape.
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Role, validation.Required, validation.In(RoleAdmin, RoleMiner)),
	)
}

func (r SignupRequest) normalized() SignupRequest {
	r.Email = strings.TrimSpace(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
	r.RFID = strings.TrimSpace(r.RFID)
	if r.Role != RoleMiner {
		r.RFID = ""
	}
	return r
}

func (r SignupRequest) attempt(status SignupStatus) SignupAttemptEntry {
	return SignupAttemptEntry{
		Email:    r.Email,
		FullName: r.FullName,
		Role:     r.Role,
		RFID:     r.RFID,
		Status:   status,
	}
}

// AccountClassification is how a privileged step reply is interpreted.
type AccountClassification string

const (
	AccountCreated AccountClassification = "created"
	AccountExists  AccountClassification = "exists"
	AccountFailed  AccountClassification = "failed"
)

var accountExistsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)email_exists`),
	regexp.MustCompile(`(?i)already.*registered`),
	regexp.MustCompile(`(?i)already.*exists`),
}

// ClassifyAccountResponse maps the privileged step reply to created, exists
// or failed. Conflict status codes, the EMAIL_EXISTS code and known
// "already exists" phrasings mean the account is already there.
func ClassifyAccountResponse(resp *AccountResponse) AccountClassification {
	if resp == nil {
		return AccountFailed
	}

	if resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity {
		return AccountExists
	}

	if strings.EqualFold(resp.Code, TextCodeEmailExists) {
		return AccountExists
	}

	for _, re := range accountExistsPatterns {
		if resp.Error != "" && re.MatchString(resp.Error) {
			return AccountExists
		}
	}

	if resp.OK || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return AccountCreated
	}

	return AccountFailed
}

// ProfileLoader stores the reconciled profile for a user.
type ProfileLoader interface {
	LoadProfile(ctx context.Context, userID string)
}

// SignupOutcome reports how a signup call terminated.
type SignupOutcome struct {
	Classification AccountClassification
	Status         SignupStatus
	UserID         string
	Err            error
}

// SignupOrchestrator runs the privileged account creation followed by an
// immediate sign-in and profile reconciliation.
type SignupOrchestrator struct {
	creator AccountCreator
	client  IdentityClient
	audit   *AuditLogger
	loader  ProfileLoader
	logger  Logger
}

// NewSignupOrchestrator wires the signup sequence.
func NewSignupOrchestrator(creator AccountCreator, client IdentityClient, audit *AuditLogger, loader ProfileLoader) *SignupOrchestrator {
	return &SignupOrchestrator{
		creator: creator,
		client:  client,
		audit:   audit,
		loader:  loader,
		logger:  DiscardLogger(),
	}
}

// WithLogger sets the logger.
func (o *SignupOrchestrator) WithLogger(logger Logger) *SignupOrchestrator {
	if logger != nil {
		o.logger = logger
	}
	return o
}

// SignUp runs the sequence and returns the outcome. Outcome.Err is the
// user-facing error, nil on success.
func (o *SignupOrchestrator) SignUp(ctx context.Context, req SignupRequest) SignupOutcome {
	req = req.normalized()

	o.audit.LogSignupAttempt(ctx, req.attempt(SignupAttempted))

	if err := req.Validate(); err != nil {
		clone := ErrInvalidSignup.Clone()
		if clone != nil {
			clone.Source = err
			clone.WithMetadata(map[string]any{"cause": err.Error()})
			err = clone
		}
		return o.fail(ctx, req, AccountFailed, err)
	}

	resp, err := o.creator.CreateAccount(ctx, AccountRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
		RFID:     stringPtr(req.RFID),
	})
	if err != nil {
		o.logger.Error("account creation request failed", "email", req.Email, "error", err)
		return o.fail(ctx, req, AccountFailed, goerrors.Wrap(err, goerrors.CategoryOperation, DefaultSignupError))
	}

	classification := ClassifyAccountResponse(resp)
	o.logger.Debug("account creation classified",
		"email", req.Email,
		"status_code", resp.StatusCode,
		"classification", classification,
	)

	if classification == AccountFailed {
		return o.fail(ctx, req, classification, signupError(resp.Error, nil, map[string]any{
			"status_code": resp.StatusCode,
			"code":        resp.Code,
		}))
	}

	identity, err := o.client.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		if classification == AccountExists {
			clone := ErrAccountExistsSignIn.Clone()
			if clone != nil {
				clone.Source = err
				return o.fail(ctx, req, classification, clone)
			}
			return o.fail(ctx, req, classification, ErrAccountExistsSignIn)
		}
		return o.fail(ctx, req, classification, err)
	}

	// a provider may accept the credentials without returning the user
	userID := ""
	if identity != nil {
		userID = identity.ID
	} else {
		o.logger.Warn("sign-in after sign-up returned no identity", "email", req.Email)
	}

	o.audit.LogActivity(ctx, ActivityEntry{
		Email:  req.Email,
		Type:   ActivitySignup,
		Status: ActivitySuccess,
		UserID: userID,
	})
	success := req.attempt(SignupSuccess)
	success.UserID = userID
	o.audit.LogSignupAttempt(ctx, success)

	if o.loader != nil && userID != "" {
		o.loader.LoadProfile(ctx, userID)
	}

	return SignupOutcome{
		Classification: classification,
		Status:         SignupSuccess,
		UserID:         userID,
	}
}

func (o *SignupOrchestrator) fail(ctx context.Context, req SignupRequest, classification AccountClassification, err error) SignupOutcome {
	status := SignupFailed
	if classification == AccountExists {
		status = SignupExists
	}

	o.audit.LogActivity(ctx, ActivityEntry{
		Email:  req.Email,
		Type:   ActivitySignup,
		Status: ActivityFailed,
	})

	entry := req.attempt(status)
	if err != nil {
		entry.Error = err.Error()
	}
	o.audit.LogSignupAttempt(ctx, entry)

	return SignupOutcome{
		Classification: classification,
		Status:         status,
		Err:            err,
	}
}
