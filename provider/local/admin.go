package local

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"

	"github.com/goliatone/go-auth-flow/provision"
)

// Admin implements provision.AdminClient over the local users table.
type Admin struct {
	users Users
	cost  int
	now   func() time.Time
}

var _ provision.AdminClient = (*Admin)(nil)

// NewAdmin returns an Admin hashing passwords at cost. Invalid costs fall
// back to bcrypt.DefaultCost.
func NewAdmin(users Users, cost int) *Admin {
	return &Admin{users: users, cost: cost, now: time.Now}
}

// CreateUser creates a confirmed account. The id is derived from the email,
// so a duplicate insert can never create a second account.
func (a *Admin) CreateUser(ctx context.Context, user provision.NewUser) (*provision.CreatedUser, error) {
	email := normalizeEmail(user.Email)
	if email == "" {
		return nil, goerrors.New("email is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if existing, err := a.users.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, emailExists(email, nil)
	} else if err != nil && !isNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to look up user")
	}

	hash, err := HashPassword(user.Password, a.cost)
	if err != nil {
		return nil, err
	}

	id, err := hashid.NewUUID(email)
	if err != nil {
		id = uuid.New()
	}

	now := a.now()
	metadata := map[string]any{}
	for k, v := range user.Metadata {
		metadata[k] = v
	}

	record := &User{
		ID:               id,
		Email:            email,
		PasswordHash:     hash,
		Metadata:         metadata,
		EmailConfirmedAt: &now,
		CreatedAt:        &now,
		UpdatedAt:        &now,
	}

	created, err := a.users.Create(ctx, record)
	if err != nil {
		if _, lookupErr := a.users.FindByEmail(ctx, email); lookupErr == nil {
			return nil, emailExists(email, err)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to create user")
	}

	return &provision.CreatedUser{
		ID:    created.ID.String(),
		Email: created.Email,
	}, nil
}

func emailExists(email string, source error) error {
	clone := provision.ErrEmailExists.Clone()
	if source != nil {
		clone.Source = source
	}
	return clone.WithMetadata(map[string]any{"email": email})
}
