package local

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is an account stored by the local provider.
type User struct {
	bun.BaseModel `bun:"table:auth_users,alias:au"`

	ID               uuid.UUID      `bun:"id,pk,notnull,type:uuid" json:"id"`
	Email            string         `bun:"email,notnull,unique" json:"email"`
	PasswordHash     string         `bun:"password_hash,notnull" json:"-"`
	Metadata         map[string]any `bun:"metadata,type:text" json:"metadata,omitempty"`
	EmailConfirmedAt *time.Time     `bun:"email_confirmed_at,nullzero" json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time     `bun:"last_sign_in_at,nullzero" json:"last_sign_in_at,omitempty"`
	CreatedAt        *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Users persists local accounts.
type Users interface {
	repository.Repository[*User]

	FindByEmail(ctx context.Context, email string) (*User, error)
	TrackSignIn(ctx context.Context, id uuid.UUID, at time.Time) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository returns the auth_users repository.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{Repository: repo, db: db}
}

// FindByEmail returns the account for email. Emails are compared
// lowercased.
func (u *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return u.GetByIdentifier(ctx, normalizeEmail(email))
}

func (u *users) TrackSignIn(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := u.db.NewUpdate().
		Model((*User)(nil)).
		Set("last_sign_in_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}
