package authflow

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Profiles() Profiles
	SignupAttempts() repository.Repository[*SignupAttempt]
	Activities() repository.Repository[*ActivityRecord]
	Audit() AuditStore
}

type mngr struct {
	db             *bun.DB
	profiles       Profiles
	signupAttempts repository.Repository[*SignupAttempt]
	activities     repository.Repository[*ActivityRecord]
	audit          AuditStore
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	signups := NewSignupAttemptsRepository(db)
	activities := NewActivitiesRepository(db)
	return &mngr{
		db:             db,
		profiles:       NewProfilesRepository(db),
		signupAttempts: signups,
		activities:     activities,
		audit:          NewAuditStore(db, signups, activities),
	}
}

func (m mngr) Validate() error {
	if m.profiles == nil {
		return errors.New("repository profiles should be initialized")
	}

	if m.signupAttempts == nil {
		return errors.New("repository signupAttempts should be initialized")
	}

	if m.activities == nil {
		return errors.New("repository activities should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Profiles() Profiles {
	return m.profiles
}

func (m mngr) SignupAttempts() repository.Repository[*SignupAttempt] {
	return m.signupAttempts
}

func (m mngr) Activities() repository.Repository[*ActivityRecord] {
	return m.activities
}

func (m mngr) Audit() AuditStore {
	return m.audit
}
