package authflow

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewSignupAttemptsRepository returns the user_signups repository.
func NewSignupAttemptsRepository(db *bun.DB) repository.Repository[*SignupAttempt] {
	handlers := repository.ModelHandlers[*SignupAttempt]{
		NewRecord: func() *SignupAttempt {
			return &SignupAttempt{}
		},
		GetID: func(record *SignupAttempt) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *SignupAttempt, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}
	return repository.NewRepository(db, handlers)
}

// NewActivitiesRepository returns the user_activity_log repository.
func NewActivitiesRepository(db *bun.DB) repository.Repository[*ActivityRecord] {
	handlers := repository.ModelHandlers[*ActivityRecord]{
		NewRecord: func() *ActivityRecord {
			return &ActivityRecord{}
		},
		GetID: func(record *ActivityRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ActivityRecord, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}
	return repository.NewRepository(db, handlers)
}

type auditStore struct {
	db         *bun.DB
	signups    repository.Repository[*SignupAttempt]
	activities repository.Repository[*ActivityRecord]
}

var _ AuditStore = (*auditStore)(nil)

// NewAuditStore returns an AuditStore writing through the repositories.
func NewAuditStore(db *bun.DB, signups repository.Repository[*SignupAttempt], activities repository.Repository[*ActivityRecord]) AuditStore {
	return &auditStore{
		db:         db,
		signups:    signups,
		activities: activities,
	}
}

func (s *auditStore) InsertActivity(ctx context.Context, record *ActivityRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	_, err := s.activities.CreateTx(ctx, s.db, record)
	return err
}

func (s *auditStore) InsertSignupAttempt(ctx context.Context, record *SignupAttempt) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	_, err := s.signups.CreateTx(ctx, s.db, record)
	return err
}
