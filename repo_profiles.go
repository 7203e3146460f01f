package authflow

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles persists profile records keyed by identity id.
type Profiles interface {
	// FindByID returns nil, nil when no row matches.
	FindByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	// Upsert inserts the record or replaces it when the id already exists.
	Upsert(ctx context.Context, record *Profile) error
}

type profiles struct {
	db bun.IDB
}

var _ Profiles = (*profiles)(nil)

// NewProfilesRepository returns a bun backed Profiles store.
func NewProfilesRepository(db bun.IDB) Profiles {
	return &profiles{db: db}
}

func (r *profiles) FindByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	record := &Profile{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *profiles) Upsert(ctx context.Context, record *Profile) error {
	if record == nil || record.ID == uuid.Nil {
		return errors.New("profile upsert requires an id")
	}

	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("full_name = EXCLUDED.full_name").
		Set("role = EXCLUDED.role").
		Set("rfid = EXCLUDED.rfid").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}
