package authflow

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReconcileReturnsExistingProfile(t *testing.T) {
	profiles := newMemoryProfiles()
	client := &MockIdentityClient{}
	id := uuid.New()
	profiles.put(Profile{ID: id, Email: "a@x.io", FullName: "Ann", Role: RoleAdmin})

	got := NewProfileReconciler(profiles, client).Reconcile(context.Background(), id.String())

	require.NotNil(t, got)
	assert.Equal(t, "Ann", got.FullName)
	assert.Equal(t, 0, profiles.upserts)
	client.AssertNotCalled(t, "CurrentIdentity", mock.Anything)
}

func TestReconcileCreatesProfileFromMetadata(t *testing.T) {
	profiles := newMemoryProfiles()
	client := &MockIdentityClient{}
	id := uuid.New()
	client.On("CurrentIdentity", mock.Anything).Return(&Identity{
		ID:    id.String(),
		Email: "m@x.io",
		Metadata: map[string]any{
			"full_name": "Mia",
			"role":      "miner",
			"rfid":      "R1",
		},
	}, nil)

	got := NewProfileReconciler(profiles, client).Reconcile(context.Background(), id.String())

	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "m@x.io", got.Email)
	assert.Equal(t, "Mia", got.FullName)
	assert.Equal(t, RoleMiner, got.Role)
	require.NotNil(t, got.RFID)
	assert.Equal(t, "R1", *got.RFID)
	assert.Equal(t, 1, profiles.upserts)
}

func TestReconcileAppliesDefaults(t *testing.T) {
	profiles := newMemoryProfiles()
	client := &MockIdentityClient{}
	id := uuid.New()
	client.On("CurrentIdentity", mock.Anything).Return(&Identity{
		ID:       id.String(),
		Email:    "a@x.io",
		Metadata: map[string]any{"rfid": "R7", "role": "superuser"},
	}, nil)

	got := NewProfileReconciler(profiles, client).Reconcile(context.Background(), id.String())

	require.NotNil(t, got)
	assert.Equal(t, "User", got.FullName)
	assert.Equal(t, RoleAdmin, got.Role)
	assert.Nil(t, got.RFID, "rfid is only kept for miners")
}

func TestReconcileMissingTable(t *testing.T) {
	profiles := newMemoryProfiles()
	profiles.findErr = errors.New(`relation "public.user_profiles" does not exist`)
	client := &MockIdentityClient{}

	got := NewProfileReconciler(profiles, client).Reconcile(context.Background(), uuid.NewString())

	assert.Nil(t, got)
	assert.Equal(t, 0, profiles.upserts)
	client.AssertNotCalled(t, "CurrentIdentity", mock.Anything)
}

func TestReconcileMissingTableOnUpsert(t *testing.T) {
	profiles := newMemoryProfiles()
	profiles.upsertErr = errors.New("Could not find the table 'public.user_profiles' in the schema cache")
	client := &MockIdentityClient{}
	id := uuid.New()
	client.On("CurrentIdentity", mock.Anything).Return(&Identity{ID: id.String(), Email: "a@x.io"}, nil)

	got := NewProfileReconciler(profiles, client).Reconcile(context.Background(), id.String())

	assert.Nil(t, got)
	assert.Equal(t, 0, profiles.count())
}

func TestReconcileFailures(t *testing.T) {
	t.Run("invalid user id", func(t *testing.T) {
		profiles := newMemoryProfiles()
		got := NewProfileReconciler(profiles, &MockIdentityClient{}).Reconcile(context.Background(), "not-a-uuid")
		assert.Nil(t, got)
		assert.Equal(t, 0, profiles.finds)
	})

	t.Run("find error", func(t *testing.T) {
		profiles := newMemoryProfiles()
		profiles.findErr = errBoom
		got := NewProfileReconciler(profiles, &MockIdentityClient{}).Reconcile(context.Background(), uuid.NewString())
		assert.Nil(t, got)
	})

	t.Run("no identity", func(t *testing.T) {
		client := &MockIdentityClient{}
		client.On("CurrentIdentity", mock.Anything).Return(nil, nil)
		profiles := newMemoryProfiles()
		got := NewProfileReconciler(profiles, client).Reconcile(context.Background(), uuid.NewString())
		assert.Nil(t, got)
		assert.Equal(t, 0, profiles.upserts)
	})

	t.Run("identity error", func(t *testing.T) {
		client := &MockIdentityClient{}
		client.On("CurrentIdentity", mock.Anything).Return(nil, errBoom)
		got := NewProfileReconciler(newMemoryProfiles(), client).Reconcile(context.Background(), uuid.NewString())
		assert.Nil(t, got)
	})

	t.Run("identity changed", func(t *testing.T) {
		client := &MockIdentityClient{}
		client.On("CurrentIdentity", mock.Anything).Return(&Identity{ID: uuid.NewString(), Email: "b@x.io"}, nil)
		profiles := newMemoryProfiles()
		got := NewProfileReconciler(profiles, client).Reconcile(context.Background(), uuid.NewString())
		assert.Nil(t, got)
		assert.Equal(t, 0, profiles.upserts)
	})

	t.Run("upsert error", func(t *testing.T) {
		id := uuid.New()
		client := &MockIdentityClient{}
		client.On("CurrentIdentity", mock.Anything).Return(&Identity{ID: id.String(), Email: "a@x.io"}, nil)
		profiles := newMemoryProfiles()
		profiles.upsertErr = errBoom
		got := NewProfileReconciler(profiles, client).Reconcile(context.Background(), id.String())
		assert.Nil(t, got)
	})

	t.Run("panic", func(t *testing.T) {
		client := &MockIdentityClient{}
		client.On("CurrentIdentity", mock.Anything).Run(func(mock.Arguments) {
			panic("provider exploded")
		})
		got := NewProfileReconciler(newMemoryProfiles(), client).Reconcile(context.Background(), uuid.NewString())
		assert.Nil(t, got)
	})
}

func TestDeriveProfile(t *testing.T) {
	id := uuid.New()

	miner := DeriveProfile(id, &Identity{Email: "m@x.io", Metadata: map[string]any{
		"full_name": "  Mia  ",
		"role":      "miner",
		"rfid":      "",
	}})
	assert.Equal(t, "Mia", miner.FullName)
	assert.Equal(t, RoleMiner, miner.Role)
	assert.Nil(t, miner.RFID)

	bare := DeriveProfile(id, &Identity{Email: "x@x.io"})
	assert.Equal(t, "User", bare.FullName)
	assert.Equal(t, RoleAdmin, bare.Role)
	assert.Equal(t, "x@x.io", bare.Email)
}
