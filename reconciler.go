package authflow

import (
	"context"

	"github.com/google/uuid"
)

const (
	defaultProfileName = "User"
	defaultProfileRole = RoleAdmin

	metadataFullName = "full_name"
	metadataRole     = "role"
	metadataRFID     = "rfid"
)

// ProfileReconciler loads the profile for an identity, creating it from the
// identity metadata when it does not exist yet. It never fails: every
// problem is logged and results in a nil profile.
type ProfileReconciler struct {
	profiles Profiles
	client   IdentityClient
	logger   Logger
}

var _ Reconciler = (*ProfileReconciler)(nil)

// NewProfileReconciler returns a reconciler over profiles and client.
func NewProfileReconciler(profiles Profiles, client IdentityClient) *ProfileReconciler {
	return &ProfileReconciler{
		profiles: profiles,
		client:   client,
		logger:   DiscardLogger(),
	}
}

// WithLogger sets the logger.
func (r *ProfileReconciler) WithLogger(logger Logger) *ProfileReconciler {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Reconcile returns the profile for userID, or nil.
func (r *ProfileReconciler) Reconcile(ctx context.Context, userID string) (profile *Profile) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("error loading profile", "user_id", userID, "panic", rec)
			profile = nil
		}
	}()

	id, err := uuid.Parse(userID)
	if err != nil {
		r.logger.Error("error loading profile: invalid user id", "user_id", userID, "error", err)
		return nil
	}

	existing, err := r.profiles.FindByID(ctx, id)
	if err != nil {
		if IsRelationNotFound(err) {
			r.logger.Warn("user_profiles table missing, skipping profile load until table exists", "user_id", userID)
			return nil
		}
		r.logger.Error("error loading profile", "user_id", userID, "error", err)
		return nil
	}

	if existing != nil {
		return existing
	}

	identity, err := r.client.CurrentIdentity(ctx)
	if err != nil {
		r.logger.Error("error loading identity for profile creation", "user_id", userID, "error", err)
		return nil
	}
	if identity == nil {
		return nil
	}
	if identity.ID != "" && identity.ID != userID {
		r.logger.Warn("current identity changed during profile load", "user_id", userID, "identity_id", identity.ID)
		return nil
	}

	derived := DeriveProfile(id, identity)
	if err := r.profiles.Upsert(ctx, derived); err != nil {
		if IsRelationNotFound(err) {
			r.logger.Warn("user_profiles table missing during upsert, skipping profile creation", "user_id", userID)
		} else {
			r.logger.Error("error creating profile", "user_id", userID, "error", err)
		}
		return nil
	}

	fresh, err := r.profiles.FindByID(ctx, id)
	if err != nil {
		r.logger.Warn("error re-fetching created profile", "user_id", userID, "error", err)
	}
	if fresh != nil {
		return fresh
	}

	return derived
}

// DeriveProfile builds a profile from identity metadata applying the
// defaults for missing values.
func DeriveProfile(id uuid.UUID, identity *Identity) *Profile {
	fullName := identity.MetadataString(metadataFullName)
	if fullName == "" {
		fullName = defaultProfileName
	}

	role, ok := ParseRole(identity.MetadataString(metadataRole))
	if !ok {
		role = defaultProfileRole
	}

	var rfid *string
	if role == RoleMiner {
		rfid = stringPtr(identity.MetadataString(metadataRFID))
	}

	return &Profile{
		ID:       id,
		Email:    identity.Email,
		FullName: fullName,
		Role:     role,
		RFID:     rfid,
	}
}
