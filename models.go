package authflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the profile role, fixed at creation.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleMiner Role = "miner"
)

// ParseRole returns the role for value, ok is false for unknown roles.
func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleMiner:
		return RoleMiner, true
	}
	return "", false
}

// SignupStatus is the status recorded on a signup attempt row.
type SignupStatus string

const (
	SignupAttempted SignupStatus = "attempted"
	SignupSuccess   SignupStatus = "success"
	SignupFailed    SignupStatus = "failed"
	SignupExists    SignupStatus = "exists"
)

// ActivityType is the kind of auth activity.
type ActivityType string

const (
	ActivitySignup ActivityType = "signup"
	ActivityLogin  ActivityType = "login"
	ActivityLogout ActivityType = "logout"
)

// ActivityStatus is the outcome of an activity.
type ActivityStatus string

const (
	ActivitySuccess ActivityStatus = "success"
	ActivityFailed  ActivityStatus = "failed"
)

// Profile is the persisted user profile. ID equals the identity id.
type Profile struct {
	bun.BaseModel `bun:"table:user_profiles,alias:up"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email         string     `bun:"email,notnull" json:"email"`
	FullName      string     `bun:"full_name,notnull" json:"full_name"`
	Role          Role       `bun:"role,notnull" json:"role"`
	RFID          *string    `bun:"rfid" json:"rfid"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// SignupAttempt is one append-only row of the signup intent log.
type SignupAttempt struct {
	bun.BaseModel `bun:"table:user_signups,alias:us"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Email         string       `bun:"email,notnull" json:"email"`
	FullName      string       `bun:"full_name,notnull" json:"full_name"`
	Role          Role         `bun:"role,notnull" json:"role"`
	RFID          *string      `bun:"rfid" json:"rfid"`
	Status        SignupStatus `bun:"status,notnull" json:"status"`
	UserID        *uuid.UUID   `bun:"user_id,type:uuid" json:"user_id"`
	Error         *string      `bun:"error" json:"error,omitempty"`
	CreatedAt     *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ActivityRecord is one append-only row of the auth activity log.
type ActivityRecord struct {
	bun.BaseModel `bun:"table:user_activity_log,alias:ual"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id"`
	UserID        *uuid.UUID     `bun:"user_id,type:uuid" json:"user_id"`
	Email         string         `bun:"email,notnull" json:"email"`
	ActivityType  ActivityType   `bun:"activity_type,notnull" json:"activity_type"`
	Status        ActivityStatus `bun:"status,notnull" json:"status"`
	IPAddress     *string        `bun:"ip_address" json:"ip_address"`
	UserAgent     string         `bun:"user_agent" json:"user_agent"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// SessionState is a snapshot of the session store.
type SessionState struct {
	Identity *Identity
	Profile  *Profile
	Loading  bool
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseUserID(id string) *uuid.UUID {
	if id == "" {
		return nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	return &parsed
}
