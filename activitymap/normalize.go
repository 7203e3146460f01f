package activitymap

import (
	"context"
	"strings"
	"time"

	authflow "github.com/goliatone/go-auth-flow"
)

const (
	// MetadataKeyEmail stores the email the record was written for.
	MetadataKeyEmail = "email"
	// MetadataKeyStatus stores the record status.
	MetadataKeyStatus = "status"
	// MetadataKeyRole stores the requested role of a signup attempt.
	MetadataKeyRole = "role"
	// MetadataKeyPersisted reports whether the audit row was written.
	MetadataKeyPersisted = "persisted"
	// MetadataKeyError stores the failure message of a signup attempt.
	MetadataKeyError = "error"
)

const (
	defaultChannel    = "authflow"
	defaultObjectType = "account"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
}

// Normalize converts an audit event into a generic normalized shape. The
// verb is the activity type (signup, login, logout) or "signup_attempt".
func Normalize(event authflow.AuditEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	userID := eventUserID(event)
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    firstNonEmpty(userID, strings.TrimSpace(options.actorFallback)),
		Verb:       eventVerb(event),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   userID,
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the event has no user id.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// LogSink returns an ActivitySink writing normalized records to logger.
func LogSink(logger authflow.Logger, opts ...Option) authflow.ActivitySink {
	if logger == nil {
		logger = authflow.NewLogger("info")
	}
	return authflow.ActivitySinkFunc(func(_ context.Context, event authflow.AuditEvent) error {
		n := Normalize(event, opts...)
		logger.Info("auth activity",
			"verb", n.Verb,
			"actor_id", n.ActorID,
			"object_type", n.ObjectType,
			"channel", n.Channel,
			"metadata", n.Metadata,
			"occurred_at", n.OccurredAt,
		)
		return nil
	})
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

func eventVerb(event authflow.AuditEvent) string {
	switch {
	case event.Activity != nil:
		return string(event.Activity.ActivityType)
	case event.Signup != nil:
		return "signup_attempt"
	}
	return string(event.EventType)
}

func eventUserID(event authflow.AuditEvent) string {
	switch {
	case event.Activity != nil && event.Activity.UserID != nil:
		return event.Activity.UserID.String()
	case event.Signup != nil && event.Signup.UserID != nil:
		return event.Signup.UserID.String()
	}
	return ""
}

func normalizeMetadata(event authflow.AuditEvent) map[string]any {
	metadata := map[string]any{
		MetadataKeyPersisted: event.Persisted,
	}

	switch {
	case event.Activity != nil:
		metadata[MetadataKeyEmail] = event.Activity.Email
		metadata[MetadataKeyStatus] = string(event.Activity.Status)
	case event.Signup != nil:
		metadata[MetadataKeyEmail] = event.Signup.Email
		metadata[MetadataKeyStatus] = string(event.Signup.Status)
		if event.Signup.Role != "" {
			metadata[MetadataKeyRole] = string(event.Signup.Role)
		}
		if event.Signup.Error != nil && *event.Signup.Error != "" {
			metadata[MetadataKeyError] = *event.Signup.Error
		}
	}

	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
