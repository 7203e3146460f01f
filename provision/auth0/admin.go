// Package auth0 implements provision.AdminClient on the Auth0 Management API.
package auth0

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/auth0/go-auth0"
	"github.com/auth0/go-auth0/management"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-flow/provision"
)

// DefaultConnection is the database connection new users are created in.
const DefaultConnection = "Username-Password-Authentication"

var existsPattern = regexp.MustCompile(`(?i)already.*(exists|registered)`)

// Config configures the admin client.
type Config struct {
	Domain       string
	ClientID     string
	ClientSecret string
	Connection   string
}

// UserManager is the subset of the management user API used here.
type UserManager interface {
	Create(ctx context.Context, u *management.User, opts ...management.RequestOption) error
}

// AdminClient creates confirmed Auth0 users.
type AdminClient struct {
	users      UserManager
	connection string
}

// NewAdminClient creates an AdminClient with M2M client credentials.
func NewAdminClient(ctx context.Context, cfg Config) (*AdminClient, error) {
	domain := strings.TrimSpace(cfg.Domain)
	if domain == "" {
		return nil, fmt.Errorf("auth0 admin: domain is required")
	}

	mgmt, err := management.New(
		domain,
		management.WithClientCredentials(ctx, cfg.ClientID, cfg.ClientSecret),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0 admin: failed to create management client: %w", err)
	}

	return NewAdminClientWithUsers(mgmt.User, cfg.Connection), nil
}

// NewAdminClientWithUsers wraps an existing user manager.
func NewAdminClientWithUsers(users UserManager, connection string) *AdminClient {
	connection = strings.TrimSpace(connection)
	if connection == "" {
		connection = DefaultConnection
	}
	return &AdminClient{users: users, connection: connection}
}

// CreateUser implements provision.AdminClient. The account is created with
// a verified email so no confirmation round trip is needed.
func (c *AdminClient) CreateUser(ctx context.Context, user provision.NewUser) (*provision.CreatedUser, error) {
	if c == nil || c.users == nil {
		return nil, fmt.Errorf("auth0 admin: client not initialized")
	}

	metadata := map[string]interface{}{}
	for k, v := range user.Metadata {
		metadata[k] = v
	}

	u := &management.User{
		Connection:    auth0.String(c.connection),
		Email:         auth0.String(user.Email),
		Password:      auth0.String(user.Password),
		EmailVerified: auth0.Bool(true),
		UserMetadata:  &metadata,
	}
	if name, ok := user.Metadata["full_name"].(string); ok && strings.TrimSpace(name) != "" {
		u.Name = auth0.String(name)
	}

	if err := c.users.Create(ctx, u); err != nil {
		if isConflict(err) {
			clone := provision.ErrEmailExists.Clone()
			clone.Source = err
			return nil, clone
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "auth0 admin: create user failed")
	}

	return &provision.CreatedUser{
		ID:    u.GetID(),
		Email: u.GetEmail(),
	}, nil
}

func isConflict(err error) bool {
	var mErr management.Error
	if errors.As(err, &mErr) {
		if mErr.Status() == http.StatusConflict {
			return true
		}
	}
	return existsPattern.MatchString(err.Error())
}
