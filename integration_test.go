package authflow_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	authflow "github.com/goliatone/go-auth-flow"
	"github.com/goliatone/go-auth-flow/provider/local"
	"github.com/goliatone/go-auth-flow/provision"
)

type flow struct {
	auth  *authflow.Auth
	db    *bun.DB
	users local.Users
}

func newFlow(t *testing.T) *flow {
	t.Helper()
	db := openTestDB(t, true)
	repo := authflow.NewRepositoryManager(db)
	users := local.NewUsersRepository(db)

	audit := authflow.NewAuditLogger(repo.Audit(), authflow.WithAuditSynchronous())

	app := fiber.New()
	provision.NewHandler(local.NewAdmin(users, bcrypt.MinCost),
		provision.WithAudit(audit),
		provision.WithProfiles(repo.Profiles()),
	).Register(app)

	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)

	client := local.NewClient(users, local.NewTokenIssuer([]byte("integration"), "authflow", time.Hour))
	auth := authflow.New(authflow.Options{
		Client:   client,
		Creator:  authflow.NewHTTPAccountCreator(srv.URL+provision.DefaultPath, 5*time.Second),
		Profiles: repo.Profiles(),
		Audit:    audit,
		Logger:   authflow.DiscardLogger(),
	})
	require.NoError(t, auth.Start(context.Background()))
	t.Cleanup(auth.Close)

	return &flow{auth: auth, db: db, users: users}
}

func (f *flow) count(t *testing.T, table, where string, args ...any) int {
	t.Helper()
	var count int
	err := f.db.NewSelect().
		ColumnExpr("count(*)").
		TableExpr(table).
		Where(where, args...).
		Scan(context.Background(), &count)
	require.NoError(t, err)
	return count
}

func TestSignUpFlow(t *testing.T) {
	f := newFlow(t)
	ctx := context.Background()

	state := f.auth.State()
	assert.False(t, state.Loading)
	assert.Nil(t, state.Identity)

	require.NoError(t, f.auth.SignUp(ctx, authflow.SignupRequest{
		Email:    "mia@x.io",
		Password: "pw123456",
		FullName: "Mia",
		Role:     authflow.RoleMiner,
		RFID:     "R1",
	}))
	require.NoError(t, f.auth.Sync(ctx))

	state = f.auth.State()
	require.NotNil(t, state.Identity)
	assert.Equal(t, "mia@x.io", state.Identity.Email)
	require.NotNil(t, state.Profile)
	assert.Equal(t, "Mia", state.Profile.FullName)
	assert.Equal(t, authflow.RoleMiner, state.Profile.Role)
	require.NotNil(t, state.Profile.RFID)
	assert.Equal(t, "R1", *state.Profile.RFID)

	// one row from the provisioning endpoint, one from the client
	assert.Equal(t, 2, f.count(t, "user_signups", "status = ? AND user_id IS NOT NULL", "success"))
	assert.Equal(t, 1, f.count(t, "user_activity_log", "activity_type = ? AND status = ?", "signup", "success"))

	f.auth.SignOut(ctx)
	require.NoError(t, f.auth.Sync(ctx))

	state = f.auth.State()
	assert.Nil(t, state.Identity)
	assert.Nil(t, state.Profile)
	assert.Equal(t, 1, f.count(t, "user_activity_log", "activity_type = ?", "logout"))
}

func TestSignUpExistingAccount(t *testing.T) {
	f := newFlow(t)
	ctx := context.Background()

	req := authflow.SignupRequest{Email: "ann@x.io", Password: "pw123456", FullName: "Ann", Role: authflow.RoleAdmin}
	require.NoError(t, f.auth.SignUp(ctx, req))
	f.auth.SignOut(ctx)
	require.NoError(t, f.auth.Sync(ctx))

	require.NoError(t, f.auth.SignUp(ctx, req), "existing account with the right password signs in")
	require.NoError(t, f.auth.Sync(ctx))
	require.NotNil(t, f.auth.State().Profile)
	assert.Equal(t, authflow.RoleAdmin, f.auth.State().Profile.Role)
	f.auth.SignOut(ctx)
	require.NoError(t, f.auth.Sync(ctx))

	req.Password = "not-the-password"
	err := f.auth.SignUp(ctx, req)
	require.Error(t, err)
	assert.Equal(t, "Account already exists. Please sign in with your password.", authflow.ErrorMessage(err))
	assert.Nil(t, f.auth.State().Identity)

	assert.Equal(t, 3, f.count(t, "user_signups", "status = ? AND email = ?", "exists", "ann@x.io"))
}

func TestSignInFlow(t *testing.T) {
	f := newFlow(t)
	ctx := context.Background()

	_, err := local.NewAdmin(f.users, bcrypt.MinCost).CreateUser(ctx, provision.NewUser{
		Email:    "bo@x.io",
		Password: "pw123456",
		Metadata: map[string]any{"full_name": "Bo", "role": "admin"},
	})
	require.NoError(t, err)

	err = f.auth.SignIn(ctx, "bo@x.io", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", authflow.ErrorMessage(err))

	require.NoError(t, f.auth.SignIn(ctx, "bo@x.io", "pw123456"))
	require.NoError(t, f.auth.Sync(ctx))

	state := f.auth.State()
	require.NotNil(t, state.Profile, "profile is created from identity metadata")
	assert.Equal(t, "Bo", state.Profile.FullName)
	assert.Equal(t, authflow.RoleAdmin, state.Profile.Role)

	assert.Equal(t, 1, f.count(t, "user_activity_log", "activity_type = ? AND status = ?", "login", "failed"))
	assert.Equal(t, 1, f.count(t, "user_activity_log", "activity_type = ? AND status = ?", "login", "success"))
}
