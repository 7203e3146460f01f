// authflow runs the privileged sign-up endpoint and offers a small client
// for exercising sign-up, sign-in and sign-out against it.
//
//	authflow serve
//	authflow signup --email a@b.c --password secret --role miner --rfid R1
//	authflow signin --email a@b.c --password secret
//	authflow whoami
//	authflow signout
//	authflow resend --email a@b.c
//
// Settings come from AUTHFLOW_* environment variables; flags override them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-logger/glog"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/uptrace/bun"

	authflow "github.com/goliatone/go-auth-flow"
	"github.com/goliatone/go-auth-flow/activitymap"
	"github.com/goliatone/go-auth-flow/internal/logging"
	"github.com/goliatone/go-auth-flow/internal/store"
	"github.com/goliatone/go-auth-flow/provider/local"
	"github.com/goliatone/go-auth-flow/provision"
	provisionauth0 "github.com/goliatone/go-auth-flow/provision/auth0"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", authflow.ErrorMessage(err))
		os.Exit(1)
	}
}

type options struct {
	cfg      authflow.Config
	email    string
	password string
	fullName string
	role     string
	rfid     string
	bcrypt   int
}

func run(args []string) error {
	cfg, err := authflow.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	command := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve", "signup", "signin", "signout", "whoami", "resend":
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	opts := options{cfg: cfg}
	flagSet := pflag.NewFlagSet("authflow "+command, pflag.ContinueOnError)
	flagSet.StringVar(&opts.cfg.Address, "address", cfg.Address, "listen address for serve")
	flagSet.StringVar(&opts.cfg.DatabaseDSN, "database", cfg.DatabaseDSN, "database DSN (postgres:// or sqlite)")
	flagSet.StringVar(&opts.cfg.RedisURL, "redis", cfg.RedisURL, "redis URL for session persistence")
	flagSet.StringVar(&opts.cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flagSet.StringVar(&opts.cfg.SignupEndpoint, "endpoint", cfg.SignupEndpoint, "sign-up endpoint used by the client commands")
	flagSet.BoolVar(&opts.cfg.AutoMigrate, "migrate", cfg.AutoMigrate, "apply migrations on start")
	flagSet.StringVar(&opts.email, "email", "", "account email")
	flagSet.StringVar(&opts.password, "password", "", "account password")
	flagSet.StringVar(&opts.fullName, "name", "", "full name for signup")
	flagSet.StringVar(&opts.role, "role", string(authflow.RoleMiner), "role for signup (admin or miner)")
	flagSet.StringVar(&opts.rfid, "rfid", "", "rfid tag for miner signup")
	flagSet.IntVar(&opts.bcrypt, "bcrypt-cost", 12, "bcrypt cost for local accounts")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := opts.cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(opts.cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := openDeps(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer d.close(logger)

	if command == "serve" {
		return serve(ctx, opts, d, logger)
	}
	return runClient(ctx, command, opts, d, logger)
}

type deps struct {
	db    *bun.DB
	redis *redis.Client
	repos authflow.RepositoryManager
	users local.Users
	audit *authflow.AuditLogger
}

func openDeps(ctx context.Context, opts options, logger *glog.BaseLogger) (*deps, error) {
	db, err := store.Open(ctx, opts.cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	if opts.cfg.AutoMigrate {
		applied, err := store.Migrate(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", "migrations", applied)
		}
	}

	d := &deps{
		db:    db,
		repos: authflow.NewRepositoryManager(db),
		users: local.NewUsersRepository(db),
	}
	d.repos.MustValidate()

	if opts.cfg.RedisURL != "" {
		client, err := store.OpenRedis(ctx, opts.cfg.RedisURL)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		d.redis = client
	}

	d.audit = authflow.NewAuditLogger(d.repos.Audit(),
		authflow.WithAuditQueueSize(opts.cfg.AuditQueueSize),
		authflow.WithAuditLogger(logger),
		authflow.WithAuditSink(activitymap.LogSink(logger.GetLogger("activity"))),
	)

	return d, nil
}

func (d *deps) close(logger *glog.BaseLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.audit.Close(ctx); err != nil {
		logger.Warn("close audit logger", "error", err)
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}
	if err := d.db.Close(); err != nil {
		logger.Warn("close database", "error", err)
	}
}

func serve(ctx context.Context, opts options, d *deps, logger *glog.BaseLogger) error {
	admin, err := adminClient(ctx, opts, d)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:      "authflow",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	provision.NewHandler(admin,
		provision.WithAudit(d.audit),
		provision.WithProfiles(d.repos.Profiles()),
		provision.WithLogger(logger.GetLogger("provision")),
	).Register(app)

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- app.Listen(opts.cfg.Address)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-srvErrCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server exited cleanly")
	return nil
}

func adminClient(ctx context.Context, opts options, d *deps) (provision.AdminClient, error) {
	if opts.cfg.Auth0.Enabled() {
		return provisionauth0.NewAdminClient(ctx, provisionauth0.Config{
			Domain:       opts.cfg.Auth0.Domain,
			ClientID:     opts.cfg.Auth0.ClientID,
			ClientSecret: opts.cfg.Auth0.ClientSecret,
			Connection:   opts.cfg.Auth0.Connection,
		})
	}
	return local.NewAdmin(d.users, opts.bcrypt), nil
}

func runClient(ctx context.Context, command string, opts options, d *deps, logger *glog.BaseLogger) error {
	signingKey := opts.cfg.SigningKey
	if signingKey == "" {
		return fmt.Errorf("AUTHFLOW_SIGNING_KEY must be set for client commands")
	}

	cache := local.NewMemorySessionCache()
	if d.redis != nil {
		cache = local.NewRedisSessionCache(d.redis, local.DefaultSessionKey)
	}

	client := local.NewClient(d.users,
		local.NewTokenIssuer([]byte(signingKey), opts.cfg.TokenIssuer, opts.cfg.TokenExpiration),
		local.WithSessionCache(cache),
		local.WithLogger(logger.GetLogger("local")),
	)

	auth := authflow.New(authflow.Options{
		Client:   client,
		Creator:  authflow.NewHTTPAccountCreator(opts.cfg.SignupEndpoint, opts.cfg.SignupTimeout).WithLogger(logger),
		Profiles: d.repos.Profiles(),
		Audit:    d.audit,
		Logger:   logger,
	})
	if err := auth.Start(ctx); err != nil {
		return err
	}
	defer auth.Close()

	switch command {
	case "signup":
		req := authflow.SignupRequest{
			Email:    opts.email,
			Password: opts.password,
			FullName: opts.fullName,
			Role:     authflow.Role(opts.role),
			RFID:     opts.rfid,
		}
		if err := auth.SignUp(ctx, req); err != nil {
			return err
		}
	case "signin":
		if err := auth.SignIn(ctx, opts.email, opts.password); err != nil {
			return err
		}
	case "signout":
		auth.SignOut(ctx)
	case "resend":
		if err := auth.ResendConfirmation(ctx, opts.email); err != nil {
			return err
		}
	}

	if err := auth.Sync(ctx); err != nil {
		return err
	}
	return printState(auth.State())
}

func printState(state authflow.SessionState) error {
	if state.Identity == nil {
		fmt.Println("signed out")
		return nil
	}

	fmt.Printf("signed in as %s (%s)\n", state.Identity.Email, state.Identity.ID)
	if state.Profile != nil {
		fmt.Printf("profile: %s, role %s\n", state.Profile.FullName, state.Profile.Role)
	}
	return nil
}
