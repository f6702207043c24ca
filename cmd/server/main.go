package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/agency-portal/internal/config"
	"github.com/diewo77/agency-portal/internal/db"
	"github.com/diewo77/agency-portal/internal/identity"
	"github.com/diewo77/agency-portal/internal/logger"
	"github.com/diewo77/agency-portal/internal/middleware"
	"github.com/diewo77/agency-portal/internal/pdf"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Seed the admin profile and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.App.LogLevel, cfg.App.Dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("connecting to database",
		zap.String("driver", cfg.Database.Driver),
		zap.String("host", cfg.Database.Host),
		zap.String("name", cfg.Database.Name))
	gdb, err := db.Open(cfg.Database, log)
	if err != nil {
		return err
	}

	idp, local := newIdentity(cfg, gdb, log)

	if *migrateOnlyFlag {
		if err := migrate(cfg, gdb, local); err != nil {
			return err
		}
		log.Info("migrations completed")
		return nil
	}
	if *seedOnlyFlag {
		if err := seed(context.Background(), cfg, gdb, local, log); err != nil {
			return err
		}
		log.Info("seeding completed")
		return nil
	}

	// Tests and local sqlite always need a schema; Postgres only when asked.
	if cfg.App.Migrations || cfg.Database.Driver == "sqlite" {
		if err := migrate(cfg, gdb, local); err != nil {
			return err
		}
		log.Info("migrations completed")
	}
	if err := seed(context.Background(), cfg, gdb, local, log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	limiter.StartCleanup(ctx, time.Minute)

	app := NewApp(Options{
		DB:            gdb,
		Identity:      idp,
		Log:           log,
		BaseURL:       cfg.App.BaseURL,
		SessionSecret: cfg.App.SessionSecret,
		SecureCookie:  cfg.App.IsProduction(),
		TrustedProxy:  cfg.App.TrustedProxy,
		Issuer:        pdf.Issuer{Name: cfg.App.BusinessName, Email: cfg.App.AdminEmail, URL: cfg.App.BaseURL},
		Limiter:       limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           app,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.Bool("dev", cfg.App.Dev),
			zap.String("identity", cfg.Identity.Provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped gracefully")
	return nil
}

// newIdentity picks the account provider. local is non-nil only for the
// in-database provider, which owns a table and can bootstrap passwords.
func newIdentity(cfg *config.Config, gdb *gorm.DB, log *zap.Logger) (identity.Provider, *identity.Local) {
	if cfg.Identity.Provider == config.ProviderLocal {
		l := identity.NewLocal(gdb, log)
		return l, l
	}
	return identity.NewGoTrue(cfg.Identity.StoreURL, cfg.Identity.PublicKey, cfg.Identity.SecretKey), nil
}

func migrate(cfg *config.Config, gdb *gorm.DB, local *identity.Local) error {
	if cfg.Database.Driver == "postgres" {
		if err := db.RunSQLMigrations(gdb); err != nil {
			return err
		}
	} else if err := db.Migrate(gdb); err != nil {
		return err
	}
	if local != nil {
		return local.Migrate()
	}
	return nil
}

// seed creates the bootstrap admin. With the local provider the admin also
// gets an account so they can sign in; hosted accounts are linked on first login.
func seed(ctx context.Context, cfg *config.Config, gdb *gorm.DB, local *identity.Local, log *zap.Logger) error {
	if cfg.App.AdminEmail == "" {
		log.Warn("ADMIN_EMAIL not set, skipping admin seed")
		return nil
	}
	var accountID string
	if local != nil && cfg.App.AdminPassword != "" {
		acc, err := local.EnsureAccount(ctx, cfg.App.AdminEmail, cfg.App.AdminName, cfg.App.AdminPassword)
		if err != nil {
			return fmt.Errorf("admin account: %w", err)
		}
		accountID = acc.ID
	}
	p, err := db.SeedAdmin(ctx, gdb, cfg.App.AdminEmail, cfg.App.AdminName, accountID)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	log.Info("admin profile ready", zap.Uint("profile_id", p.ID), zap.String("email", p.Email))
	return nil
}
