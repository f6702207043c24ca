// Package db opens the store, applies schema changes and seeds the
// bootstrap admin.
package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/diewo77/agency-portal/internal/config"
	"github.com/diewo77/agency-portal/internal/logger"
	"github.com/diewo77/agency-portal/internal/models"
)

const slowQuery = 200 * time.Millisecond

// Open connects with the configured driver, retrying a few times so the app
// can start alongside its database container.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	level := gormlogger.Warn
	if log.Core().Enabled(zap.DebugLevel) {
		level = gormlogger.Info
	}
	gcfg := &gorm.Config{Logger: logger.NewGormLogger(level, slowQuery)}

	var gdb *gorm.DB
	for attempt := 1; attempt <= 5; attempt++ {
		gdb, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		log.Warn("database connection failed", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return gdb, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Models lists every table the app owns, parents first.
func Models() []any {
	return []any{
		&models.Profile{},
		&models.Project{},
		&models.Milestone{},
		&models.Task{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.Payment{},
		&models.CallRequest{},
	}
}

// Migrate runs AutoMigrate for all models. Used in dev and tests; production
// Postgres goes through RunSQLMigrations.
func Migrate(gdb *gorm.DB) error {
	for _, m := range Models() {
		if err := gdb.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// Health pings the store with a trivial query.
func Health(ctx context.Context, gdb *gorm.DB) error {
	return gdb.WithContext(ctx).Exec("SELECT 1").Error
}
