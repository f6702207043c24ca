package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/diewo77/agency-portal/internal/config"
	"github.com/diewo77/agency-portal/internal/models"
)

func newSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := Open(config.DatabaseConfig{Driver: "sqlite", Name: dsn}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	return gdb
}

func TestMigrateCreatesTables(t *testing.T) {
	gdb := newSQLite(t)
	for _, table := range []string{"profiles", "projects", "project_milestones", "milestone_tasks", "invoices", "invoice_items", "payments", "call_requests"} {
		assert.True(t, gdb.Migrator().HasTable(table), table)
	}
}

func TestSeedAdminIdempotent(t *testing.T) {
	gdb := newSQLite(t)
	ctx := context.Background()

	p1, err := SeedAdmin(ctx, gdb, " Owner@Agency.test ", "Owner", "")
	require.NoError(t, err)
	p2, err := SeedAdmin(ctx, gdb, "owner@agency.test", "Owner", "acc-1")
	require.NoError(t, err)

	assert.Equal(t, p1.ID, p2.ID)
	var count int64
	gdb.Model(&models.Profile{}).Count(&count)
	assert.Equal(t, int64(1), count)

	var stored models.Profile
	require.NoError(t, gdb.First(&stored, p1.ID).Error)
	assert.Equal(t, models.RoleAdmin, stored.Role)
	assert.Equal(t, "acc-1", stored.AccountID)
}

func TestSeedAdminPromotesClient(t *testing.T) {
	gdb := newSQLite(t)
	require.NoError(t, gdb.Create(&models.Profile{Name: "Sam", Email: "sam@agency.test", Role: models.RoleClient}).Error)

	p, err := SeedAdmin(context.Background(), gdb, "sam@agency.test", "Sam", "")
	require.NoError(t, err)

	var stored models.Profile
	require.NoError(t, gdb.First(&stored, p.ID).Error)
	assert.Equal(t, models.RoleAdmin, stored.Role)
}

func TestSeedAdminRequiresEmail(t *testing.T) {
	_, err := SeedAdmin(context.Background(), newSQLite(t), "  ", "x", "")
	assert.Error(t, err)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql"}, zap.NewNop())
	assert.Error(t, err)
}

func newMockPostgres(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return gdb, mock
}

func TestHealth(t *testing.T) {
	gdb, mock := newMockPostgres(t)
	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Health(context.Background(), gdb))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthReportsFailure(t *testing.T) {
	gdb, mock := newMockPostgres(t)
	mock.ExpectExec("SELECT 1").WillReturnError(errors.New("connection refused"))

	err := Health(context.Background(), gdb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := embeddedMigrations.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "000001_init.down.sql", entries[0].Name())
	assert.Equal(t, "000001_init.up.sql", entries[1].Name())
}
