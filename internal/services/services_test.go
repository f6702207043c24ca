package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/agency-portal/internal/db"
	"github.com/diewo77/agency-portal/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func seedProfile(t *testing.T, gdb *gorm.DB, name string, role models.Role) *models.Profile {
	t.Helper()
	p := &models.Profile{Name: name, Email: fmt.Sprintf("%s@example.test", name), Role: role}
	require.NoError(t, gdb.Create(p).Error)
	return p
}
