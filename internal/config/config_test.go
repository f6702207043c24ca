package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsInDev(t *testing.T) {
	t.Setenv("DEV", "1")
	t.Setenv("IDENTITY_PROVIDER", "local")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "http://localhost:3000", cfg.App.BaseURL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=agency sslmode=disable", cfg.Database.DSN())
	assert.False(t, cfg.App.IsProduction())
	assert.False(t, cfg.App.TrustedProxy)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DEV", "1")
	t.Setenv("IDENTITY_PROVIDER", "gotrue")
	t.Setenv("STORE_URL", "https://store.example.com/")
	t.Setenv("STORE_SECRET_KEY", "service-role")
	t.Setenv("APP_URL", "https://agency.example.com/")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app")
	t.Setenv("PORT", "9000")
	t.Setenv("TRUSTED_PROXY", "true")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, "https://store.example.com", cfg.Identity.StoreURL)
	assert.Equal(t, "https://agency.example.com", cfg.App.BaseURL)
	assert.Equal(t, "postgres://u:p@db:5432/app", cfg.Database.DSN())
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.App.TrustedProxy)
}

func TestValidate(t *testing.T) {
	t.Setenv("IDENTITY_PROVIDER", "gotrue")
	t.Setenv("DB_DRIVER", "mysql")

	_, err := FromViper(newViper())
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "DB_DRIVER")
	assert.Contains(t, msg, "STORE_URL")
	assert.Contains(t, msg, "STORE_SECRET_KEY")
	assert.Contains(t, msg, "SESSION_SECRET")
}

func TestSQLiteDSN(t *testing.T) {
	d := DatabaseConfig{Driver: "sqlite", Name: "agency.db"}
	assert.Equal(t, "agency.db", d.DSN())
}
