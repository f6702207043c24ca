package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/agency-portal/internal/models"
)

func TestProfileForAccount(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewProfileService(gdb)
	ctx := context.Background()
	p := seedProfile(t, gdb, "owner", models.RoleAdmin)

	got, err := svc.ForAccount(ctx, "acc-5", "OWNER@example.test")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	linked, err := svc.ForAccount(ctx, "acc-5", "changed@example.test")
	require.NoError(t, err)
	assert.Equal(t, p.ID, linked.ID, "account id is linked on first sign-in")

	_, err = svc.ForAccount(ctx, "acc-unknown", "nobody@example.test")
	assert.ErrorIs(t, err, ErrNotFound)

	live, err := svc.Exists(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, live)
	live, err = svc.Exists(ctx, 999)
	require.NoError(t, err)
	assert.False(t, live)
	_, err = svc.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileExistsReportsStoreErrors(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewProfileService(gdb)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = svc.Exists(context.Background(), 1)
	assert.Error(t, err)
}
