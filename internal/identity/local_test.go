package identity

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newLocal(t *testing.T) (*Local, *observer.ObservedLogs) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewLocal(gdb, zap.New(core))
	require.NoError(t, l.Migrate())
	return l, logs
}

func inviteTokenFrom(t *testing.T, logs *observer.ObservedLogs) string {
	t.Helper()
	entries := logs.FilterMessage("invite link issued").All()
	require.NotEmpty(t, entries)
	link := entries[len(entries)-1].ContextMap()["link"].(string)
	_, frag, ok := strings.Cut(link, "#access_token=")
	require.True(t, ok, link)
	tok, _, _ := strings.Cut(frag, "&")
	return tok
}

func TestLocal_InviteSetPasswordSignIn(t *testing.T) {
	l, logs := newLocal(t)
	ctx := context.Background()

	acc, err := l.InviteUserByEmail(ctx, "Jane@Client.test", InviteOptions{
		RedirectTo: "http://localhost:3000/auth/set-password",
		Data:       map[string]any{"name": "Jane", "role": "client"},
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@client.test", acc.Email)

	_, err = l.SignInWithPassword(ctx, "jane@client.test", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "no password set yet")

	tok := inviteTokenFrom(t, logs)
	_, err = l.UpdatePassword(ctx, tok, "long-enough-pass")
	require.NoError(t, err)

	_, err = l.UpdatePassword(ctx, tok, "again-and-again")
	assert.ErrorIs(t, err, ErrInvalidToken, "token is single use")

	s, err := l.SignInWithPassword(ctx, "JANE@client.test", "long-enough-pass")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, s.Account.ID)
	assert.NotEmpty(t, s.AccessToken)

	_, err = l.SignInWithPassword(ctx, "jane@client.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLocal_InviteTwice(t *testing.T) {
	l, _ := newLocal(t)
	ctx := context.Background()
	_, err := l.InviteUserByEmail(ctx, "a@b.co", InviteOptions{})
	require.NoError(t, err)
	_, err = l.InviteUserByEmail(ctx, "a@b.co", InviteOptions{})
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestLocal_DeleteUser(t *testing.T) {
	l, _ := newLocal(t)
	ctx := context.Background()
	acc, err := l.InviteUserByEmail(ctx, "a@b.co", InviteOptions{})
	require.NoError(t, err)

	require.NoError(t, l.DeleteUser(ctx, acc.ID))
	assert.ErrorIs(t, l.DeleteUser(ctx, acc.ID), ErrAccountNotFound)

	_, err = l.InviteUserByEmail(ctx, "a@b.co", InviteOptions{})
	assert.NoError(t, err, "email is free again after delete")
}

func TestLocal_EnsureAccount(t *testing.T) {
	l, _ := newLocal(t)
	ctx := context.Background()

	a1, err := l.EnsureAccount(ctx, "owner@agency.test", "Owner", "first-password")
	require.NoError(t, err)
	a2, err := l.EnsureAccount(ctx, "owner@agency.test", "Owner", "second-password")
	require.NoError(t, err)
	assert.Equal(t, a1.ID, a2.ID)

	_, err = l.SignInWithPassword(ctx, "owner@agency.test", "first-password")
	assert.NoError(t, err, "existing password is kept")
}
