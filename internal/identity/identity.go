// Package identity talks to whatever holds user credentials. The portal
// never stores passwords in its own profile table: it invites people
// through a provider and asks the provider to check passwords.
package identity

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrAccountNotFound    = errors.New("account not found")
)

type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is what a successful password sign-in returns.
type Session struct {
	AccessToken string  `json:"access_token"`
	Account     Account `json:"user"`
}

type InviteOptions struct {
	// RedirectTo is where the emailed link lands; the set-password page.
	RedirectTo string
	Data       map[string]any
}

// Admin operations require the provider's secret key.
type Admin interface {
	InviteUserByEmail(ctx context.Context, email string, opts InviteOptions) (Account, error)
	DeleteUser(ctx context.Context, accountID string) error
}

type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	// UpdatePassword sets a password for the account owning accessToken,
	// typically the token carried by an invite link.
	UpdatePassword(ctx context.Context, accessToken, password string) (Account, error)
}

type Provider interface {
	Admin
	Authenticator
}
