package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LocalAccount is a credential row kept in the app database when no hosted
// auth service is configured.
type LocalAccount struct {
	ID           string `gorm:"primaryKey;size:36"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	Name         string `gorm:"size:255"`
	PasswordHash string `gorm:"size:100"`
	InviteToken  string `gorm:"size:36;index"`
	InvitedAt    *time.Time
}

func (LocalAccount) TableName() string { return "identity_accounts" }

// Local implements Provider on top of gorm. Invite links are written to the
// log instead of being emailed.
type Local struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewLocal(db *gorm.DB, log *zap.Logger) *Local {
	return &Local{db: db, log: log}
}

func (l *Local) Migrate() error {
	return l.db.AutoMigrate(&LocalAccount{})
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (l *Local) InviteUserByEmail(ctx context.Context, email string, opts InviteOptions) (Account, error) {
	email = normalizeEmail(email)
	var count int64
	if err := l.db.WithContext(ctx).Model(&LocalAccount{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return Account{}, err
	}
	if count > 0 {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountExists, email)
	}

	now := time.Now()
	acc := LocalAccount{
		ID:          uuid.NewString(),
		Email:       email,
		InviteToken: uuid.NewString(),
		InvitedAt:   &now,
	}
	if name, ok := opts.Data["name"].(string); ok {
		acc.Name = name
	}
	if err := l.db.WithContext(ctx).Create(&acc).Error; err != nil {
		return Account{}, err
	}
	l.log.Info("invite link issued",
		zap.String("email", email),
		zap.String("link", inviteLink(opts.RedirectTo, acc.InviteToken)),
	)
	return Account{ID: acc.ID, Email: acc.Email}, nil
}

func inviteLink(redirectTo, token string) string {
	return redirectTo + "#access_token=" + url.QueryEscape(token) + "&type=invite"
}

func (l *Local) DeleteUser(ctx context.Context, accountID string) error {
	res := l.db.WithContext(ctx).Where("id = ?", accountID).Delete(&LocalAccount{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (l *Local) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	var acc LocalAccount
	err := l.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if acc.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	return Session{AccessToken: uuid.NewString(), Account: Account{ID: acc.ID, Email: acc.Email}}, nil
}

// UpdatePassword consumes an invite token. The token cannot be reused.
func (l *Local) UpdatePassword(ctx context.Context, accessToken, password string) (Account, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Account{}, ErrInvalidToken
	}
	var acc LocalAccount
	err := l.db.WithContext(ctx).Where("invite_token = ?", accessToken).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidToken
	}
	if err != nil {
		return Account{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}
	err = l.db.WithContext(ctx).Model(&acc).Updates(map[string]any{
		"password_hash": string(hash),
		"invite_token":  "",
	}).Error
	if err != nil {
		return Account{}, err
	}
	return Account{ID: acc.ID, Email: acc.Email}, nil
}

// EnsureAccount creates an account with a password, or sets the password on
// an existing account that has none. Used to bootstrap the admin.
func (l *Local) EnsureAccount(ctx context.Context, email, name, password string) (Account, error) {
	email = normalizeEmail(email)
	var acc LocalAccount
	err := l.db.WithContext(ctx).Where("email = ?", email).First(&acc).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, err
	}
	if err == nil && acc.PasswordHash != "" {
		return Account{ID: acc.ID, Email: acc.Email}, nil
	}
	hash, herr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if herr != nil {
		return Account{}, herr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acc = LocalAccount{ID: uuid.NewString(), Email: email, Name: name, PasswordHash: string(hash)}
		if err := l.db.WithContext(ctx).Create(&acc).Error; err != nil {
			return Account{}, err
		}
	} else if err := l.db.WithContext(ctx).Model(&acc).Update("password_hash", string(hash)).Error; err != nil {
		return Account{}, err
	}
	return Account{ID: acc.ID, Email: acc.Email}, nil
}

var (
	_ Provider = (*Local)(nil)
	_ Provider = (*GoTrue)(nil)
)
