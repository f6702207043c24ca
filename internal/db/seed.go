package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/agency-portal/internal/models"
)

// SeedAdmin makes sure a profile with the admin role exists for email.
// It is safe to call on every start: an existing profile is promoted and
// linked to accountID when it has none yet.
func SeedAdmin(ctx context.Context, gdb *gorm.DB, email, name, accountID string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("admin email is required")
	}
	var p models.Profile
	err := gdb.WithContext(ctx).
		Where(models.Profile{Email: email}).
		Attrs(models.Profile{Name: name, Role: models.RoleAdmin, AccountID: accountID}).
		FirstOrCreate(&p).Error
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if p.Role != models.RoleAdmin {
		updates["role"] = models.RoleAdmin
	}
	if p.AccountID == "" && accountID != "" {
		updates["account_id"] = accountID
	}
	if len(updates) > 0 {
		if err := gdb.WithContext(ctx).Model(&p).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &p, nil
}
