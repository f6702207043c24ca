package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/agency-portal/internal/identity"
	"github.com/diewo77/agency-portal/internal/metrics"
	"github.com/diewo77/agency-portal/internal/models"
	"github.com/diewo77/agency-portal/validation"
)

// SetPasswordPath is where invite links land.
const SetPasswordPath = "/auth/set-password"

type InviteService struct {
	db      *gorm.DB
	admin   identity.Admin
	baseURL string
	log     *zap.Logger
}

func NewInviteService(db *gorm.DB, admin identity.Admin, baseURL string, log *zap.Logger) *InviteService {
	return &InviteService{db: db, admin: admin, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

// InviteClient creates an account with the identity provider, which emails
// the invite, then stores the client profile. If the profile cannot be
// stored the account is deleted again.
func (s *InviteService) InviteClient(ctx context.Context, name, email string) (*models.Profile, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	v := validation.Violations{}
	validation.Required("name", name, v)
	validation.Email("email", email, v)
	if err := invalid(v); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		metrics.ClientsInvited.WithLabelValues("exists").Inc()
		return nil, ErrEmailTaken
	}

	acc, err := s.admin.InviteUserByEmail(ctx, email, identity.InviteOptions{
		RedirectTo: s.baseURL + SetPasswordPath,
		Data:       map[string]any{"name": name, "role": string(models.RoleClient)},
	})
	if errors.Is(err, identity.ErrAccountExists) {
		metrics.ClientsInvited.WithLabelValues("exists").Inc()
		return nil, ErrEmailTaken
	}
	if err != nil {
		metrics.ClientsInvited.WithLabelValues("provider_error").Inc()
		return nil, fmt.Errorf("invite %s: %w", email, err)
	}

	p := models.Profile{AccountID: acc.ID, Name: name, Email: email, Role: models.RoleClient}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		if delErr := s.admin.DeleteUser(ctx, acc.ID); delErr != nil {
			s.log.Error("invite rollback failed",
				zap.String("account_id", acc.ID), zap.Error(delErr))
		}
		metrics.ClientsInvited.WithLabelValues("rolled_back").Inc()
		return nil, fmt.Errorf("%w: %w", ErrProfileCreate, err)
	}
	metrics.ClientsInvited.WithLabelValues("ok").Inc()
	s.log.Info("client invited", zap.Uint("profile_id", p.ID), zap.String("email", email))
	return &p, nil
}
