package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/agency-portal/internal/models"
)

type ProfileService struct {
	db *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

func (s *ProfileService) Get(ctx context.Context, id uint) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound("profile", id, err)
	}
	return &p, nil
}

func (s *ProfileService) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("profile %d: %w", id, err)
	}
	return count > 0, nil
}

// ForAccount finds the profile for an identity account, falling back to
// the email and linking the account id when the profile predates it.
func (s *ProfileService) ForAccount(ctx context.Context, accountID, email string) (*models.Profile, error) {
	db := s.db.WithContext(ctx)
	var p models.Profile
	if accountID != "" {
		err := db.Where("account_id = ?", accountID).First(&p).Error
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.AccountID == "" && accountID != "" {
		if err := db.Model(&p).Update("account_id", accountID).Error; err != nil {
			return nil, err
		}
	}
	return &p, nil
}
