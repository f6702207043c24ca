package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/agency-portal/internal/metrics"
	"github.com/diewo77/agency-portal/internal/models"
	"github.com/diewo77/agency-portal/validation"
)

type CallRequestInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	ProjectOverview string `json:"project_overview"`
}

type CallRequestService struct {
	db *gorm.DB
}

func NewCallRequestService(db *gorm.DB) *CallRequestService {
	return &CallRequestService{db: db}
}

func (s *CallRequestService) Create(ctx context.Context, in CallRequestInput) (*models.CallRequest, error) {
	cr := models.CallRequest{
		Name:            strings.TrimSpace(in.Name),
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:           strings.TrimSpace(in.Phone),
		ProjectOverview: strings.TrimSpace(in.ProjectOverview),
	}
	v := validation.Violations{}
	validation.Required("name", cr.Name, v)
	validation.Email("email", cr.Email, v)
	validation.Required("project_overview", cr.ProjectOverview, v)
	if err := invalid(v); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&cr).Error; err != nil {
		return nil, err
	}
	metrics.CallRequests.Inc()
	return &cr, nil
}

func (s *CallRequestService) List(ctx context.Context) ([]models.CallRequest, error) {
	var out []models.CallRequest
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CallRequestService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.CallRequest{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("call request %d: %w", id, ErrNotFound)
	}
	return nil
}
