package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/agency-portal/internal/models"
	"github.com/diewo77/agency-portal/validation"
)

type ProjectInput struct {
	ProjectName string               `json:"project_name"`
	Description string               `json:"description"`
	Type        models.ProjectType   `json:"type"`
	Status      models.ProjectStatus `json:"status"`
	ClientID    *uint                `json:"client_id"`
}

type MilestoneInput struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
}

type TaskInput struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
}

type ProjectService struct {
	db *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

func enumStrings[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

func (s *ProjectService) validateProject(ctx context.Context, in *ProjectInput) error {
	in.ProjectName = strings.TrimSpace(in.ProjectName)
	if in.Type == "" {
		in.Type = models.ProjectTypeOnceOff
	}
	if in.Status == "" {
		in.Status = models.ProjectPending
	}
	if in.ClientID != nil && *in.ClientID == 0 {
		in.ClientID = nil
	}

	v := validation.Violations{}
	validation.Required("project_name", in.ProjectName, v)
	validation.OneOf("type", string(in.Type), enumStrings(models.ProjectTypes), v)
	validation.OneOf("status", string(in.Status), enumStrings(models.ProjectStatuses), v)
	if in.ClientID != nil {
		if err := checkClient(s.db.WithContext(ctx), *in.ClientID, v); err != nil {
			return err
		}
	}
	return invalid(v)
}

func (s *ProjectService) CreateProject(ctx context.Context, in ProjectInput) (*models.Project, error) {
	if err := s.validateProject(ctx, &in); err != nil {
		return nil, err
	}
	p := models.Project{
		ProjectName: in.ProjectName,
		Description: strings.TrimSpace(in.Description),
		Type:        in.Type,
		Status:      in.Status,
		ClientID:    in.ClientID,
	}
	if err := s.db.WithContext(ctx).Omit("Client", "Milestones").Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProjectService) UpdateProject(ctx context.Context, id uint, in ProjectInput) (*models.Project, error) {
	if err := s.validateProject(ctx, &in); err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Updates(map[string]any{
		"project_name": in.ProjectName,
		"description":  strings.TrimSpace(in.Description),
		"type":         in.Type,
		"status":       in.Status,
		"client_id":    in.ClientID,
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return s.GetProject(ctx, id)
}

func (s *ProjectService) SetStatus(ctx context.Context, id uint, status models.ProjectStatus) error {
	if !status.Valid() {
		return invalid(validation.Violations{"status": "invalid_choice"})
	}
	res := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return nil
}

func withPlan(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Client").
		Preload("Milestones", func(db *gorm.DB) *gorm.DB { return db.Order("due_date, id") }).
		Preload("Milestones.Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

// GetProject loads the project with its client, milestones and tasks.
func (s *ProjectService) GetProject(ctx context.Context, id uint) (*models.Project, error) {
	var p models.Project
	if err := withPlan(s.db.WithContext(ctx)).First(&p, id).Error; err != nil {
		return nil, notFound("project", id, err)
	}
	return &p, nil
}

// ListProjects returns projects newest first. clientID 0 means all.
func (s *ProjectService) ListProjects(ctx context.Context, clientID uint) ([]models.Project, error) {
	q := withPlan(s.db.WithContext(ctx)).Order("created_at DESC, id DESC")
	if clientID != 0 {
		q = q.Where("client_id = ?", clientID)
	}
	var out []models.Project
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteProject removes tasks, milestones and the project together.
func (s *ProjectService) DeleteProject(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		milestones := tx.Model(&models.Milestone{}).Select("id").Where("project_id = ?", id)
		if err := tx.Where("milestone_id IN (?)", milestones).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Milestone{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Project{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("project %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

func validateMilestone(in *MilestoneInput) error {
	in.Name = strings.TrimSpace(in.Name)
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	if in.DueDate.IsZero() {
		v.Add("due_date", "required")
	}
	return invalid(v)
}

func (s *ProjectService) AddMilestone(ctx context.Context, projectID uint, in MilestoneInput) (*models.Milestone, error) {
	if err := validateMilestone(&in); err != nil {
		return nil, err
	}
	var p models.Project
	if err := s.db.WithContext(ctx).Select("id").First(&p, projectID).Error; err != nil {
		return nil, notFound("project", projectID, err)
	}
	m := models.Milestone{
		ProjectID:   projectID,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		DueDate:     in.DueDate,
	}
	if err := s.db.WithContext(ctx).Omit("Tasks").Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *ProjectService) UpdateMilestone(ctx context.Context, projectID, id uint, in MilestoneInput) error {
	if err := validateMilestone(&in); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.Milestone{}).
		Where("id = ? AND project_id = ?", id, projectID).
		Updates(map[string]any{
			"name":        in.Name,
			"description": strings.TrimSpace(in.Description),
			"due_date":    in.DueDate,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("milestone %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteMilestone removes the milestone's tasks first.
func (s *ProjectService) DeleteMilestone(ctx context.Context, projectID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireMilestone(tx, projectID, id); err != nil {
			return err
		}
		if err := tx.Where("milestone_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Milestone{}, id).Error
	})
}

func requireMilestone(tx *gorm.DB, projectID, id uint) error {
	var m models.Milestone
	err := tx.Select("id").Where("project_id = ?", projectID).First(&m, id).Error
	return notFound("milestone", id, err)
}

func validateTask(in *TaskInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Status == "" {
		in.Status = models.TaskToDo
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.OneOf("status", string(in.Status), enumStrings(models.TaskStatuses), v)
	validation.OneOf("priority", string(in.Priority), enumStrings(models.TaskPriorities), v)
	return invalid(v)
}

func (s *ProjectService) AddTask(ctx context.Context, projectID, milestoneID uint, in TaskInput) (*models.Task, error) {
	if err := validateTask(&in); err != nil {
		return nil, err
	}
	if err := requireMilestone(s.db.WithContext(ctx), projectID, milestoneID); err != nil {
		return nil, err
	}
	t := models.Task{
		MilestoneID: milestoneID,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		Priority:    in.Priority,
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// taskScope limits a task query to tasks under the given project.
func (s *ProjectService) taskScope(ctx context.Context, projectID, id uint) *gorm.DB {
	milestones := s.db.Model(&models.Milestone{}).Select("id").Where("project_id = ?", projectID)
	return s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ? AND milestone_id IN (?)", id, milestones)
}

func (s *ProjectService) UpdateTask(ctx context.Context, projectID, id uint, in TaskInput) error {
	if err := validateTask(&in); err != nil {
		return err
	}
	res := s.taskScope(ctx, projectID, id).Updates(map[string]any{
		"name":        in.Name,
		"description": strings.TrimSpace(in.Description),
		"status":      in.Status,
		"priority":    in.Priority,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *ProjectService) SetTaskStatus(ctx context.Context, projectID, id uint, status models.TaskStatus) error {
	if !status.Valid() {
		return invalid(validation.Violations{"status": "invalid_choice"})
	}
	res := s.taskScope(ctx, projectID, id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *ProjectService) DeleteTask(ctx context.Context, projectID, id uint) error {
	milestones := s.db.Model(&models.Milestone{}).Select("id").Where("project_id = ?", projectID)
	res := s.db.WithContext(ctx).Where("id = ? AND milestone_id IN (?)", id, milestones).Delete(&models.Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}
