package models

import (
	"math"
	"strings"
	"time"
)

var enumReplacer = strings.NewReplacer(" ", "-", "_", "-")

// normalizeEnum folds "In Progress", "in_progress" and "in-progress" together.
func normalizeEnum(s string) string {
	return enumReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))
}

type ProjectType string

const (
	ProjectTypeOnceOff     ProjectType = "once-off"
	ProjectTypePartnership ProjectType = "partnership"
)

var ProjectTypes = []ProjectType{ProjectTypeOnceOff, ProjectTypePartnership}

func (t ProjectType) Valid() bool {
	return t == ProjectTypeOnceOff || t == ProjectTypePartnership
}

// ParseProjectType normalizes s and reports whether it names a known type.
func ParseProjectType(s string) (ProjectType, bool) {
	t := ProjectType(normalizeEnum(s))
	return t, t.Valid()
}

// Label treats anything that is not a partnership as a once-off job.
func (t ProjectType) Label() string {
	if t == ProjectTypePartnership {
		return "Partnership"
	}
	return "Once Off"
}

type ProjectStatus string

const (
	ProjectPending    ProjectStatus = "pending"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectComplete   ProjectStatus = "complete"
	ProjectPaused     ProjectStatus = "paused"
	ProjectCancelled  ProjectStatus = "cancelled"
)

var ProjectStatuses = []ProjectStatus{ProjectPending, ProjectInProgress, ProjectComplete, ProjectPaused, ProjectCancelled}

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPending, ProjectInProgress, ProjectComplete, ProjectPaused, ProjectCancelled:
		return true
	}
	return false
}

func ParseProjectStatus(s string) (ProjectStatus, bool) {
	st := ProjectStatus(normalizeEnum(s))
	return st, st.Valid()
}

// Label is the admin-facing name. Unknown or empty statuses read as Pending.
func (s ProjectStatus) Label() string {
	switch s {
	case ProjectInProgress:
		return "In Progress"
	case ProjectComplete:
		return "Complete"
	case ProjectPaused:
		return "Paused"
	case ProjectCancelled:
		return "Cancelled"
	default:
		return "Pending"
	}
}

// PortalStage is the coarser stage shown to clients.
func (s ProjectStatus) PortalStage() string {
	switch s {
	case ProjectInProgress:
		return "Building"
	case ProjectComplete:
		return "Complete"
	case ProjectPaused:
		return "Review"
	default:
		return "Planning"
	}
}

type TaskStatus string

const (
	TaskToDo       TaskStatus = "to-do"
	TaskInProgress TaskStatus = "in-progress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
)

var TaskStatuses = []TaskStatus{TaskToDo, TaskInProgress, TaskReview, TaskDone}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskToDo, TaskInProgress, TaskReview, TaskDone:
		return true
	}
	return false
}

func ParseTaskStatus(s string) (TaskStatus, bool) {
	st := TaskStatus(normalizeEnum(s))
	return st, st.Valid()
}

func (s TaskStatus) Label() string {
	switch s {
	case TaskInProgress:
		return "In Progress"
	case TaskReview:
		return "Review"
	case TaskDone:
		return "Done"
	default:
		return "To Do"
	}
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
)

var TaskPriorities = []TaskPriority{PriorityLow, PriorityNormal, PriorityHigh}

func (p TaskPriority) Valid() bool {
	return p == PriorityLow || p == PriorityNormal || p == PriorityHigh
}

func ParseTaskPriority(s string) (TaskPriority, bool) {
	p := TaskPriority(normalizeEnum(s))
	return p, p.Valid()
}

func (p TaskPriority) Label() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityHigh:
		return "High"
	default:
		return "Normal"
	}
}

// Project is a piece of client work. ClientID is nil for internal projects.
type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectName string        `gorm:"size:255;not null" json:"project_name"`
	Description string        `gorm:"type:text" json:"description,omitempty"`
	Type        ProjectType   `gorm:"size:20;not null;default:'once-off'" json:"type"`
	Status      ProjectStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`

	ClientID *uint    `gorm:"index" json:"client_id,omitempty"`
	Client   *Profile `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	Milestones []Milestone `gorm:"foreignKey:ProjectID" json:"milestones,omitempty"`
}

func (p *Project) GetClientID() uint {
	if p.ClientID == nil {
		return 0
	}
	return *p.ClientID
}

func (p *Project) IsActive() bool {
	return p.Status == ProjectPending || p.Status == ProjectInProgress
}

// Progress is the rounded share of done tasks across all milestones, 0..100.
func (p *Project) Progress() int {
	var done, total int
	for _, m := range p.Milestones {
		d, t := m.taskCounts()
		done += d
		total += t
	}
	return percent(done, total)
}

func (p *Project) TaskCount() int {
	var n int
	for _, m := range p.Milestones {
		n += len(m.Tasks)
	}
	return n
}

// NextMilestone returns the earliest milestone that still has open tasks,
// or nil when everything is done.
func (p *Project) NextMilestone() *Milestone {
	var next *Milestone
	for i := range p.Milestones {
		m := &p.Milestones[i]
		if len(m.Tasks) > 0 && m.Progress() == 100 {
			continue
		}
		if next == nil || m.DueDate.Before(next.DueDate) {
			next = m
		}
	}
	return next
}

type Milestone struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID   uint      `gorm:"index;not null" json:"project_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	DueDate     time.Time `gorm:"not null" json:"due_date"`

	Tasks []Task `gorm:"foreignKey:MilestoneID" json:"tasks,omitempty"`
}

func (Milestone) TableName() string { return "project_milestones" }

func (m *Milestone) Progress() int {
	return percent(m.taskCounts())
}

func (m *Milestone) taskCounts() (done, total int) {
	for _, t := range m.Tasks {
		if t.Status == TaskDone {
			done++
		}
	}
	return done, len(m.Tasks)
}

type Task struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MilestoneID uint         `gorm:"index;not null" json:"milestone_id"`
	Name        string       `gorm:"size:255;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	Status      TaskStatus   `gorm:"size:20;not null;default:'to-do'" json:"status"`
	Priority    TaskPriority `gorm:"size:20;not null;default:'normal'" json:"priority"`
}

func (Task) TableName() string { return "milestone_tasks" }

func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}
