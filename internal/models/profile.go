package models

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleClient }

func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleClient:
		return "Client"
	default:
		return "Unknown"
	}
}

// Profile is a person who can sign in: the agency admin or one of its clients.
// AccountID links the row to the identity provider's user.
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AccountID string `gorm:"size:64;index" json:"account_id,omitempty"`
	Name      string `gorm:"size:255;not null" json:"name"`
	Email     string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      Role   `gorm:"size:20;not null;default:'client';index" json:"role"`
}

func (p *Profile) IsAdmin() bool  { return p.Role == RoleAdmin }
func (p *Profile) IsClient() bool { return p.Role == RoleClient }

// GetClientID lets ownership checks treat a client's own profile as owned by them.
func (p *Profile) GetClientID() uint { return p.ID }

// CallRequest is a prospect asking for a call from the public collaborate page.
type CallRequest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Name            string `gorm:"size:255;not null" json:"name"`
	Email           string `gorm:"size:255;not null" json:"email"`
	Phone           string `gorm:"size:50" json:"phone,omitempty"`
	ProjectOverview string `gorm:"type:text;not null" json:"project_overview"`
}
