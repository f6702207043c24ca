package policy

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/diewo77/agency-portal/gate"
	"github.com/diewo77/agency-portal/internal/models"
)

// Resource names used in permissions.
const (
	ResourceProject     = "project"
	ResourceInvoice     = "invoice"
	ResourcePayment     = "payment"
	ResourceClient      = "client"
	ResourceCallRequest = "call_request"
)

// RolePermissions is the fixed grant for each role. Clients only read, and
// only their own records (see OwnershipPolicy).
var RolePermissions = map[models.Role][]gate.Permission{
	models.RoleAdmin: {gate.PermissionAll},
	models.RoleClient: {
		gate.NewPermission(ResourceProject, gate.ActionList),
		gate.NewPermission(ResourceProject, gate.ActionView),
		gate.NewPermission(ResourceInvoice, gate.ActionList),
		gate.NewPermission(ResourceInvoice, gate.ActionView),
		gate.NewPermission(ResourcePayment, gate.ActionList),
	},
}

// ProfileRoleResolver loads the profile's role from the database and maps
// it to the role's grant.
type ProfileRoleResolver struct {
	db *gorm.DB
}

func NewProfileRoleResolver(db *gorm.DB) *ProfileRoleResolver {
	return &ProfileRoleResolver{db: db}
}

// Resolve returns nil for unknown profiles and for roles without a grant.
func (r *ProfileRoleResolver) Resolve(ctx context.Context, profileID uint) (gate.Grant, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).Select("id", "role").First(&p, profileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	perms, ok := RolePermissions[p.Role]
	if !ok {
		return nil, nil
	}
	return gate.NewRoleGrant(string(p.Role), perms...), nil
}
