package policy

import (
	"context"

	"github.com/diewo77/agency-portal/gate"
)

// ClientOwned is implemented by records that belong to one client profile.
type ClientOwned interface {
	GetClientID() uint
}

// OwnershipPolicy lets a user act on a record only when the record's client
// is the user. Records that do not implement ClientOwned are refused.
type OwnershipPolicy struct{}

func (OwnershipPolicy) Can(_ context.Context, profileID uint, _ gate.Action, record any) bool {
	owned, ok := record.(ClientOwned)
	if !ok {
		return false
	}
	id := owned.GetClientID()
	return id != 0 && id == profileID
}

// AdminBypass lets admins through before consulting inner.
type AdminBypass struct {
	inner   gate.Policy[uint]
	isAdmin func(ctx context.Context, profileID uint) bool
}

func NewAdminBypass(inner gate.Policy[uint], isAdmin func(context.Context, uint) bool) *AdminBypass {
	return &AdminBypass{inner: inner, isAdmin: isAdmin}
}

func (p *AdminBypass) Can(ctx context.Context, profileID uint, action gate.Action, record any) bool {
	if p.isAdmin(ctx, profileID) {
		return true
	}
	return p.inner.Can(ctx, profileID, action, record)
}
