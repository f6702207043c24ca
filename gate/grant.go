package gate

import (
	"context"
	"sort"
)

// Grant is what a user is allowed to do, derived from their role.
type Grant interface {
	Role() string
	Allows(p Permission) bool
	Permissions() []Permission
}

// Resolver maps a user to their grant. A nil grant with a nil error means
// the user is unknown.
type Resolver[U any] interface {
	Resolve(ctx context.Context, user U) (Grant, error)
}

// RoleGrant is an in-memory Grant for a named role.
type RoleGrant struct {
	role  string
	perms map[Permission]struct{}
}

func NewRoleGrant(role string, perms ...Permission) *RoleGrant {
	g := &RoleGrant{role: role, perms: make(map[Permission]struct{}, len(perms))}
	for _, p := range perms {
		g.perms[p] = struct{}{}
	}
	return g
}

func (g *RoleGrant) Role() string { return g.role }

// Permissions returns the granted permissions in sorted order.
func (g *RoleGrant) Permissions() []Permission {
	out := make([]Permission, 0, len(g.perms))
	for p := range g.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *RoleGrant) Allows(requested Permission) bool {
	for p := range g.perms {
		if p.Covers(requested) {
			return true
		}
	}
	return false
}

// MapResolver serves fixed grants, mostly for tests.
type MapResolver[U comparable] struct {
	grants map[U]Grant
}

func NewMapResolver[U comparable]() *MapResolver[U] {
	return &MapResolver[U]{grants: make(map[U]Grant)}
}

func (r *MapResolver[U]) Set(user U, g Grant) { r.grants[user] = g }

func (r *MapResolver[U]) Resolve(_ context.Context, user U) (Grant, error) {
	return r.grants[user], nil
}
