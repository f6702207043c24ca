// Package gate decides whether a signed-in user may act on portal records.
//
// A user resolves to a Grant: the role recorded on their profile and the
// permissions that role carries. Record policies registered per resource
// type narrow a grant down to the records a user is allowed to touch, such
// as the projects and invoices that belong to a client.
package gate

import (
	"context"
	"errors"
)

// Sentinel errors returned by Gate.Authorize.
var (
	ErrForbidden = errors.New("forbidden")
	ErrNoGrant   = errors.New("no grant for user")
)

// Policy restricts access to individual records of one resource type.
// For list and create checks the record is nil and policies are skipped.
type Policy[U any] interface {
	Can(ctx context.Context, user U, action Action, record any) bool
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc[U any] func(ctx context.Context, user U, action Action, record any) bool

func (f PolicyFunc[U]) Can(ctx context.Context, user U, action Action, record any) bool {
	return f(ctx, user, action, record)
}

// Gate combines role grants with per-record policies.
type Gate[U comparable] struct {
	resolver Resolver[U]
	policies map[string]Policy[U]
}

func New[U comparable](resolver Resolver[U]) *Gate[U] {
	return &Gate[U]{resolver: resolver, policies: make(map[string]Policy[U])}
}

// Register attaches a record policy to a resource type, replacing any previous one.
func (g *Gate[U]) Register(resource string, p Policy[U]) {
	g.policies[resource] = p
}

// Authorize returns nil when user holds resource:action and, if a record is
// given, the resource policy accepts it.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resource string, record any) error {
	grant, err := g.grantFor(ctx, user)
	if err != nil {
		return err
	}
	if !grant.Allows(NewPermission(resource, action)) {
		return ErrForbidden
	}
	if record == nil {
		return nil
	}
	if p, ok := g.policies[resource]; ok && !p.Can(ctx, user, action, record) {
		return ErrForbidden
	}
	return nil
}

func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resource string, record any) bool {
	return g.Authorize(ctx, user, action, resource, record) == nil
}

// Allows checks the role grant only. Templates use it to hide controls.
func (g *Gate[U]) Allows(ctx context.Context, user U, action Action, resource string) bool {
	grant, err := g.grantFor(ctx, user)
	if err != nil {
		return false
	}
	return grant.Allows(NewPermission(resource, action))
}

// GrantFor exposes the resolved grant, e.g. for role checks in middleware.
func (g *Gate[U]) GrantFor(ctx context.Context, user U) (Grant, error) {
	return g.grantFor(ctx, user)
}

func (g *Gate[U]) grantFor(ctx context.Context, user U) (Grant, error) {
	var zero U
	if user == zero {
		return nil, ErrNoGrant
	}
	grant, err := g.resolver.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, ErrNoGrant
	}
	return grant, nil
}
