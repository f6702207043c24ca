// Package policy wires role grants and client ownership into HTTP middleware.
package policy

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/agency-portal/auth"
	"github.com/diewo77/agency-portal/gate"
	"github.com/diewo77/agency-portal/httpx"
	"github.com/diewo77/agency-portal/internal/models"
)

// AuthGate checks the signed-in user against role grants and, for
// client-owned records, ownership.
type AuthGate struct {
	Gate     *gate.Gate[uint]
	Resolver *gate.CachedResolver[uint]
}

func NewAuthGate(db *gorm.DB, cacheTTL time.Duration) *AuthGate {
	resolver := gate.NewCachedResolver[uint](NewProfileRoleResolver(db), cacheTTL)
	ag := &AuthGate{Gate: gate.New[uint](resolver), Resolver: resolver}

	owned := NewAdminBypass(OwnershipPolicy{}, ag.isAdmin)
	for _, res := range []string{ResourceProject, ResourceInvoice, ResourcePayment, ResourceClient} {
		ag.Gate.Register(res, owned)
	}
	return ag
}

func (ag *AuthGate) isAdmin(ctx context.Context, profileID uint) bool {
	g, err := ag.Gate.GrantFor(ctx, profileID)
	return err == nil && g.Role() == string(models.RoleAdmin)
}

// Authorize checks the current user. record may be nil for list and create.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resource string, record any) error {
	uid, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return gate.ErrNoGrant
	}
	return ag.Gate.Authorize(ctx, uid, action, resource, record)
}

func (ag *AuthGate) Can(ctx context.Context, action gate.Action, resource string, record any) bool {
	return ag.Authorize(ctx, action, resource, record) == nil
}

// Allows checks the role grant only, for showing or hiding controls.
func (ag *AuthGate) Allows(ctx context.Context, action gate.Action, resource string) bool {
	uid, ok := auth.UserIDFromContext(ctx)
	return ok && ag.Gate.Allows(ctx, uid, action, resource)
}

// Role returns the current user's role, or "" when unknown.
func (ag *AuthGate) Role(ctx context.Context) models.Role {
	uid, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return ""
	}
	g, err := ag.Gate.GrantFor(ctx, uid)
	if err != nil {
		return ""
	}
	return models.Role(g.Role())
}

// Forget drops a cached grant after a role change.
func (ag *AuthGate) Forget(profileID uint) { ag.Resolver.Forget(profileID) }

// HomeFor is the landing page for a role after sign-in.
func HomeFor(role models.Role) string {
	if role == models.RoleAdmin {
		return "/admin"
	}
	return "/dashboard/projects"
}

// Forbidden answers with 403 in the requested format.
func Forbidden(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// RequirePermission blocks users whose role lacks resource:action.
func (ag *AuthGate) RequirePermission(resource string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ag.Allows(r.Context(), action, resource) {
				Forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole keeps each portal to its own role. Browsers that land in the
// wrong portal are sent to their own home page.
func (ag *AuthGate) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := ag.Role(r.Context())
			if got == role {
				next.ServeHTTP(w, r)
				return
			}
			if got == "" {
				auth.Unauthorized(w, r)
				return
			}
			if httpx.WantsJSON(r) {
				Forbidden(w, r)
				return
			}
			http.Redirect(w, r, HomeFor(got), http.StatusSeeOther)
		})
	}
}
