package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/agency-portal/auth"
	"github.com/diewo77/agency-portal/gate"
	"github.com/diewo77/agency-portal/internal/handlers"
	"github.com/diewo77/agency-portal/internal/identity"
	"github.com/diewo77/agency-portal/internal/metrics"
	"github.com/diewo77/agency-portal/internal/middleware"
	"github.com/diewo77/agency-portal/internal/models"
	"github.com/diewo77/agency-portal/internal/pdf"
	"github.com/diewo77/agency-portal/internal/policy"
	"github.com/diewo77/agency-portal/internal/services"
	"github.com/diewo77/agency-portal/view"
)

// Options carries what the app needs from main; tests fill it directly.
type Options struct {
	DB            *gorm.DB
	Identity      identity.Provider
	Log           *zap.Logger
	BaseURL       string
	SessionSecret string
	SecureCookie  bool
	// TrustedProxy enables client addresses from forwarding headers.
	TrustedProxy  bool
	Issuer        pdf.Issuer
	Limiter       *middleware.RateLimiter
	GateCacheTTL  time.Duration
}

// App is the main application handler that sets up all routes.
type App struct {
	router   chi.Router
	db       *gorm.DB
	gate     *policy.AuthGate
	sessions *auth.Manager
	limiter  *middleware.RateLimiter
	log      *zap.Logger
}

// NewApp builds services and handlers and mounts every route.
func NewApp(o Options) *App {
	if o.GateCacheTTL == 0 {
		o.GateCacheTTL = time.Minute
	}
	profiles := services.NewProfileService(o.DB)
	ag := policy.NewAuthGate(o.DB, o.GateCacheTTL)
	sessions := auth.NewManager(o.SessionSecret,
		auth.WithSecureCookie(o.SecureCookie),
		auth.WithVerifier(func(ctx context.Context, s auth.Session) (bool, error) {
			return profiles.Exists(ctx, s.ProfileID)
		}),
	)

	// Templates hide controls the current user may not use.
	view.SetCanResolver(func(r *http.Request, resource, action string) bool {
		return ag.Allows(r.Context(), gate.Action(action), resource)
	})
	view.SetIsAdminResolver(func(r *http.Request) bool {
		return ag.Role(r.Context()) == models.RoleAdmin
	})

	a := &App{
		router:   chi.NewRouter(),
		db:       o.DB,
		gate:     ag,
		sessions: sessions,
		limiter:  o.Limiter,
		log:      o.Log,
	}
	a.setupRoutes(o, profiles)
	return a
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) setupRoutes(o Options, profiles *services.ProfileService) {
	invoices := services.NewInvoiceService(o.DB)
	projects := services.NewProjectService(o.DB)
	dashboard := services.NewDashboardService(o.DB, invoices, projects)
	calls := services.NewCallRequestService(o.DB)
	invites := services.NewInviteService(o.DB, o.Identity, o.BaseURL, o.Log)

	public := handlers.NewPublicHandler(calls)
	authH := handlers.NewAuthHandler(o.Identity, profiles, a.sessions, a.gate)
	admin := handlers.NewAdminHandler(dashboard, invoices, invites, calls)
	projectH := handlers.NewProjectHandler(projects, dashboard)
	billing := handlers.NewBillingHandler(invoices, dashboard, o.Issuer)
	portal := handlers.NewPortalHandler(projects, invoices, a.gate, o.Issuer)

	r := a.router
	r.Use(chimw.RequestID)
	if o.TrustedProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.AccessLog(a.log))
	r.Use(chimw.Recoverer)
	r.Use(a.sessions.Middleware)

	limited := func(h http.HandlerFunc) http.Handler {
		if a.limiter == nil {
			return h
		}
		return a.limiter.Handler(h)
	}

	// Public
	r.Get("/", public.Home)
	r.Get("/services", public.Services)
	r.Get("/pricing", public.Pricing)
	r.Get("/solutions", public.Solutions)
	r.Get("/products", public.Products)
	r.Get("/projects", public.Portfolio)
	r.Get("/collaborate", public.Collaborate)
	r.Method(http.MethodPost, "/collaborate", limited(public.SubmitCollaborate))
	r.Get("/healthz", handlers.Health(a.db))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Auth
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", authH.LoginPage)
		r.Method(http.MethodPost, "/login", limited(authH.Login))
		r.Post("/logout", authH.Logout)
		r.Get("/set-password", authH.SetPasswordPage)
		r.Method(http.MethodPost, "/set-password", limited(authH.SetPassword))
	})

	// Admin
	r.Route("/admin", func(r chi.Router) {
		r.Use(a.sessions.RequireAuth, a.gate.RequireRole(models.RoleAdmin))

		r.Get("/", admin.Dashboard)

		r.Route("/clients", func(r chi.Router) {
			r.With(a.gate.RequirePermission(policy.ResourceClient, gate.ActionList)).Get("/", admin.Clients)
			r.With(a.gate.RequirePermission(policy.ResourceClient, gate.ActionInvite)).Post("/invite", admin.InviteClient)
			r.With(a.gate.RequirePermission(policy.ResourceClient, gate.ActionView)).Get("/{id}", admin.Client)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projectH.List)
			r.Get("/new", projectH.New)
			r.Post("/", projectH.Create)
			r.Get("/{id}", projectH.View)
			r.Post("/{id}", projectH.Update)
			r.Post("/{id}/status", projectH.SetStatus)
			r.Post("/{id}/delete", projectH.Delete)
			r.Post("/{id}/milestones", projectH.AddMilestone)
			r.Post("/{id}/milestones/{milestoneID}", projectH.UpdateMilestone)
			r.Post("/{id}/milestones/{milestoneID}/delete", projectH.DeleteMilestone)
			r.Post("/{id}/milestones/{milestoneID}/tasks", projectH.AddTask)
			r.Post("/{id}/tasks/{taskID}", projectH.UpdateTask)
			r.Post("/{id}/tasks/{taskID}/status", projectH.SetTaskStatus)
			r.Post("/{id}/tasks/{taskID}/delete", projectH.DeleteTask)
		})

		r.Route("/finance", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/admin/finance/billing", http.StatusSeeOther)
			})
			r.Route("/billing", func(r chi.Router) {
				r.Get("/", billing.List)
				r.Get("/new", billing.New)
				r.Post("/", billing.Create)
				r.Get("/{id}", billing.View)
				r.Post("/{id}/delete", billing.Delete)
				r.Post("/{id}/paid", billing.SetPaid)
				r.Post("/{id}/notes", billing.UpdateNotes)
				r.Post("/{id}/items", billing.AddItem)
				r.Post("/{id}/items/{itemID}/delete", billing.RemoveItem)
				r.Post("/{id}/payments", billing.RecordPayment)
				r.Get("/{id}/pdf", billing.PDF)
			})
			r.Get("/payments", billing.Payments)
		})

		r.Route("/call-requests", func(r chi.Router) {
			r.With(a.gate.RequirePermission(policy.ResourceCallRequest, gate.ActionList)).Get("/", admin.CallRequests)
			r.With(a.gate.RequirePermission(policy.ResourceCallRequest, gate.ActionDelete)).Post("/{id}/delete", admin.DeleteCallRequest)
		})
	})

	// JSON API
	r.Route("/api", func(r chi.Router) {
		r.Use(a.sessions.RequireAuth, a.gate.RequireRole(models.RoleAdmin))
		r.With(a.gate.RequirePermission(policy.ResourceClient, gate.ActionInvite)).
			Method(http.MethodPost, "/invite-client", limited(admin.InviteClientAPI))
	})

	// Client portal
	r.Route("/dashboard", func(r chi.Router) {
		r.Use(a.sessions.RequireAuth, a.gate.RequireRole(models.RoleClient))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/dashboard/projects", http.StatusSeeOther)
		})
		r.With(a.gate.RequirePermission(policy.ResourceProject, gate.ActionList)).Get("/projects", portal.Projects)
		r.With(a.gate.RequirePermission(policy.ResourceProject, gate.ActionView)).Get("/projects/{id}", portal.Project)
		r.With(a.gate.RequirePermission(policy.ResourceInvoice, gate.ActionList)).Get("/billing", portal.Billing)
		r.With(a.gate.RequirePermission(policy.ResourceInvoice, gate.ActionView)).Get("/billing/{id}", portal.Invoice)
		r.With(a.gate.RequirePermission(policy.ResourceInvoice, gate.ActionView)).Get("/billing/{id}/pdf", portal.InvoicePDF)
	})
}
