package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/agency-portal/auth"
	"github.com/diewo77/agency-portal/gate"
	"github.com/diewo77/agency-portal/httpx"
	"github.com/diewo77/agency-portal/internal/models"
	"github.com/diewo77/agency-portal/internal/pdf"
	"github.com/diewo77/agency-portal/internal/policy"
	"github.com/diewo77/agency-portal/internal/services"
)

// PortalHandler serves the client portal. Every record is checked against
// the signed-in client before it is shown.
type PortalHandler struct {
	projects *services.ProjectService
	invoices *services.InvoiceService
	gate     *policy.AuthGate
	issuer   pdf.Issuer
}

func NewPortalHandler(projects *services.ProjectService, invoices *services.InvoiceService, g *policy.AuthGate, issuer pdf.Issuer) *PortalHandler {
	return &PortalHandler{projects: projects, invoices: invoices, gate: g, issuer: issuer}
}

// authorize answers the request and returns false when the current client
// may not see record. Foreign records look missing so ids do not leak.
func (h *PortalHandler) authorize(w http.ResponseWriter, r *http.Request, resource string, record any) bool {
	err := h.gate.Authorize(r.Context(), gate.ActionView, resource, record)
	switch {
	case err == nil:
		return true
	case errors.Is(err, gate.ErrForbidden):
		fail(w, r, services.ErrNotFound, "not_found")
	case errors.Is(err, gate.ErrNoGrant):
		auth.Unauthorized(w, r)
	default:
		fail(w, r, err, "failed_to_authorize")
	}
	return false
}

func (h *PortalHandler) Projects(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	projects, err := h.projects.ListProjects(r.Context(), uid)
	if err != nil {
		fail(w, r, err, "failed_to_list_projects")
		return
	}
	if jsonClient(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": projects, "total": len(projects)})
		return
	}
	var active int
	for _, p := range projects {
		if p.IsActive() {
			active++
		}
	}
	render(w, r, "portal/projects.html", map[string]any{"Projects": projects, "Active": active})
}

func (h *PortalHandler) Project(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	p, err := h.projects.GetProject(r.Context(), id)
	if err != nil {
		fail(w, r, err, "failed_to_load_project")
		return
	}
	if !h.authorize(w, r, policy.ResourceProject, p) {
		return
	}
	if jsonClient(r) {
		httpx.JSON(w, http.StatusOK, p)
		return
	}
	render(w, r, "portal/project_detail.html", map[string]any{
		"Project": p,
		"Stages":  portalStages,
	})
}

// portalStages is the progress strip shown to clients.
var portalStages = []string{"Planning", "Building", "Review", "Complete"}

func (h *PortalHandler) Billing(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	filter := services.ParseInvoiceFilter(r.URL.Query().Get("filter"))
	all, err := h.invoices.ListInvoices(r.Context(), services.FilterAll, uid)
	if err != nil {
		fail(w, r, err, "failed_to_list_invoices")
		return
	}
	invs := services.FilterInvoices(all, filter)
	if jsonClient(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": invs, "total": len(invs), "filter": filter})
		return
	}
	paid, outstanding := services.PartitionByPaid(all)
	render(w, r, "portal/billing.html", map[string]any{
		"Invoices":         invs,
		"Filter":           string(filter),
		"TotalPaid":        services.Revenue(paid),
		"TotalOutstanding": services.PendingIncome(outstanding),
		"PaidCount":        len(paid),
		"OutstandingCount": len(outstanding),
	})
}

func (h *PortalHandler) loadInvoice(w http.ResponseWriter, r *http.Request) (*models.Invoice, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return nil, false
	}
	inv, err := h.invoices.GetInvoice(r.Context(), id)
	if err != nil {
		fail(w, r, err, "failed_to_load_invoice")
		return nil, false
	}
	if !h.authorize(w, r, policy.ResourceInvoice, inv) {
		return nil, false
	}
	return inv, true
}

func (h *PortalHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	if jsonClient(r) {
		httpx.JSON(w, http.StatusOK, invoiceView(inv))
		return
	}
	render(w, r, "portal/invoice_detail.html", map[string]any{"Invoice": inv})
}

func (h *PortalHandler) InvoicePDF(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	writeInvoicePDF(w, r, h.issuer, inv)
}
