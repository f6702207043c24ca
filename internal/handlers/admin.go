package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/diewo77/agency-portal/httpx"
	"github.com/diewo77/agency-portal/internal/logger"
	"github.com/diewo77/agency-portal/internal/services"
)

const inviteSentMessage = "Client invited successfully. They will receive an email to set their password."

// AdminHandler serves the admin overview, client records and call requests.
type AdminHandler struct {
	dashboard *services.DashboardService
	invoices  *services.InvoiceService
	invites   *services.InviteService
	calls     *services.CallRequestService
	now       func() time.Time
}

func NewAdminHandler(dashboard *services.DashboardService, invoices *services.InvoiceService,
	invites *services.InviteService, calls *services.CallRequestService) *AdminHandler {
	return &AdminHandler{dashboard: dashboard, invoices: invoices, invites: invites, calls: calls, now: time.Now}
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.AdminStats(r.Context(), h.now())
	if err != nil {
		fail(w, r, err, "failed_to_load_stats")
		return
	}
	if jsonClient(r) {
		httpx.JSON(w, http.StatusOK, stats)
		return
	}
	recent, err := h.invoices.ListInvoices(r.Context(), services.FilterAll, 0)
	if err != nil {
		fail(w, r, err, "failed_to_list_invoices")
		return
	}
	if len(recent) > 5 {
		recent = recent[:5]
	}
	render(w, r, "admin/dashboard.html", map[string]any{
		"Stats":          stats,
		"RecentInvoices": recent,
		"Month":          h.now().Format("January 2006"),
	})
}

func (h *AdminHandler) Clients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	clients, err := h.dashboard.ClientSummaries(r.Context(), q)
	if err != nil {
		fail(w, r, err, "failed_to_list_clients")
		return
	}
	if jsonClient(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": clients, "total": len(clients)})
		return
	}
	render(w, r, "admin/clients.html", map[string]any{"Clients": clients, "Query": q})
}

func (h *AdminHandler) Client(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	d, err := h.dashboard.ClientDetail(r.Context(), id)
	if err != nil {
		fail(w, r, err, "failed_to_load_client")
		return
	}
	if jsonClient(r) {
		httpx.JSON(w, http.StatusOK, d)
		return
	}
	render(w, r, "admin/client_detail.html", map[string]any{"Detail": d})
}

type inviteRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// InviteClient handles the invite form on the clients page.
func (h *AdminHandler) InviteClient(w http.ResponseWriter, r *http.Request) {
	in := inviteRequest{Name: r.FormValue("name"), Email: r.FormValue("email")}
	_, err := h.invites.InviteClient(r.Context(), in.Name, in.Email)
	if err == nil {
		http.Redirect(w, r, "/admin/clients?message="+url.QueryEscape(inviteSentMessage), http.StatusSeeOther)
		return
	}

	clients, listErr := h.dashboard.ClientSummaries(r.Context(), "")
	if listErr != nil {
		fail(w, r, listErr, "failed_to_list_clients")
		return
	}
	data := map[string]any{"Clients": clients, "Invite": in, "ShowInvite": true}
	status := http.StatusBadRequest
	if v, ok := services.Violations(err); ok {
		data["Errors"] = v
	} else {
		data["Error"] = inviteErrorMessage(err)
		if !errors.Is(err, services.ErrEmailTaken) {
			logger.FromContext(r.Context()).Error("invite client", zap.Error(err))
			status = http.StatusInternalServerError
		}
	}
	renderStatus(w, r, status, "admin/clients.html", data)
}

// InviteClientAPI is the JSON invite endpoint: name and email in, the new
// account id out.
func (h *AdminHandler) InviteClientAPI(w http.ResponseWriter, r *http.Request) {
	var in inviteRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	p, err := h.invites.InviteClient(r.Context(), in.Name, in.Email)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": inviteSentMessage,
			"userId":  p.AccountID,
		})
	case errors.Is(err, services.ErrInvalidInput):
		v, _ := services.Violations(err)
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
	case errors.Is(err, services.ErrEmailTaken):
		httpx.JSONError(w, http.StatusBadRequest, "email_taken", inviteErrorMessage(err))
	default:
		logger.FromContext(r.Context()).Error("invite client", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "invite_failed", inviteErrorMessage(err))
	}
}

func inviteErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrEmailTaken):
		return "A user with this email already exists"
	case errors.Is(err, services.ErrProfileCreate):
		return "Failed to create client profile"
	}
	return "Failed to invite user"
}

func (h *AdminHandler) CallRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.calls.List(r.Context())
	if err != nil {
		fail(w, r, err, "failed_to_list_call_requests")
		return
	}
	if jsonClient(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": reqs, "total": len(reqs)})
		return
	}
	render(w, r, "admin/call_requests.html", map[string]any{"Requests": reqs})
}

func (h *AdminHandler) DeleteCallRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	if err := h.calls.Delete(r.Context(), id); err != nil {
		fail(w, r, err, "failed_to_delete_call_request")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, "/admin/call-requests")
}
