package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/diewo77/agency-portal/httpx"
	"github.com/diewo77/agency-portal/internal/logger"
	"github.com/diewo77/agency-portal/internal/models"
	"github.com/diewo77/agency-portal/internal/pdf"
	"github.com/diewo77/agency-portal/internal/services"
	"github.com/diewo77/agency-portal/validation"
)

// BillingHandler is the admin side of invoices and payments.
type BillingHandler struct {
	invoices  *services.InvoiceService
	dashboard *services.DashboardService
	issuer    pdf.Issuer
}

func NewBillingHandler(invoices *services.InvoiceService, dashboard *services.DashboardService, issuer pdf.Issuer) *BillingHandler {
	return &BillingHandler{invoices: invoices, dashboard: dashboard, issuer: issuer}
}

func invoiceURL(id uint) string { return fmt.Sprintf("/admin/finance/billing/%d", id) }

func (h *BillingHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := services.ParseInvoiceFilter(r.URL.Query().Get("filter"))
	all, err := h.invoices.ListInvoices(r.Context(), services.FilterAll, 0)
	if err != nil {
		fail(w, r, err, "failed_to_list_invoices")
		return
	}
	invs := services.FilterInvoices(all, filter)
	if jsonClient(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": invs, "total": len(invs), "filter": filter})
		return
	}
	render(w, r, "admin/invoices.html", map[string]any{
		"Invoices": invs,
		"Filter":   string(filter),
		"Revenue":  services.Revenue(all),
		"Pending":  services.PendingIncome(all),
	})
}

func (h *BillingHandler) New(w http.ResponseWriter, r *http.Request) {
	in := services.CreateInvoiceInput{
		ClientID: formUint(r, "client_id"),
		Items:    []services.ItemInput{{Quantity: 1}},
	}
	h.showForm(w, r, http.StatusOK, in, nil)
}

func (h *BillingHandler) showForm(w http.ResponseWriter, r *http.Request, status int, in services.CreateInvoiceInput, v validation.Violations) {
	clients, err := h.dashboard.ListClients(r.Context(), "")
	if err != nil {
		fail(w, r, err, "failed_to_list_clients")
		return
	}
	if len(in.Items) == 0 {
		in.Items = []services.ItemInput{{Quantity: 1}}
	}
	renderStatus(w, r, status, "admin/invoice_form.html", map[string]any{
		"Form":    in,
		"Clients": clients,
		"Errors":  v,
		"Total":   itemsPreviewTotal(in.Items),
	})
}

func itemsPreviewTotal(items []services.ItemInput) float64 {
	var sum float64
	for _, in := range items {
		it := models.InvoiceItem{Quantity: in.Quantity, Price: in.Price}
		sum += it.ComputeTotal()
	}
	return models.RoundCents(sum)
}

// itemsFromForm reads the parallel item_* fields; rows left completely
// blank are skipped.
func itemsFromForm(r *http.Request) []services.ItemInput {
	if err := r.ParseForm(); err != nil {
		return nil
	}
	desc := r.PostForm["item_description"]
	qty := r.PostForm["item_quantity"]
	price := r.PostForm["item_price"]
	at := func(vals []string, i int) string {
		if i < len(vals) {
			return strings.TrimSpace(vals[i])
		}
		return ""
	}
	n := max(len(desc), len(qty), len(price))
	var items []services.ItemInput
	for i := range n {
		d, q, p := at(desc, i), at(qty, i), at(price, i)
		if d == "" && p == "" && (q == "" || q == "1") {
			continue
		}
		qf, _ := strconv.ParseFloat(q, 64)
		pf, _ := strconv.ParseFloat(p, 64)
		items = append(items, services.ItemInput{Description: d, Quantity: qf, Price: pf})
	}
	return items
}

func (h *BillingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.CreateInvoiceInput
	isJSON, ok := decode(w, r, &in)
	if !ok {
		return
	}
	if !isJSON {
		in = services.CreateInvoiceInput{
			ClientID: formUint(r, "client_id"),
			Notes:    r.FormValue("notes"),
			IsPaid:   formBool(r, "is_paid"),
			Items:    itemsFromForm(r),
		}
	}
	inv, err := h.invoices.CreateInvoice(r.Context(), in)
	if err != nil {
		if v, invalid := services.Violations(err); invalid && !jsonClient(r) {
			h.showForm(w, r, http.StatusBadRequest, in, v)
			return
		}
		fail(w, r, err, "failed_to_create_invoice")
		return
	}
	logger.FromContext(r.Context()).Info("invoice created",
		zap.Uint("invoice_id", inv.ID), zap.Uint("client_id", inv.ClientID), zap.Float64("total", inv.Total))
	done(w, r, http.StatusCreated, inv, invoiceURL(inv.ID))
}

func (h *BillingHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	h.show(w, r, http.StatusOK, id, nil)
}

func (h *BillingHandler) show(w http.ResponseWriter, r *http.Request, status int, id uint, extra map[string]any) {
	inv, err := h.invoices.GetInvoice(r.Context(), id)
	if err != nil {
		fail(w, r, err, "failed_to_load_invoice")
		return
	}
	if jsonClient(r) {
		httpx.JSON(w, http.StatusOK, invoiceView(inv))
		return
	}
	data := map[string]any{"Invoice": inv, "ErrorScope": "", "Errors": validation.Violations(nil)}
	for k, v := range extra {
		data[k] = v
	}
	renderStatus(w, r, status, "admin/invoice_detail.html", data)
}

// invoiceView adds the derived amounts to the JSON form of an invoice.
func invoiceView(inv *models.Invoice) map[string]any {
	return map[string]any{
		"invoice":     inv,
		"number":      inv.Number(),
		"status":      inv.StatusLabel(),
		"amount_paid": inv.AmountPaid(),
		"amount_due":  inv.AmountDue(),
	}
}

func (h *BillingHandler) formError(w http.ResponseWriter, r *http.Request, id uint, scope string, err error, code string) {
	if v, invalid := services.Violations(err); invalid && !jsonClient(r) {
		h.show(w, r, http.StatusBadRequest, id, map[string]any{"Errors": v, "ErrorScope": scope})
		return
	}
	fail(w, r, err, code)
}

func (h *BillingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	if err := h.invoices.DeleteInvoice(r.Context(), id); err != nil {
		fail(w, r, err, "failed_to_delete_invoice")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, "/admin/finance/billing")
}

// SetPaid toggles the paid flag by hand, e.g. for payments made outside the portal.
func (h *BillingHandler) SetPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	var in struct {
		IsPaid bool `json:"is_paid"`
	}
	isJSON, ok := decode(w, r, &in)
	if !ok {
		return
	}
	if !isJSON {
		in.IsPaid = formBool(r, "is_paid")
	}
	if err := h.invoices.SetPaid(r.Context(), id, in.IsPaid); err != nil {
		fail(w, r, err, "failed_to_update_invoice")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"id": id, "is_paid": in.IsPaid}, invoiceURL(id))
}

func (h *BillingHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	var in struct {
		Notes string `json:"notes"`
	}
	isJSON, ok := decode(w, r, &in)
	if !ok {
		return
	}
	if !isJSON {
		in.Notes = r.FormValue("notes")
	}
	if err := h.invoices.UpdateNotes(r.Context(), id, in.Notes); err != nil {
		fail(w, r, err, "failed_to_update_invoice")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"id": id}, invoiceURL(id))
}

func (h *BillingHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	var in services.ItemInput
	isJSON, ok := decode(w, r, &in)
	if !ok {
		return
	}
	if !isJSON {
		in = services.ItemInput{
			Description: r.FormValue("description"),
			Quantity:    formFloat(r, "quantity"),
			Price:       formFloat(r, "price"),
		}
	}
	it, err := h.invoices.AddItem(r.Context(), id, in)
	if err != nil {
		h.formError(w, r, id, "item", err, "failed_to_add_item")
		return
	}
	done(w, r, http.StatusCreated, it, invoiceURL(id))
}

func (h *BillingHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok1 := idParam(r, "id")
	itemID, ok2 := idParam(r, "itemID")
	if !ok1 || !ok2 {
		badID(w, r)
		return
	}
	if err := h.invoices.RemoveItem(r.Context(), id, itemID); err != nil {
		fail(w, r, err, "failed_to_remove_item")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": itemID}, invoiceURL(id))
}

func (h *BillingHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	var in services.PaymentInput
	isJSON, ok := decode(w, r, &in)
	if !ok {
		return
	}
	if !isJSON {
		v := validation.Violations{}
		in = services.PaymentInput{
			Amount:      formFloat(r, "amount"),
			PaymentDate: formDate(r, "payment_date", v),
			Remarks:     r.FormValue("remarks"),
		}
		if !v.Empty() {
			h.formError(w, r, id, "payment", &services.ValidationError{Violations: v}, "failed_to_record_payment")
			return
		}
	}
	p, err := h.invoices.RecordPayment(r.Context(), id, in)
	if err != nil {
		h.formError(w, r, id, "payment", err, "failed_to_record_payment")
		return
	}
	logger.FromContext(r.Context()).Info("payment recorded",
		zap.Uint("invoice_id", id), zap.Float64("amount", p.Amount))
	done(w, r, http.StatusCreated, p, invoiceURL(id))
}

func (h *BillingHandler) Payments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.invoices.ListPayments(r.Context(), 0)
	if err != nil {
		fail(w, r, err, "failed_to_list_payments")
		return
	}
	var total float64
	for _, p := range payments {
		total += p.Amount
	}
	total = models.RoundCents(total)
	if jsonClient(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": payments, "total": len(payments), "amount": total})
		return
	}
	render(w, r, "admin/payments.html", map[string]any{"Payments": payments, "Total": total})
}

func (h *BillingHandler) PDF(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	inv, err := h.invoices.GetInvoice(r.Context(), id)
	if err != nil {
		fail(w, r, err, "failed_to_load_invoice")
		return
	}
	writeInvoicePDF(w, r, h.issuer, inv)
}

func writeInvoicePDF(w http.ResponseWriter, r *http.Request, issuer pdf.Issuer, inv *models.Invoice) {
	b, err := pdf.Invoice(pdf.FromInvoice(issuer, inv))
	if err != nil {
		fail(w, r, err, "failed_to_generate_pdf")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pdf.Filename(inv)))
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	_, _ = w.Write(b)
}
