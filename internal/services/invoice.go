package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/agency-portal/internal/metrics"
	"github.com/diewo77/agency-portal/internal/models"
	"github.com/diewo77/agency-portal/validation"
)

type InvoiceFilter string

const (
	FilterAll         InvoiceFilter = "all"
	FilterPaid        InvoiceFilter = "paid"
	FilterOutstanding InvoiceFilter = "outstanding"
)

// ParseInvoiceFilter falls back to FilterAll for anything unrecognised.
func ParseInvoiceFilter(s string) InvoiceFilter {
	switch f := InvoiceFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterPaid, FilterOutstanding:
		return f
	default:
		return FilterAll
	}
}

// ComputeTotal sums item totals.
func ComputeTotal(items []models.InvoiceItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Total
	}
	return sum
}

// FilterInvoices keeps order and returns a new slice.
func FilterInvoices(invoices []models.Invoice, f InvoiceFilter) []models.Invoice {
	if f != FilterPaid && f != FilterOutstanding {
		return append([]models.Invoice(nil), invoices...)
	}
	out := make([]models.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.IsPaid == (f == FilterPaid) {
			out = append(out, inv)
		}
	}
	return out
}

// PartitionByPaid splits invoices into paid and outstanding. Every invoice
// lands in exactly one side.
func PartitionByPaid(invoices []models.Invoice) (paid, outstanding []models.Invoice) {
	for _, inv := range invoices {
		if inv.IsPaid {
			paid = append(paid, inv)
		} else {
			outstanding = append(outstanding, inv)
		}
	}
	return paid, outstanding
}

// Revenue is the sum of paid invoice totals.
func Revenue(invoices []models.Invoice) float64 {
	var sum float64
	for _, inv := range invoices {
		if inv.IsPaid {
			sum += inv.Total
		}
	}
	return models.RoundCents(sum)
}

// PendingIncome is what unpaid invoices still owe, net of part payments
// when they are loaded.
func PendingIncome(invoices []models.Invoice) float64 {
	var sum float64
	for i := range invoices {
		if !invoices[i].IsPaid {
			sum += invoices[i].AmountDue()
		}
	}
	return models.RoundCents(sum)
}

type ItemInput struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
}

type CreateInvoiceInput struct {
	ClientID uint        `json:"client_id"`
	Notes    string      `json:"notes"`
	IsPaid   bool        `json:"is_paid"`
	Items    []ItemInput `json:"items"`
}

type PaymentInput struct {
	Amount      float64   `json:"amount"`
	PaymentDate time.Time `json:"payment_date"`
	Remarks     string    `json:"remarks"`
}

type InvoiceService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewInvoiceService(db *gorm.DB) *InvoiceService {
	return &InvoiceService{db: db, now: time.Now}
}

func validateItem(prefix string, in ItemInput, v validation.Violations) {
	validation.Required(prefix+"description", in.Description, v)
	validation.PositiveFloat(prefix+"quantity", in.Quantity, v)
	validation.PositiveFloat(prefix+"price", in.Price, v)
}

func newItem(invoiceID uint, in ItemInput) models.InvoiceItem {
	it := models.InvoiceItem{
		InvoiceID:   invoiceID,
		Description: strings.TrimSpace(in.Description),
		Quantity:    in.Quantity,
		Price:       in.Price,
	}
	it.Total = it.ComputeTotal()
	return it
}

func (s *InvoiceService) requireClient(ctx context.Context, id uint, v validation.Violations) error {
	if id == 0 {
		v.Add("client_id", "required")
		return nil
	}
	return checkClient(s.db.WithContext(ctx), id, v)
}

// checkClient flags client_id when id is not a client profile. Store
// errors are returned, not reported as violations.
func checkClient(db *gorm.DB, id uint, v validation.Violations) error {
	var count int64
	if err := db.Model(&models.Profile{}).
		Where("id = ? AND role = ?", id, models.RoleClient).Count(&count).Error; err != nil {
		return fmt.Errorf("look up client %d: %w", id, err)
	}
	if count == 0 {
		v.Add("client_id", "unknown_client")
	}
	return nil
}

// CreateInvoice stores the invoice and its items in one transaction. Item
// totals and the invoice total are computed here.
func (s *InvoiceService) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*models.Invoice, error) {
	v := validation.Violations{}
	if err := s.requireClient(ctx, in.ClientID, v); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		v.Add("items", "required")
	}
	for i, it := range in.Items {
		validateItem(fmt.Sprintf("items[%d].", i), it, v)
	}
	if err := invalid(v); err != nil {
		return nil, err
	}

	inv := models.Invoice{
		ClientID: in.ClientID,
		IsPaid:   in.IsPaid,
		Notes:    strings.TrimSpace(in.Notes),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items", "Payments", "Client").Create(&inv).Error; err != nil {
			return err
		}
		items := make([]models.InvoiceItem, len(in.Items))
		for i, it := range in.Items {
			items[i] = newItem(inv.ID, it)
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("create items: %w", err)
		}
		inv.Items = items
		inv.Total = models.RoundCents(ComputeTotal(items))
		return tx.Model(&inv).Update("total", inv.Total).Error
	})
	if err != nil {
		return nil, err
	}
	metrics.InvoicesCreated.Inc()
	return &inv, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("payment_date") }).
		First(&inv, id).Error
	if err != nil {
		return nil, notFound("invoice", id, err)
	}
	return &inv, nil
}

// ListInvoices returns invoices newest first. clientID 0 means every client.
func (s *InvoiceService) ListInvoices(ctx context.Context, f InvoiceFilter, clientID uint) ([]models.Invoice, error) {
	q := s.db.WithContext(ctx).Preload("Client").Preload("Payments").Order("created_at DESC, id DESC")
	if clientID != 0 {
		q = q.Where("client_id = ?", clientID)
	}
	switch f {
	case FilterPaid:
		q = q.Where("is_paid = ?", true)
	case FilterOutstanding:
		q = q.Where("is_paid = ?", false)
	}
	var out []models.Invoice
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *InvoiceService) SetPaid(ctx context.Context, id uint, paid bool) error {
	res := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).Update("is_paid", paid)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *InvoiceService) UpdateNotes(ctx context.Context, id uint, notes string) error {
	res := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).Update("notes", strings.TrimSpace(notes))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteInvoice removes payments, then items, then the invoice.
func (s *InvoiceService) DeleteInvoice(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Invoice{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("invoice %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (s *InvoiceService) AddItem(ctx context.Context, invoiceID uint, in ItemInput) (*models.InvoiceItem, error) {
	v := validation.Violations{}
	validateItem("", in, v)
	if err := invalid(v); err != nil {
		return nil, err
	}
	it := newItem(invoiceID, in)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireInvoice(tx, invoiceID); err != nil {
			return err
		}
		if err := tx.Create(&it).Error; err != nil {
			return err
		}
		return recomputeTotal(tx, invoiceID)
	})
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *InvoiceService) RemoveItem(ctx context.Context, invoiceID, itemID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND invoice_id = ?", itemID, invoiceID).Delete(&models.InvoiceItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("invoice item %d: %w", itemID, ErrNotFound)
		}
		return recomputeTotal(tx, invoiceID)
	})
}

// RecordPayment stores a payment and marks the invoice paid once payments
// cover its total.
func (s *InvoiceService) RecordPayment(ctx context.Context, invoiceID uint, in PaymentInput) (*models.Payment, error) {
	v := validation.Violations{}
	validation.PositiveFloat("amount", in.Amount, v)
	if err := invalid(v); err != nil {
		return nil, err
	}
	if in.PaymentDate.IsZero() {
		in.PaymentDate = s.now()
	}
	p := models.Payment{
		InvoiceID:   invoiceID,
		Amount:      models.RoundCents(in.Amount),
		PaymentDate: in.PaymentDate,
		Remarks:     strings.TrimSpace(in.Remarks),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.Select("id", "total", "is_paid").First(&inv, invoiceID).Error; err != nil {
			return notFound("invoice", invoiceID, err)
		}
		if err := tx.Omit("Invoice").Create(&p).Error; err != nil {
			return err
		}
		var paid float64
		if err := tx.Model(&models.Payment{}).Where("invoice_id = ?", invoiceID).
			Select("COALESCE(SUM(amount), 0)").Scan(&paid).Error; err != nil {
			return err
		}
		if !inv.IsPaid && inv.Total > 0 && models.RoundCents(paid) >= inv.Total {
			return tx.Model(&inv).Update("is_paid", true).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.PaymentsRecorded.Inc()
	return &p, nil
}

// ListPayments returns payments newest first with their invoice and client.
func (s *InvoiceService) ListPayments(ctx context.Context, clientID uint) ([]models.Payment, error) {
	q := s.db.WithContext(ctx).Preload("Invoice").Preload("Invoice.Client").Order("payments.payment_date DESC, payments.id DESC")
	if clientID != 0 {
		q = q.Joins("JOIN invoices ON invoices.id = payments.invoice_id").Where("invoices.client_id = ?", clientID)
	}
	var out []models.Payment
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ClientRevenue is the sum of a client's paid invoice totals.
func (s *InvoiceService) ClientRevenue(ctx context.Context, clientID uint) (float64, error) {
	invs, err := s.ListInvoices(ctx, FilterPaid, clientID)
	if err != nil {
		return 0, err
	}
	return Revenue(invs), nil
}

func requireInvoice(tx *gorm.DB, id uint) error {
	var inv models.Invoice
	if err := tx.Select("id").First(&inv, id).Error; err != nil {
		return notFound("invoice", id, err)
	}
	return nil
}

func recomputeTotal(tx *gorm.DB, invoiceID uint) error {
	var sum float64
	if err := tx.Model(&models.InvoiceItem{}).Where("invoice_id = ?", invoiceID).
		Select("COALESCE(SUM(total), 0)").Scan(&sum).Error; err != nil {
		return err
	}
	return tx.Model(&models.Invoice{}).Where("id = ?", invoiceID).Update("total", models.RoundCents(sum)).Error
}
