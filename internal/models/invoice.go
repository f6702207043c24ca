package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Invoice bills one client. Total is stored and kept equal to the sum of the
// item totals by the billing service; payments reduce AmountDue.
type Invoice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClientID uint     `gorm:"index;not null" json:"client_id"`
	Client   *Profile `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	IsPaid bool    `gorm:"not null;default:false;index" json:"is_paid"`
	Notes  string  `gorm:"type:text" json:"notes,omitempty"`
	Total  float64 `gorm:"type:decimal(12,2);not null;default:0" json:"total"`

	Items    []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
	Payments []Payment     `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
}

func (i *Invoice) GetClientID() uint { return i.ClientID }

// ItemsTotal sums the loaded items' stored totals.
func (i *Invoice) ItemsTotal() float64 {
	var sum float64
	for _, it := range i.Items {
		sum += it.Total
	}
	return sum
}

// AmountPaid sums the loaded payments.
func (i *Invoice) AmountPaid() float64 {
	var sum float64
	for _, p := range i.Payments {
		sum += p.Amount
	}
	return RoundCents(sum)
}

// AmountDue never goes below zero, even if a client overpaid.
func (i *Invoice) AmountDue() float64 {
	if i.IsPaid {
		return 0
	}
	return RoundCents(max(0, i.Total-i.AmountPaid()))
}

func (i *Invoice) StatusLabel() string {
	if i.IsPaid {
		return "Paid"
	}
	return "Outstanding"
}

// Number is the display reference, e.g. INV-0042.
func (i *Invoice) Number() string {
	return InvoiceNumber(i.ID)
}

func InvoiceNumber(id uint) string {
	return fmt.Sprintf("INV-%04d", id)
}

type InvoiceItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	InvoiceID   uint    `gorm:"index;not null" json:"invoice_id"`
	Description string  `gorm:"size:500;not null" json:"description"`
	Quantity    float64 `gorm:"type:decimal(10,3);not null;default:1" json:"quantity"`
	Price       float64 `gorm:"type:decimal(12,2);not null" json:"price"`
	Total       float64 `gorm:"type:decimal(12,2);not null" json:"total"`
}

// ComputeTotal is quantity times price, rounded to the cent the column keeps.
func (it *InvoiceItem) ComputeTotal() float64 {
	return RoundCents(it.Quantity * it.Price)
}

type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	InvoiceID   uint      `gorm:"index;not null" json:"invoice_id"`
	Invoice     *Invoice  `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	Amount      float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentDate time.Time `gorm:"not null" json:"payment_date"`
	Remarks     string    `gorm:"type:text" json:"remarks,omitempty"`
}

func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatAmount renders a dollar amount with thousands separators, e.g. $1,234.50.
func FormatAmount(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	cents := int64(math.Round(v * 100))
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, b.String(), cents%100)
}
