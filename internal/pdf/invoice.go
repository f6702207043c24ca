// Package pdf renders invoices as downloadable PDF documents.
package pdf

import (
	"fmt"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/diewo77/agency-portal/internal/models"
)

// Issuer is printed in the top left corner of every invoice.
type Issuer struct {
	Name  string
	Email string
	URL   string
}

type InvoiceData struct {
	Issuer      Issuer
	Number      string
	IssueDate   string
	Status      string
	ClientName  string
	ClientEmail string
	Notes       string
	Items       []ItemRow

	Subtotal   string
	Total      string
	AmountPaid string
	AmountDue  string
}

type ItemRow struct {
	Description string
	Quantity    string
	Price       string
	Total       string
}

// FromInvoice builds the printable view of inv. Client, Items and Payments
// must be loaded.
func FromInvoice(issuer Issuer, inv *models.Invoice) InvoiceData {
	d := InvoiceData{
		Issuer:     issuer,
		Number:     inv.Number(),
		IssueDate:  inv.CreatedAt.Format("January 2, 2006"),
		Status:     inv.StatusLabel(),
		Notes:      inv.Notes,
		Subtotal:   models.FormatAmount(inv.ItemsTotal()),
		Total:      models.FormatAmount(inv.Total),
		AmountPaid: models.FormatAmount(inv.AmountPaid()),
		AmountDue:  models.FormatAmount(inv.AmountDue()),
	}
	if inv.Client != nil {
		d.ClientName = inv.Client.Name
		d.ClientEmail = inv.Client.Email
	}
	for _, it := range inv.Items {
		d.Items = append(d.Items, ItemRow{
			Description: it.Description,
			Quantity:    strconv.FormatFloat(it.Quantity, 'f', -1, 64),
			Price:       models.FormatAmount(it.Price),
			Total:       models.FormatAmount(it.Total),
		})
	}
	return d
}

// Filename is the download name, e.g. Invoice-12.pdf.
func Filename(inv *models.Invoice) string {
	return fmt.Sprintf("Invoice-%d.pdf", inv.ID)
}

var (
	small     = props.Text{Size: 9}
	smallR    = props.Text{Size: 9, Align: align.Right}
	smallBold = props.Text{Size: 9, Style: fontstyle.Bold}
	headR     = props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}
)

// Invoice renders d as an A4 PDF.
func Invoice(d InvoiceData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	m.AddRow(14,
		text.NewCol(8, d.Issuer.Name, props.Text{Size: 16, Style: fontstyle.Bold}),
		text.NewCol(4, "INVOICE", props.Text{Size: 18, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(16,
		col.New(8).Add(
			text.New(d.Issuer.Email, small),
			text.New(d.Issuer.URL, props.Text{Size: 9, Top: 4}),
		),
		col.New(4).Add(
			text.New(d.Number, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
			text.New(d.IssueDate, props.Text{Size: 9, Top: 5, Align: align.Right}),
			text.New(d.Status, props.Text{Size: 9, Top: 9, Align: align.Right}),
		),
	)

	m.AddRow(20,
		col.New(12).Add(
			text.New("Bill to", smallBold),
			text.New(d.ClientName, props.Text{Size: 10, Top: 5}),
			text.New(d.ClientEmail, props.Text{Size: 9, Top: 10}),
		),
	)

	m.AddRow(8,
		text.NewCol(6, "Description", smallBold),
		text.NewCol(2, "Qty", headR),
		text.NewCol(2, "Price", headR),
		text.NewCol(2, "Total", headR),
	)
	m.AddRow(2, line.NewCol(12))
	for _, it := range d.Items {
		m.AddRow(8,
			text.NewCol(6, it.Description, small),
			text.NewCol(2, it.Quantity, smallR),
			text.NewCol(2, it.Price, smallR),
			text.NewCol(2, it.Total, smallR),
		)
	}
	m.AddRow(2, line.NewCol(12))

	totals := []struct {
		label, value string
		bold         bool
	}{
		{"Subtotal", d.Subtotal, false},
		{"Total", d.Total, true},
		{"Amount paid", d.AmountPaid, false},
		{"Amount due", d.AmountDue, true},
	}
	for _, t := range totals {
		label, value := small, smallR
		if t.bold {
			label, value = smallBold, headR
		}
		m.AddRow(7,
			col.New(8),
			text.NewCol(2, t.label, label),
			text.NewCol(2, t.value, value),
		)
	}

	if d.Notes != "" {
		m.AddRow(8, text.NewCol(12, "Notes", props.Text{Size: 9, Style: fontstyle.Bold, Top: 4}))
		m.AddRow(16, text.NewCol(12, d.Notes, small))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice pdf: %w", err)
	}
	return doc.GetBytes(), nil
}
