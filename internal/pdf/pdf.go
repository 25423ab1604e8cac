// Package pdf renders invoices as PDF documents.
package pdf

import (
	"fmt"

	"github.com/diewo77/invoicer/internal/models"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// InvoiceItem is one printed line.
type InvoiceItem struct {
	Description string
	Amount      decimal.Decimal
}

// InvoiceData is everything printed on the document.
type InvoiceData struct {
	InvoiceNumber string
	Date          string
	DueDate       string
	Client        string
	Items         []InvoiceItem
	Total         decimal.Decimal
}

// FromInvoice maps a loaded invoice (items included) to printable data.
func FromInvoice(inv *models.Invoice) InvoiceData {
	d := InvoiceData{
		InvoiceNumber: inv.Number(),
		Date:          inv.CreatedAt.Format(dateLayout),
		Client:        inv.Client,
		Total:         inv.Amount,
	}
	if inv.DueDate != nil {
		d.DueDate = inv.DueDate.Format(dateLayout)
	}
	for _, it := range inv.Items {
		d.Items = append(d.Items, InvoiceItem{Description: it.Description, Amount: it.Amount})
	}
	return d
}

func dollars(d decimal.Decimal) string { return "$" + d.StringFixed(2) }

// HeaderLines returns the number and date lines printed under the title.
func (d InvoiceData) HeaderLines() []string {
	lines := []string{"Invoice number: " + d.InvoiceNumber, "Date: " + d.Date}
	if d.DueDate != "" {
		lines = append(lines, "Due date: "+d.DueDate)
	}
	return lines
}

// ItemLines returns one "description - $amount" line per item.
func (d InvoiceData) ItemLines() []string {
	lines := make([]string, 0, len(d.Items))
	for _, it := range d.Items {
		lines = append(lines, fmt.Sprintf("%s - %s", it.Description, dollars(it.Amount)))
	}
	return lines
}

// InvoicePDF renders the document and returns its bytes.
func InvoicePDF(d InvoiceData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()
	m := maroto.New(cfg)

	m.AddRow(14, text.NewCol(12, "Invoice", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}))
	for _, l := range d.HeaderLines() {
		m.AddRow(6, text.NewCol(12, l, props.Text{Size: 10}))
	}
	m.AddRow(4)
	m.AddRow(8, text.NewCol(12, "Client: "+d.Client, props.Text{Size: 12, Style: fontstyle.Bold}))
	m.AddRows(line.NewRow(4))
	for _, l := range d.ItemLines() {
		m.AddRow(7, text.NewCol(12, l, props.Text{Size: 10}))
	}
	m.AddRows(line.NewRow(4))
	m.AddRow(10, text.NewCol(12, "Total: "+dollars(d.Total), props.Text{Size: 13, Style: fontstyle.Bold, Align: align.Right}))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}
