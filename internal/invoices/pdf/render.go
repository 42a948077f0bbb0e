// Package pdf renders invoices as printable A4 documents.
package pdf

import (
	"fmt"

	"github.com/johnfercher/maroto/pkg/color"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"

	clientdomain "github.com/irma-project/irma-backend/internal/clients/domain"
	"github.com/irma-project/irma-backend/internal/invoices/domain"
)

const dateLayout = "2006-01-02"

var stripe = color.Color{Red: 240, Green: 240, Blue: 240}

// Render lays out inv billed to client and returns the PDF bytes.
func Render(inv *domain.Invoice, client *clientdomain.Client) ([]byte, error) {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetPageMargins(20, 10, 20)

	m.RegisterHeader(func() {
		m.Row(12, func() {
			m.Col(8, func() {
				m.Text("INVOICE", props.Text{Top: 3, Style: consts.Bold, Size: 18})
			})
			m.Col(4, func() {
				m.Text(inv.InvoiceNumber, props.Text{Top: 5, Style: consts.Bold, Align: consts.Right, Size: 12})
			})
		})
	})

	m.Row(8, func() {
		m.Col(6, func() {
			m.Text("Bill to", props.Text{Top: 3, Style: consts.Bold, Size: 10})
		})
		m.Col(6, func() {
			m.Text(fmt.Sprintf("Status: %s", status(inv)), props.Text{Top: 3, Align: consts.Right, Size: 10})
		})
	})
	for _, line := range clientLines(client) {
		m.Row(5, func() {
			m.Col(6, func() {
				m.Text(line, props.Text{Size: 10})
			})
		})
	}

	m.Row(12, func() {
		m.Col(6, func() {
			m.Text("Issue date: "+inv.IssueDate.Format(dateLayout), props.Text{Top: 5, Size: 10})
		})
		m.Col(6, func() {
			m.Text("Due date: "+inv.DueDate.Format(dateLayout), props.Text{Top: 5, Align: consts.Right, Size: 10})
		})
	})

	headers := []string{"Description", "Quantity", "Rate", "Amount"}
	rows := make([][]string, 0, len(inv.Items))
	for _, it := range inv.Items {
		rows = append(rows, []string{
			it.Description,
			it.Quantity.StringFixed(2),
			it.Rate.StringFixed(2),
			it.Amount.StringFixed(2),
		})
	}
	grid := []uint{6, 2, 2, 2}
	m.TableList(headers, rows, props.TableList{
		HeaderProp:           props.TableListContent{Size: 10, GridSizes: grid},
		ContentProp:          props.TableListContent{Size: 10, GridSizes: grid},
		Align:                consts.Left,
		AlternatedBackground: &stripe,
		HeaderContentSpace:   1,
		Line:                 false,
	})

	total(m, "Subtotal", inv.Subtotal.StringFixed(2), consts.Normal)
	total(m, fmt.Sprintf("Tax (%s%%)", inv.TaxRate.String()), inv.TaxAmount.StringFixed(2), consts.Normal)
	if !inv.Discount.IsZero() {
		total(m, "Discount", "-"+inv.Discount.StringFixed(2), consts.Normal)
	}
	total(m, "Total", inv.Total.StringFixed(2), consts.Bold)

	if inv.Status == domain.StatusPaid && inv.PaymentDate != nil {
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text(fmt.Sprintf("Paid on %s by %s", inv.PaymentDate.Format(dateLayout), inv.PaymentMethod),
					props.Text{Top: 4, Style: consts.Italic, Size: 10})
			})
		})
	}
	note(m, "Notes", inv.Notes)
	note(m, "Terms", inv.Terms)

	buf, err := m.Output()
	if err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

// Filename is the attachment name offered for download.
func Filename(inv *domain.Invoice) string {
	return fmt.Sprintf("invoice-%s.pdf", inv.InvoiceNumber)
}

func status(inv *domain.Invoice) domain.Status {
	if inv.DisplayStatus != "" {
		return inv.DisplayStatus
	}
	return inv.Status
}

func clientLines(c *clientdomain.Client) []string {
	lines := []string{c.Name}
	for _, s := range []string{c.ContactPerson, c.Address, c.Email, c.Phone} {
		if s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

func total(m pdf.Maroto, label, value string, style consts.Style) {
	m.Row(7, func() {
		m.Col(9, func() {
			m.Text(label, props.Text{Top: 2, Style: style, Align: consts.Right, Size: 10})
		})
		m.Col(3, func() {
			m.Text(value, props.Text{Top: 2, Style: style, Align: consts.Right, Size: 10})
		})
	})
}

func note(m pdf.Maroto, label, body string) {
	if body == "" {
		return
	}
	m.Row(8, func() {
		m.Col(12, func() {
			m.Text(label, props.Text{Top: 4, Style: consts.Bold, Size: 10})
		})
	})
	m.Row(10, func() {
		m.Col(12, func() {
			m.Text(body, props.Text{Size: 9})
		})
	})
}
