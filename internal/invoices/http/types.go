package http

import (
	"github.com/shopspring/decimal"

	"github.com/irma-project/irma-backend/internal/api/httpx"
	"github.com/irma-project/irma-backend/internal/invoices/domain"
	"github.com/irma-project/irma-backend/internal/invoices/service"
)

type Handler struct {
	svc *service.InvoiceService
}

func New(svc *service.InvoiceService) *Handler {
	return &Handler{svc: svc}
}

type generateReq struct {
	ClientID     string          `json:"clientId" binding:"required"`
	TimesheetIDs []string        `json:"timesheetIds" binding:"required"`
	IssueDate    string          `json:"issueDate"`
	DueDate      string          `json:"dueDate"`
	TaxRate      decimal.Decimal `json:"taxRate"`
	Discount     decimal.Decimal `json:"discount"`
	Notes        string          `json:"notes"`
	Terms        string          `json:"terms"`
}

func (r generateReq) input() (domain.GenerateInput, error) {
	in := domain.GenerateInput{
		ClientID:     r.ClientID,
		TimesheetIDs: r.TimesheetIDs,
		TaxRate:      r.TaxRate,
		Discount:     r.Discount,
		Notes:        r.Notes,
		Terms:        r.Terms,
	}
	var err error
	if in.IssueDate, err = httpx.OptionalDate("issueDate", r.IssueDate); err != nil {
		return in, err
	}
	in.DueDate, err = httpx.OptionalDate("dueDate", r.DueDate)
	return in, err
}

type itemReq struct {
	ProjectID   string           `json:"projectId"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	Rate        decimal.Decimal  `json:"rate"`
	Amount      *decimal.Decimal `json:"amount"`
}

type invoiceReq struct {
	ClientID      string          `json:"clientId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	IssueDate     string          `json:"issueDate"`
	DueDate       string          `json:"dueDate"`
	Items         []itemReq       `json:"items"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	Discount      decimal.Decimal `json:"discount"`
	Notes         string          `json:"notes"`
	Terms         string          `json:"terms"`
	Timesheets    []string        `json:"timesheets"`
}

// input leaves missing dates nil so the service reports them with the rest.
func (r invoiceReq) input() (domain.InvoiceInput, error) {
	in := domain.InvoiceInput{
		ClientID:      r.ClientID,
		InvoiceNumber: r.InvoiceNumber,
		TaxRate:       r.TaxRate,
		Discount:      r.Discount,
		Notes:         r.Notes,
		Terms:         r.Terms,
		Timesheets:    r.Timesheets,
	}
	for _, it := range r.Items {
		in.Items = append(in.Items, domain.ItemInput(it))
	}
	var err error
	if in.IssueDate, err = httpx.OptionalDate("issueDate", r.IssueDate); err != nil {
		return in, err
	}
	in.DueDate, err = httpx.OptionalDate("dueDate", r.DueDate)
	return in, err
}

type payReq struct {
	PaymentDate   string `json:"paymentDate"`
	PaymentMethod string `json:"paymentMethod"`
}

func (r payReq) input() (domain.PayInput, error) {
	date, err := httpx.OptionalDate("paymentDate", r.PaymentDate)
	return domain.PayInput{PaymentDate: date, PaymentMethod: r.PaymentMethod}, err
}
