package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrNumberTaken     = errors.New("invoice number already exists")
	ErrNegativeTotal   = errors.New("invoice total is negative")
)

// NumberPrefix starts every invoice number, e.g. INV-1001.
const NumberPrefix = "INV-"

// FirstSequence is the counter value before the first invoice.
const FirstSequence int64 = 1000

var hundred = decimal.NewFromInt(100)

type Item struct {
	ProjectID   string          `json:"projectId,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
}

type Invoice struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"clientId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	IssueDate     time.Time       `json:"issueDate"`
	DueDate       time.Time       `json:"dueDate"`
	Items         []Item          `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	Notes         string          `json:"notes,omitempty"`
	Terms         string          `json:"terms,omitempty"`
	Status        Status          `json:"status"`
	// DisplayStatus is filled on read and never persisted.
	DisplayStatus Status     `json:"displayStatus,omitempty"`
	PaymentDate   *time.Time `json:"paymentDate,omitempty"`
	PaymentMethod string     `json:"paymentMethod,omitempty"`
	SentAt        *time.Time `json:"sentAt,omitempty"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty"`
	Timesheets    []string   `json:"timesheets"`
	CreatedBy     string     `json:"createdBy"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Recalculate derives subtotal, tax and total from the items. A negative
// total is refused and leaves the invoice unchanged.
func (inv *Invoice) Recalculate() error {
	subtotal := decimal.Zero
	for _, it := range inv.Items {
		subtotal = subtotal.Add(it.Amount)
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(inv.TaxRate).Div(hundred).Round(2)
	total := subtotal.Add(tax).Sub(inv.Discount)
	if total.IsNegative() {
		return ErrNegativeTotal
	}
	inv.Subtotal, inv.TaxAmount, inv.Total = subtotal, tax, total
	return nil
}

// DisplayStatusAt is Overdue for a Sent invoice past its due date, else the stored status.
func (inv *Invoice) DisplayStatusAt(now time.Time) Status {
	if inv.IsOverdue(now) {
		return StatusOverdue
	}
	return inv.Status
}

func (inv *Invoice) IsOverdue(now time.Time) bool {
	return inv.Status == StatusSent && inv.DueDate.Before(now)
}

// Linked is the set of timesheets that must point back at this invoice.
// A cancelled invoice keeps its history but holds no links.
func (inv *Invoice) Linked() []string {
	if inv.Status == StatusCancelled {
		return nil
	}
	return inv.Timesheets
}

func FormatNumber(n int64) string { return NumberPrefix + strconv.FormatInt(n, 10) }

// ParseNumber extracts the numeric suffix of an INV-<n> number.
func ParseNumber(s string) (int64, bool) {
	rest, ok := strings.CutPrefix(s, NumberPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// InvoicedError reports timesheets that already belong to an invoice.
type InvoicedError struct {
	Count int
}

func (e *InvoicedError) Error() string {
	return fmt.Sprintf("%d timesheet(s) have already been invoiced", e.Count)
}

// LinkError is a timesheet that cannot be billed at all.
type LinkError struct {
	TimesheetID string
	Reason      string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("Timesheet %s %s", e.TimesheetID, e.Reason)
}

type GenerateInput struct {
	ClientID     string
	TimesheetIDs []string
	IssueDate    *time.Time
	DueDate      *time.Time
	TaxRate      decimal.Decimal
	Discount     decimal.Decimal
	Notes        string
	Terms        string
}

type ItemInput struct {
	ProjectID   string
	Description string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	// Amount defaults to Quantity * Rate.
	Amount *decimal.Decimal
}

// InvoiceInput is the full body of a manual create or an edit.
type InvoiceInput struct {
	ClientID      string
	InvoiceNumber string
	IssueDate     *time.Time
	DueDate       *time.Time
	Items         []ItemInput
	TaxRate       decimal.Decimal
	Discount      decimal.Decimal
	Notes         string
	Terms         string
	// Timesheets nil leaves links untouched on edit.
	Timesheets []string
}

type PayInput struct {
	PaymentDate   *time.Time
	PaymentMethod string
}

type ListFilter struct {
	ClientID string
	Status   Status
	From     *time.Time
	To       *time.Time
}
