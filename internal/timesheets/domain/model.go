package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrTimesheetNotFound = errors.New("timesheet not found")
	ErrEntryNotFound     = errors.New("entry not found")
	ErrDuplicatePeriod   = errors.New("timesheet already exists for period")
)

// MaxEntryHours bounds a single entry.
var MaxEntryHours = decimal.NewFromInt(24)

type Entry struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"projectId"`
	Date        time.Time       `json:"date"`
	Hours       decimal.Decimal `json:"hours"`
	Description string          `json:"description"`
	Billable    bool            `json:"billable"`
}

type Timesheet struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         time.Time       `json:"endDate"`
	Entries         []Entry         `json:"entries"`
	Status          Status          `json:"status"`
	TotalHours      decimal.Decimal `json:"totalHours"`
	Notes           string          `json:"notes"`
	SubmittedAt     *time.Time      `json:"submittedAt,omitempty"`
	SubmittedBy     string          `json:"submittedBy,omitempty"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	ApprovedBy      string          `json:"approvedBy,omitempty"`
	RejectedAt      *time.Time      `json:"rejectedAt,omitempty"`
	RejectedBy      string          `json:"rejectedBy,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	InvoiceID       string          `json:"invoiceId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// RecalculateTotals recomputes TotalHours from the entries. Every write that
// touches entries calls it.
func (t *Timesheet) RecalculateTotals() {
	total := decimal.Zero
	for _, e := range t.Entries {
		total = total.Add(e.Hours)
	}
	t.TotalHours = total
}

func (t *Timesheet) BillableHours() decimal.Decimal {
	total := decimal.Zero
	for _, e := range t.Entries {
		if e.Billable {
			total = total.Add(e.Hours)
		}
	}
	return total
}

func (t *Timesheet) FindEntry(id string) int {
	for i, e := range t.Entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// EntryCost is the priced value of one billable entry.
type EntryCost struct {
	ProjectID string
	Hours     decimal.Decimal
	Amount    decimal.Decimal
}

// BillableCosts prices every billable entry at rate, in entry order.
func (t *Timesheet) BillableCosts(rate decimal.Decimal) []EntryCost {
	var out []EntryCost
	for _, e := range t.Entries {
		if !e.Billable {
			continue
		}
		out = append(out, EntryCost{
			ProjectID: e.ProjectID,
			Hours:     e.Hours,
			Amount:    e.Hours.Mul(rate).Round(2),
		})
	}
	return out
}

func (t *Timesheet) Invoiced() bool { return t.InvoiceID != "" }

// PeriodKey identifies the owner's reporting period; it is unique per owner.
func (t *Timesheet) PeriodKey() string {
	return t.UserID + ":" + t.StartDate.Format("2006-01-02") + ":" + t.EndDate.Format("2006-01-02")
}

// ValidHours reports whether h lies within 0..24.
func ValidHours(h decimal.Decimal) bool {
	return !h.IsNegative() && h.LessThanOrEqual(MaxEntryHours)
}

type EntryInput struct {
	ProjectID   string
	Date        time.Time
	Hours       decimal.Decimal
	Description string
	Billable    *bool
}

type EntryPatch struct {
	ProjectID   *string
	Date        *time.Time
	Hours       *decimal.Decimal
	Description *string
	Billable    *bool
}

type CreateInput struct {
	StartDate time.Time
	EndDate   time.Time
	Entries   []EntryInput
	Notes     string
}

type UpdateInput struct {
	StartDate *time.Time
	EndDate   *time.Time
	Entries   []EntryInput // nil leaves entries unchanged
	Notes     *string
}

type ListFilter struct {
	UserID   string
	Statuses []Status
	From     *time.Time
	To       *time.Time
	// UpdatedFrom/UpdatedTo filter on the last change, as the approval history does.
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
	Uninvoiced  bool
}
