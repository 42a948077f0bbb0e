package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrProjectNotFound = errors.New("project not found")

type Status string

const (
	StatusPlanning  Status = "Planning"
	StatusActive    Status = "Active"
	StatusOnHold    Status = "On Hold"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusOnHold, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type MemberRole string

const (
	MemberLead       MemberRole = "Lead"
	MemberMember     MemberRole = "Member"
	MemberConsultant MemberRole = "Consultant"
	MemberObserver   MemberRole = "Observer"
)

func (r MemberRole) Valid() bool {
	switch r {
	case MemberLead, MemberMember, MemberConsultant, MemberObserver:
		return true
	}
	return false
}

type Assignment struct {
	UserID string     `json:"userId"`
	Role   MemberRole `json:"role"`
}

// Project carries the budget ledger: BudgetRemaining starts at Budget and is
// debited by approved billable hours. It may go negative; that is an overrun.
type Project struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	ClientID        string          `json:"clientId"`
	Description     string          `json:"description"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         *time.Time      `json:"endDate,omitempty"`
	Budget          decimal.Decimal `json:"budget"`
	BudgetRemaining decimal.Decimal `json:"budgetRemaining"`
	Status          Status          `json:"status"`
	AssignedUsers   []Assignment    `json:"assignedUsers"`
	IsTemplate      bool            `json:"isTemplate"`
	CreatedBy       string          `json:"createdBy"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (p *Project) IsAssigned(userID string) bool {
	for _, a := range p.AssignedUsers {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// Debit subtracts amount from the remaining budget. It reports whether this
// debit took the balance from non-negative to negative.
func (p *Project) Debit(amount decimal.Decimal) (overrun bool) {
	before := p.BudgetRemaining
	p.BudgetRemaining = before.Sub(amount).Round(2)
	return !before.IsNegative() && p.BudgetRemaining.IsNegative()
}

// SetBudget replaces the budget and shifts the remaining balance by the same
// delta, so amounts already consumed stay consumed.
func (p *Project) SetBudget(budget decimal.Decimal) {
	delta := budget.Sub(p.Budget)
	p.Budget = budget.Round(2)
	p.BudgetRemaining = p.BudgetRemaining.Add(delta).Round(2)
}

func (p *Project) Consumed() decimal.Decimal {
	return p.Budget.Sub(p.BudgetRemaining)
}

type ProjectInput struct {
	Name          *string
	ClientID      *string
	Description   *string
	StartDate     *time.Time
	EndDate       *time.Time
	Budget        *decimal.Decimal
	Status        *Status
	AssignedUsers []Assignment
	IsTemplate    *bool
}

type ListFilter struct {
	ClientID         string
	Status           Status
	IncludeTemplates bool
}
