package domain

import "github.com/shopspring/decimal"

// BudgetLine is one project's ledger position.
type BudgetLine struct {
	ProjectID       string          `json:"projectId"`
	ProjectName     string          `json:"projectName"`
	ClientID        string          `json:"clientId"`
	ClientName      string          `json:"clientName"`
	Status          string          `json:"status"`
	Budget          decimal.Decimal `json:"budget"`
	BudgetRemaining decimal.Decimal `json:"budgetRemaining"`
	Consumed        decimal.Decimal `json:"consumed"`
	PercentUsed     decimal.Decimal `json:"percentUsed"`
	Overrun         bool            `json:"overrun"`
}

type BudgetReport struct {
	Projects       []BudgetLine    `json:"projects"`
	TotalBudget    decimal.Decimal `json:"totalBudget"`
	TotalConsumed  decimal.Decimal `json:"totalConsumed"`
	TotalRemaining decimal.Decimal `json:"totalRemaining"`
	OverrunCount   int             `json:"overrunCount"`
}

// UnbilledLine sums the Approved, uninvoiced billable work owed by one client.
type UnbilledLine struct {
	ClientID        string          `json:"clientId"`
	ClientName      string          `json:"clientName"`
	Timesheets      []string        `json:"timesheets"`
	BillableHours   decimal.Decimal `json:"billableHours"`
	EstimatedAmount decimal.Decimal `json:"estimatedAmount"`
}

type UnbilledReport struct {
	Clients         []UnbilledLine  `json:"clients"`
	BillableHours   decimal.Decimal `json:"billableHours"`
	EstimatedAmount decimal.Decimal `json:"estimatedAmount"`
}

type Filter struct {
	ClientID string
}
