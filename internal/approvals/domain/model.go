package domain

import "time"

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

func (a Action) Valid() bool { return a == ActionApprove || a == ActionReject }

// BatchRequest approves or rejects several timesheets. Reason is required for reject.
type BatchRequest struct {
	TimesheetIDs []string
	Action       Action
	Reason       string
}

type ItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type BatchResult struct {
	TotalProcessed int          `json:"totalProcessed"`
	SuccessCount   int          `json:"successCount"`
	FailureCount   int          `json:"failureCount"`
	Results        []ItemResult `json:"results"`
}

// HistoryFilter narrows the decided timesheets. Status must be Approved or
// Rejected to take effect.
type HistoryFilter struct {
	Status string
	UserID string
	From   *time.Time
	To     *time.Time
}
