package domain

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	// StatusPending is treated exactly like Submitted for approval.
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// AwaitingApproval reports whether s sits in the approval queue.
func (s Status) AwaitingApproval() bool {
	return s == StatusSubmitted || s == StatusPending
}

type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	// ActionEdit covers every entry or header mutation; it never changes state.
	ActionEdit Action = "edit"
)

var pastTense = map[Action]string{
	ActionSubmit:  "submitted",
	ActionApprove: "approved",
	ActionReject:  "rejected",
	ActionEdit:    "edited",
}

type rule struct {
	from []Status
	to   Status
}

var transitions = map[Action]rule{
	ActionSubmit:  {from: []Status{StatusDraft, StatusRejected}, to: StatusSubmitted},
	ActionApprove: {from: []Status{StatusSubmitted, StatusPending}, to: StatusApproved},
	ActionReject:  {from: []Status{StatusSubmitted, StatusPending}, to: StatusRejected},
}

var editable = []Status{StatusDraft, StatusRejected}

// TransitionError is returned for any (action, state) pair outside the table.
type TransitionError struct {
	Action Action
	From   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Timesheet is %s, cannot be %s", strings.ToLower(string(e.From)), pastTense[e.Action])
}

// Transition returns the state reached by applying action in state from.
func Transition(action Action, from Status) (Status, error) {
	if action == ActionEdit {
		if contains(editable, from) {
			return from, nil
		}
		return from, &TransitionError{Action: action, From: from}
	}

	r, ok := transitions[action]
	if !ok || !contains(r.from, from) {
		return from, &TransitionError{Action: action, From: from}
	}
	return r.to, nil
}

func contains(states []Status, s Status) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}
