package domain

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSent      Status = "Sent"
	StatusPaid      Status = "Paid"
	StatusCancelled Status = "Cancelled"
	// StatusOverdue is never stored. DisplayStatus derives it from a Sent
	// invoice whose due date has passed.
	StatusOverdue Status = "Overdue"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusCancelled, StatusOverdue:
		return true
	}
	return false
}

type Action string

const (
	ActionSend   Action = "send"
	ActionPay    Action = "pay"
	ActionCancel Action = "cancel"
	ActionEdit   Action = "edit"
)

var transitions = map[Action]struct {
	from []Status
	to   Status
}{
	ActionSend:   {from: []Status{StatusDraft}, to: StatusSent},
	ActionPay:    {from: []Status{StatusDraft, StatusSent}, to: StatusPaid},
	ActionCancel: {from: []Status{StatusDraft, StatusSent}, to: StatusCancelled},
	ActionEdit:   {from: []Status{StatusDraft}, to: StatusDraft},
}

// TransitionError is an action the invoice's current state does not allow.
type TransitionError struct {
	Action Action
	From   Status
}

func (e *TransitionError) Error() string {
	state := strings.ToLower(string(e.From))
	switch {
	case e.Action == ActionEdit:
		return fmt.Sprintf("Cannot update a %s invoice", state)
	case e.Action == ActionCancel && e.From == StatusPaid:
		return "Cannot cancel a paid invoice"
	case e.From == StatusPaid,
		e.Action == ActionSend && e.From == StatusSent,
		e.Action == ActionCancel && e.From == StatusCancelled:
		return fmt.Sprintf("Invoice is already %s", state)
	}
	return fmt.Sprintf("Invoice is %s, cannot be %s", state, pastTense[e.Action])
}

var pastTense = map[Action]string{
	ActionSend:   "sent",
	ActionPay:    "paid",
	ActionCancel: "cancelled",
	ActionEdit:   "updated",
}

// Transition returns the state reached by applying action in state from.
func Transition(action Action, from Status) (Status, error) {
	t, ok := transitions[action]
	if ok {
		for _, s := range t.from {
			if s == from {
				return t.to, nil
			}
		}
	}
	return from, &TransitionError{Action: action, From: from}
}
