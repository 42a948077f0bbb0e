// Package events publishes domain events from the approval and billing
// pipeline. Publishing is best effort: a failed publish is logged and counted
// but never fails the request that produced the event.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/irma-project/irma-backend/internal/logging"
	"github.com/irma-project/irma-backend/internal/metrics"
)

type Type string

const (
	TimesheetSubmitted   Type = "timesheet.submitted"
	TimesheetApproved    Type = "timesheet.approved"
	TimesheetRejected    Type = "timesheet.rejected"
	ProjectBudgetOverrun Type = "project.budget_overrun"
	InvoiceGenerated     Type = "invoice.generated"
	InvoiceSent          Type = "invoice.sent"
	InvoicePaid          Type = "invoice.paid"
	InvoiceCancelled     Type = "invoice.cancelled"
	InvoiceOverdue       Type = "invoice.overdue"
)

type Event struct {
	Type       Type           `json:"type"`
	EntityID   string         `json:"entityId"`
	ActorID    string         `json:"actorId,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
}

func New(t Type, entityID, actorID string, data map[string]any) Event {
	return Event{
		Type:       t,
		EntityID:   entityID,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to several publishers and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emit publishes e and swallows the error after logging it.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		metrics.PublishFailed()
		logging.FromContext(ctx).Errorf("events.publish", "type=%s entity=%s error=%v", e.Type, e.EntityID, err)
	}
}
