// Package scheduler runs the background billing jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/irma-project/irma-backend/internal/events"
	"github.com/irma-project/irma-backend/internal/invoices/domain"
	"github.com/irma-project/irma-backend/internal/logging"
)

const sweepTimeout = 2 * time.Minute

type OverdueSource interface {
	ListOverdue(ctx context.Context, now time.Time) ([]*domain.Invoice, error)
}

type Scheduler struct {
	cron      *cron.Cron
	invoices  OverdueSource
	publisher events.Publisher
	now       func() time.Time
}

func New(invoices OverdueSource, publisher events.Publisher) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		invoices:  invoices,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the overdue sweep on spec (six fields, seconds first) and
// starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.runSweep); err != nil {
		return fmt.Errorf("failed to schedule overdue sweep %q: %w", spec, err)
	}
	s.cron.Start()
	logging.FromContext(context.Background()).Infof("scheduler.start", "overdue sweep scheduled spec=%q", spec)
	return nil
}

// Stop halts the loop and returns a context done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	if _, err := s.SweepOverdue(ctx); err != nil {
		logging.FromContext(ctx).Error("scheduler.overdue", err)
	}
}

// SweepOverdue publishes invoice.overdue for every Sent invoice past its due
// date and returns how many were found. Nothing is written; Overdue stays a
// read-time status.
func (s *Scheduler) SweepOverdue(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.invoices.ListOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue invoices: %w", err)
	}
	for _, inv := range overdue {
		days := int(now.Sub(inv.DueDate).Hours() / 24)
		events.Emit(ctx, s.publisher, events.New(events.InvoiceOverdue, inv.ID, "", map[string]any{
			"invoiceNumber": inv.InvoiceNumber,
			"clientId":      inv.ClientID,
			"dueDate":       inv.DueDate.Format("2006-01-02"),
			"daysOverdue":   days,
			"total":         inv.Total.StringFixed(2),
		}))
	}
	logging.FromContext(ctx).Infof("scheduler.overdue", "swept overdue=%d", len(overdue))
	return len(overdue), nil
}
