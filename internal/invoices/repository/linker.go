package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/irma-project/irma-backend/internal/invoices/domain"
	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
	tsdomain "github.com/irma-project/irma-backend/internal/timesheets/domain"
	tsrepo "github.com/irma-project/irma-backend/internal/timesheets/repository"
)

// LinkCheck vets a timesheet about to gain a link to invoice id.
type LinkCheck func(t *tsdomain.Timesheet, invoiceID string) error

// Linker owns both sides of the invoice/timesheet back-link. Every write it
// makes puts the invoice and all affected timesheets in one MULTI, watching
// each key it read, so Invoice.Timesheets and Timesheet.InvoiceID never drift.
type Linker struct {
	store      *redisdoc.Store
	invoices   *InvoiceRepository
	timesheets *tsrepo.TimesheetRepository
}

func NewLinker(store *redisdoc.Store, invoices *InvoiceRepository, timesheets *tsrepo.TimesheetRepository) *Linker {
	return &Linker{store: store, invoices: invoices, timesheets: timesheets}
}

// Create stores a new invoice and links every timesheet it lists. The invoice
// is written first in the MULTI, then the timesheets.
func (l *Linker) Create(ctx context.Context, inv *domain.Invoice, check LinkCheck) error {
	key := l.invoices.Key(inv.ID)
	index := l.invoices.index()

	return l.store.Watch(ctx, []string{key}, func(tx *redisdoc.Tx) error {
		if err := setInvoice(tx, key, inv); err != nil {
			return err
		}
		tx.Stage(func(pipe redis.Pipeliner) {
			pipe.SAdd(ctx, index, inv.ID)
		})
		return l.relink(tx, inv.ID, nil, inv.Linked(), check)
	})
}

// Update loads invoice id, applies mutate and writes it back, moving
// timesheet links from the old linked set to the new one.
func (l *Linker) Update(ctx context.Context, id string, check LinkCheck, mutate func(inv *domain.Invoice) error) (*domain.Invoice, error) {
	key := l.invoices.Key(id)

	var out *domain.Invoice
	err := l.store.Watch(ctx, []string{key}, func(tx *redisdoc.Tx) error {
		var inv domain.Invoice
		if err := tx.Get(key, &inv); err != nil {
			return err
		}
		before := append([]string(nil), inv.Linked()...)

		if err := mutate(&inv); err != nil {
			return err
		}
		if err := setInvoice(tx, key, &inv); err != nil {
			return err
		}
		out = &inv
		return l.relink(tx, inv.ID, before, inv.Linked(), check)
	})
	if errors.Is(err, redisdoc.ErrNotFound) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// relink watches every timesheet in before ∪ after, clears links that are
// dropped and sets the new ones. Timesheets already invoiced elsewhere are
// counted and refused together.
func (l *Linker) relink(tx *redisdoc.Tx, invoiceID string, before, after []string, check LinkCheck) error {
	keep := make(map[string]bool, len(after))
	for _, id := range after {
		keep[id] = true
	}

	var keys []string
	for _, id := range append(append([]string(nil), before...), after...) {
		keys = append(keys, l.timesheets.Key(id))
	}
	if err := tx.Watch(keys...); err != nil {
		return err
	}

	for _, id := range before {
		if keep[id] {
			continue
		}
		t, err := l.load(tx, id)
		if errors.Is(err, tsdomain.ErrTimesheetNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if t.InvoiceID != invoiceID {
			continue
		}
		t.InvoiceID = ""
		if err := tx.Set(l.timesheets.Key(id), t); err != nil {
			return err
		}
	}

	invoiced := 0
	var linked []*tsdomain.Timesheet
	seen := make(map[string]bool, len(after))
	for _, id := range after {
		if seen[id] {
			continue
		}
		seen[id] = true

		t, err := l.load(tx, id)
		if errors.Is(err, tsdomain.ErrTimesheetNotFound) {
			return &domain.LinkError{TimesheetID: id, Reason: "was not found"}
		}
		if err != nil {
			return err
		}
		if t.InvoiceID == invoiceID {
			continue
		}
		if t.Invoiced() {
			invoiced++
			continue
		}
		if check != nil {
			if err := check(t, invoiceID); err != nil {
				return err
			}
		}
		linked = append(linked, t)
	}
	if invoiced > 0 {
		return &domain.InvoicedError{Count: invoiced}
	}

	for _, t := range linked {
		t.InvoiceID = invoiceID
		if err := tx.Set(l.timesheets.Key(t.ID), t); err != nil {
			return err
		}
	}
	return nil
}

func (l *Linker) load(tx *redisdoc.Tx, id string) (*tsdomain.Timesheet, error) {
	var t tsdomain.Timesheet
	if err := tx.Get(l.timesheets.Key(id), &t); err != nil {
		if errors.Is(err, redisdoc.ErrNotFound) {
			return nil, tsdomain.ErrTimesheetNotFound
		}
		return nil, err
	}
	return &t, nil
}

func setInvoice(tx *redisdoc.Tx, key string, inv *domain.Invoice) error {
	stored := *inv
	stored.DisplayStatus = ""
	return tx.Set(key, &stored)
}
