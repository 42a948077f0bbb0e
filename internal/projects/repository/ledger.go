package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/irma-project/irma-backend/internal/metrics"
	"github.com/irma-project/irma-backend/internal/projects/domain"
	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
)

// Debit is one ledger movement against a project's remaining budget.
type Debit struct {
	ProjectID string
	Amount    decimal.Decimal
}

// Overrun describes a project whose remaining budget went below zero.
type Overrun struct {
	ProjectID string          `json:"projectId"`
	Name      string          `json:"name"`
	Remaining decimal.Decimal `json:"budgetRemaining"`
}

// Staged is the outcome of StageDebits, valid once the transaction commits.
type Staged struct {
	Applied  int
	Skipped  []string
	Overruns []Overrun
}

// Record updates the ledger counters for a committed batch.
func (s Staged) Record() {
	metrics.LedgerDebit(s.Applied)
	for range s.Overruns {
		metrics.LedgerOverrun()
	}
}

// Ledger is the only writer of Project.BudgetRemaining besides the budget edit.
// Every movement is additive and unfloored.
type Ledger struct {
	store    *redisdoc.Store
	projects *ProjectRepository
}

func NewLedger(store *redisdoc.Store, projects *ProjectRepository) *Ledger {
	return &Ledger{store: store, projects: projects}
}

// Debit subtracts amount from one project in its own optimistic transaction.
func (l *Ledger) Debit(ctx context.Context, projectID string, amount decimal.Decimal) (*domain.Project, Staged, error) {
	key := l.projects.Key(projectID)

	var (
		staged Staged
		out    domain.Project
	)
	err := l.store.Watch(ctx, []string{key}, func(tx *redisdoc.Tx) error {
		var p domain.Project
		if err := tx.Get(key, &p); err != nil {
			return err
		}
		staged = Staged{Applied: 1}
		if p.Debit(amount) {
			staged.Overruns = []Overrun{{ProjectID: p.ID, Name: p.Name, Remaining: p.BudgetRemaining}}
		}
		out = p
		return tx.Set(key, &p)
	})
	if errors.Is(err, redisdoc.ErrNotFound) {
		return nil, Staged{}, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, Staged{}, err
	}

	staged.Record()
	return &out, staged, nil
}

// StageDebits applies debits inside an open transaction. Each project is read
// once, debited entry by entry in order, and written once when tx commits.
// Debits against missing projects are skipped. The caller records the result
// after the commit succeeds.
func (l *Ledger) StageDebits(tx *redisdoc.Tx, debits []Debit) (Staged, error) {
	var order []string
	grouped := make(map[string][]decimal.Decimal)
	for _, d := range debits {
		if _, seen := grouped[d.ProjectID]; !seen {
			order = append(order, d.ProjectID)
		}
		grouped[d.ProjectID] = append(grouped[d.ProjectID], d.Amount)
	}

	keys := make([]string, len(order))
	for i, id := range order {
		keys[i] = l.projects.Key(id)
	}
	if err := tx.Watch(keys...); err != nil {
		return Staged{}, err
	}

	var staged Staged
	for i, id := range order {
		var p domain.Project
		err := tx.Get(keys[i], &p)
		if errors.Is(err, redisdoc.ErrNotFound) {
			staged.Skipped = append(staged.Skipped, id)
			continue
		}
		if err != nil {
			return Staged{}, err
		}

		overrun := false
		for _, amount := range grouped[id] {
			if p.Debit(amount) {
				overrun = true
			}
			staged.Applied++
		}
		if overrun {
			staged.Overruns = append(staged.Overruns, Overrun{ProjectID: p.ID, Name: p.Name, Remaining: p.BudgetRemaining})
		}
		if err := tx.Set(keys[i], &p); err != nil {
			return Staged{}, err
		}
	}
	return staged, nil
}
