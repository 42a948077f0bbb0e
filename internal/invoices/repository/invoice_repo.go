package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/irma-project/irma-backend/internal/invoices/domain"
	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
)

const kind = "invoice"

type InvoiceRepository struct {
	store *redisdoc.Store
}

func NewInvoiceRepository(store *redisdoc.Store) *InvoiceRepository {
	return &InvoiceRepository{store: store}
}

func (r *InvoiceRepository) Key(id string) string { return r.store.Key(kind, id) }

func (r *InvoiceRepository) index() string { return r.store.IndexKey("invoices") }

func (r *InvoiceRepository) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := r.store.Get(ctx, r.Key(id), &inv); err != nil {
		if errors.Is(err, redisdoc.ErrNotFound) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// List returns every invoice in no particular order.
func (r *InvoiceRepository) List(ctx context.Context) ([]*domain.Invoice, error) {
	ids, err := r.store.Members(ctx, r.index())
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.Key(id)
	}
	return redisdoc.GetMany[domain.Invoice](ctx, r.store, keys)
}

// Save writes an invoice without touching timesheets or the number registry.
// Tests use it to seed history.
func (r *InvoiceRepository) Save(ctx context.Context, inv *domain.Invoice) error {
	index := r.index()
	return r.store.Put(ctx, r.Key(inv.ID), inv, func(pipe redis.Pipeliner) {
		pipe.SAdd(ctx, index, inv.ID)
	})
}
