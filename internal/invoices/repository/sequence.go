package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/irma-project/irma-backend/internal/invoices/domain"
	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
)

// maxSkips bounds how many numbers Next passes over when manual invoices
// already hold them.
const maxSkips = 1000

// Sequence hands out invoice numbers from an atomic Redis counter. Every
// number in use, automatic or manual, is registered in a hash so no two
// invoices share one.
type Sequence struct {
	store    *redisdoc.Store
	invoices *InvoiceRepository
}

func NewSequence(store *redisdoc.Store, invoices *InvoiceRepository) *Sequence {
	return &Sequence{store: store, invoices: invoices}
}

func (s *Sequence) counterKey() string { return s.store.IndexKey("invoice-seq") }

func (s *Sequence) registryKey() string { return s.store.IndexKey("invoice-numbers") }

// Next reserves the next free number for invoiceID.
func (s *Sequence) Next(ctx context.Context, invoiceID string) (string, error) {
	if err := s.seed(ctx); err != nil {
		return "", err
	}

	client := s.store.Client()
	for i := 0; i < maxSkips; i++ {
		n, err := client.Incr(ctx, s.counterKey()).Result()
		if err != nil {
			return "", fmt.Errorf("failed to advance invoice sequence: %w", err)
		}
		number := domain.FormatNumber(n)
		ok, err := s.Reserve(ctx, number, invoiceID)
		if err != nil {
			return "", err
		}
		if ok {
			return number, nil
		}
	}
	return "", fmt.Errorf("no free invoice number after %d attempts", maxSkips)
}

// seed initialises the counter once from the newest existing invoice, so
// numbering continues where the data left off.
func (s *Sequence) seed(ctx context.Context) error {
	client := s.store.Client()
	exists, err := client.Exists(ctx, s.counterKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to read invoice sequence: %w", err)
	}
	if exists == 1 {
		return nil
	}

	latest, err := s.LatestNumber(ctx)
	if err != nil {
		return err
	}
	if err := client.SetNX(ctx, s.counterKey(), latest, 0).Err(); err != nil {
		return fmt.Errorf("failed to seed invoice sequence: %w", err)
	}
	return nil
}

// LatestNumber is the numeric suffix of the most recently created invoice
// that has one, or FirstSequence when there is none.
func (s *Sequence) LatestNumber(ctx context.Context) (int64, error) {
	all, err := s.invoices.List(ctx)
	if err != nil {
		return 0, err
	}

	var (
		latest *domain.Invoice
		n      int64
	)
	for _, inv := range all {
		v, ok := domain.ParseNumber(inv.InvoiceNumber)
		if !ok {
			continue
		}
		if latest == nil || inv.CreatedAt.After(latest.CreatedAt) {
			latest, n = inv, v
		}
	}
	if latest == nil {
		return domain.FirstSequence, nil
	}
	return n, nil
}

// Reserve claims number for invoiceID. It reports false when another invoice holds it.
func (s *Sequence) Reserve(ctx context.Context, number, invoiceID string) (bool, error) {
	client := s.store.Client()
	ok, err := client.HSetNX(ctx, s.registryKey(), number, invoiceID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve %s: %w", number, err)
	}
	if ok {
		return true, nil
	}
	holder, err := client.HGet(ctx, s.registryKey(), number).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", number, err)
	}
	return holder == invoiceID, nil
}

// Release frees number if invoiceID still holds it.
func (s *Sequence) Release(ctx context.Context, number, invoiceID string) error {
	client := s.store.Client()
	holder, err := client.HGet(ctx, s.registryKey(), number).Result()
	if errors.Is(err, redis.Nil) || holder != invoiceID {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", number, err)
	}
	return client.HDel(ctx, s.registryKey(), number).Err()
}
