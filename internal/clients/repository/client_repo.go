package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/irma-project/irma-backend/internal/clients/domain"
	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
)

const kind = "client"

type ClientRepository struct {
	store *redisdoc.Store
}

func NewClientRepository(store *redisdoc.Store) *ClientRepository {
	return &ClientRepository{store: store}
}

func (r *ClientRepository) key(id string) string { return r.store.Key(kind, id) }

func (r *ClientRepository) index() string { return r.store.IndexKey("clients") }

func (r *ClientRepository) Get(ctx context.Context, id string) (*domain.Client, error) {
	var c domain.Client
	if err := r.store.Get(ctx, r.key(id), &c); err != nil {
		if errors.Is(err, redisdoc.ErrNotFound) {
			return nil, domain.ErrClientNotFound
		}
		return nil, err
	}
	return &c, nil
}

// List returns every client ordered by name.
func (r *ClientRepository) List(ctx context.Context) ([]*domain.Client, error) {
	ids, err := r.store.Members(ctx, r.index())
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	clients, err := redisdoc.GetMany[domain.Client](ctx, r.store, keys)
	if err != nil {
		return nil, err
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Name < clients[j].Name })
	return clients, nil
}

func (r *ClientRepository) Create(ctx context.Context, c *domain.Client) error {
	index := r.index()
	return r.store.Put(ctx, r.key(c.ID), c, func(pipe redis.Pipeliner) {
		pipe.SAdd(ctx, index, c.ID)
	})
}

// Update applies mutate to the stored client under an optimistic lock.
func (r *ClientRepository) Update(ctx context.Context, id string, mutate func(c *domain.Client) error) (*domain.Client, error) {
	c, err := redisdoc.Update(ctx, r.store, r.key(id), mutate)
	if errors.Is(err, redisdoc.ErrNotFound) {
		return nil, domain.ErrClientNotFound
	}
	return c, err
}
