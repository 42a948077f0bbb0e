package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/irma-project/irma-backend/internal/projects/domain"
	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
)

const kind = "project"

// ProjectRepository provides persistence operations for projects
type ProjectRepository struct {
	store *redisdoc.Store
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(store *redisdoc.Store) *ProjectRepository {
	return &ProjectRepository{store: store}
}

// Key is the document key of a project. Transactions that debit a project
// watch this key.
func (r *ProjectRepository) Key(id string) string { return r.store.Key(kind, id) }

func (r *ProjectRepository) index() string { return r.store.IndexKey("projects") }

func (r *ProjectRepository) Get(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	if err := r.store.Get(ctx, r.Key(id), &p); err != nil {
		if errors.Is(err, redisdoc.ErrNotFound) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetMany loads the given projects keyed by id. Unknown ids are absent.
func (r *ProjectRepository) GetMany(ctx context.Context, ids []string) (map[string]*domain.Project, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.Key(id)
	}

	projects, err := redisdoc.GetMany[domain.Project](ctx, r.store, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*domain.Project, len(projects))
	for _, p := range projects {
		out[p.ID] = p
	}
	return out, nil
}

// List returns every project, newest first.
func (r *ProjectRepository) List(ctx context.Context) ([]*domain.Project, error) {
	ids, err := r.store.Members(ctx, r.index())
	if err != nil {
		return nil, err
	}
	byID, err := r.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Project, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Create inserts a new project.
func (r *ProjectRepository) Create(ctx context.Context, p *domain.Project) error {
	index := r.index()
	return r.store.Put(ctx, r.Key(p.ID), p, func(pipe redis.Pipeliner) {
		pipe.SAdd(ctx, index, p.ID)
	})
}

// Save overwrites a project without a lock. Only the lost-update test uses it;
// production writes go through Update or the Ledger.
func (r *ProjectRepository) Save(ctx context.Context, p *domain.Project) error {
	return r.store.Put(ctx, r.Key(p.ID), p)
}

// Update applies mutate under an optimistic lock on the project key.
func (r *ProjectRepository) Update(ctx context.Context, id string, mutate func(p *domain.Project) error) (*domain.Project, error) {
	p, err := redisdoc.Update(ctx, r.store, r.Key(id), mutate)
	if errors.Is(err, redisdoc.ErrNotFound) {
		return nil, domain.ErrProjectNotFound
	}
	return p, err
}
