package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
	"github.com/irma-project/irma-backend/internal/timesheets/domain"
)

const kind = "timesheet"

// TimesheetRepository keeps timesheets as documents with three side
// structures: the global index, a per-owner index and a period key that
// enforces one timesheet per owner and period.
type TimesheetRepository struct {
	store *redisdoc.Store
}

func NewTimesheetRepository(store *redisdoc.Store) *TimesheetRepository {
	return &TimesheetRepository{store: store}
}

func (r *TimesheetRepository) Key(id string) string { return r.store.Key(kind, id) }

func (r *TimesheetRepository) index() string { return r.store.IndexKey("timesheets") }

func (r *TimesheetRepository) userIndex(userID string) string {
	return r.store.IndexKey("timesheets", "user", userID)
}

func (r *TimesheetRepository) periodKey(t *domain.Timesheet) string {
	return r.store.IndexKey("timesheet-period", t.PeriodKey())
}

func (r *TimesheetRepository) Get(ctx context.Context, id string) (*domain.Timesheet, error) {
	var t domain.Timesheet
	if err := r.store.Get(ctx, r.Key(id), &t); err != nil {
		if errors.Is(err, redisdoc.ErrNotFound) {
			return nil, domain.ErrTimesheetNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GetMany loads the requested timesheets in request order, skipping unknown ids.
func (r *TimesheetRepository) GetMany(ctx context.Context, ids []string) ([]*domain.Timesheet, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.Key(id)
	}
	return redisdoc.GetMany[domain.Timesheet](ctx, r.store, keys)
}

// List returns every timesheet, or only userID's when it is set.
func (r *TimesheetRepository) List(ctx context.Context, userID string) ([]*domain.Timesheet, error) {
	index := r.index()
	if userID != "" {
		index = r.userIndex(userID)
	}
	ids, err := r.store.Members(ctx, index)
	if err != nil {
		return nil, err
	}
	return r.GetMany(ctx, ids)
}

// Create stores a new timesheet unless its owner already has one for the period.
func (r *TimesheetRepository) Create(ctx context.Context, t *domain.Timesheet) error {
	key := r.Key(t.ID)
	period := r.periodKey(t)
	index, userIndex := r.index(), r.userIndex(t.UserID)

	err := r.store.Watch(ctx, []string{period}, func(tx *redisdoc.Tx) error {
		taken, err := tx.GetString(period)
		if err != nil {
			return err
		}
		if taken != "" {
			return domain.ErrDuplicatePeriod
		}
		if err := tx.Set(key, t); err != nil {
			return err
		}
		tx.Stage(func(pipe redis.Pipeliner) {
			pipe.Set(ctx, period, t.ID, 0)
			pipe.SAdd(ctx, index, t.ID)
			pipe.SAdd(ctx, userIndex, t.ID)
		})
		return nil
	})
	return err
}

// Transact loads timesheet id under an optimistic lock, lets fn mutate it and
// stage related writes on tx, then writes it back in the same MULTI. A changed
// period is re-checked for uniqueness and its key moved.
func (r *TimesheetRepository) Transact(ctx context.Context, id string, fn func(tx *redisdoc.Tx, t *domain.Timesheet) error) (*domain.Timesheet, error) {
	key := r.Key(id)

	var out *domain.Timesheet
	err := r.store.Watch(ctx, []string{key}, func(tx *redisdoc.Tx) error {
		var t domain.Timesheet
		if err := tx.Get(key, &t); err != nil {
			return err
		}
		oldPeriod := r.periodKey(&t)

		if err := fn(tx, &t); err != nil {
			return err
		}

		if newPeriod := r.periodKey(&t); newPeriod != oldPeriod {
			if err := tx.Watch(newPeriod); err != nil {
				return err
			}
			taken, err := tx.GetString(newPeriod)
			if err != nil {
				return err
			}
			if taken != "" && taken != t.ID {
				return domain.ErrDuplicatePeriod
			}
			tx.Stage(func(pipe redis.Pipeliner) {
				pipe.Del(ctx, oldPeriod)
				pipe.Set(ctx, newPeriod, t.ID, 0)
			})
		}

		out = &t
		return tx.Set(key, &t)
	})
	if errors.Is(err, redisdoc.ErrNotFound) {
		return nil, domain.ErrTimesheetNotFound
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save overwrites a timesheet without a lock. Tests use it to seed state.
func (r *TimesheetRepository) Save(ctx context.Context, t *domain.Timesheet) error {
	index, userIndex, period := r.index(), r.userIndex(t.UserID), r.periodKey(t)
	return r.store.Put(ctx, r.Key(t.ID), t, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, period, t.ID, 0)
		pipe.SAdd(ctx, index, t.ID)
		pipe.SAdd(ctx, userIndex, t.ID)
	})
}
