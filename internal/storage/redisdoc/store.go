// Package redisdoc keeps JSON documents in Redis. Each document lives under
// its own key, index sets list the documents of a kind, and Watch runs
// optimistic read-modify-write transactions over one or more keys.
package redisdoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/irma-project/irma-backend/internal/metrics"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document changed concurrently")
)

const (
	defaultPrefix     = "irma:"
	defaultMaxRetries = 10
)

type Store struct {
	client     *redis.Client
	prefix     string
	maxRetries int
}

type Option func(*Store)

// WithPrefix sets the namespace prepended to every key.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithMaxRetries bounds how many times Watch re-runs after a conflict.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:     client,
		prefix:     defaultPrefix,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Client() *redis.Client { return s.client }

// Key builds the document key for kind and id, e.g. irma:timesheet:<id>.
func (s *Store) Key(kind, id string) string {
	return s.prefix + kind + ":" + id
}

// IndexKey builds the key of a secondary structure, e.g. irma:timesheets:user:<id>.
func (s *Store) IndexKey(parts ...string) string {
	return s.prefix + strings.Join(parts, ":")
}

// Get loads the document at key into dst.
func (s *Store) Get(ctx context.Context, key string, dst any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// GetMany loads every existing document among keys, in key order. Missing keys are skipped.
func GetMany[T any](ctx context.Context, s *Store, keys []string) ([]*T, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	out := make([]*T, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var doc T
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
		out = append(out, &doc)
	}
	return out, nil
}

// Members returns the ids recorded in an index set.
func (s *Store) Members(ctx context.Context, indexKey string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", indexKey, err)
	}
	return ids, nil
}

// Put writes doc at key and applies the extra pipeline commands (index updates) in one round trip.
func (s *Store) Put(ctx context.Context, key string, doc any, extra ...func(pipe redis.Pipeliner)) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		for _, fn := range extra {
			fn(pipe)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Watch runs fn inside an optimistic transaction over keys. Writes staged on the
// Tx are committed atomically with MULTI/EXEC only if none of the watched keys
// changed since fn read them; otherwise fn runs again from scratch. After
// maxRetries lost races Watch returns ErrConflict.
func (s *Store) Watch(ctx context.Context, keys []string, fn func(tx *Tx) error) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &Tx{ctx: ctx, rtx: rtx}
			if err := fn(tx); err != nil {
				return err
			}
			if len(tx.writes) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, w := range tx.writes {
					w(pipe)
				}
				return nil
			})
			return err
		}, keys...)

		if errors.Is(err, redis.TxFailedErr) {
			metrics.LockConflict()
			continue
		}
		return err
	}
	return ErrConflict
}

// Update is Watch specialised to a single document: it loads key as T, applies
// mutate and writes the result back.
func Update[T any](ctx context.Context, s *Store, key string, mutate func(doc *T) error) (*T, error) {
	var out *T
	err := s.Watch(ctx, []string{key}, func(tx *Tx) error {
		var doc T
		if err := tx.Get(key, &doc); err != nil {
			return err
		}
		if err := mutate(&doc); err != nil {
			return err
		}
		out = &doc
		return tx.Set(key, &doc)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Tx is the view of a Watch transaction handed to callers. Reads go to Redis
// immediately; writes are queued and sent in one MULTI/EXEC block.
type Tx struct {
	ctx    context.Context
	rtx    *redis.Tx
	writes []func(pipe redis.Pipeliner)
}

func (t *Tx) Context() context.Context { return t.ctx }

// Watch adds keys discovered while reading to the optimistic lock.
func (t *Tx) Watch(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := t.rtx.Watch(t.ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to watch keys: %w", err)
	}
	return nil
}

func (t *Tx) Get(key string, dst any) error {
	data, err := t.rtx.Get(t.ctx, key).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// GetString reads a plain string value; missing keys yield "".
func (t *Tx) GetString(key string) (string, error) {
	v, err := t.rtx.Get(t.ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, nil
}

// Set queues a document write.
func (t *Tx) Set(key string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	t.Stage(func(pipe redis.Pipeliner) {
		pipe.Set(t.ctx, key, data, 0)
	})
	return nil
}

// Stage queues an arbitrary command for the commit.
func (t *Tx) Stage(fn func(pipe redis.Pipeliner)) {
	t.writes = append(t.writes, fn)
}
