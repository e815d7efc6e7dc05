// Package record stores indexed records as hashes under their collection's
// key prefix, where the collection index picks them up.
package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/chemdex/internal/db"
	"github.com/kailas-cloud/chemdex/internal/domain"
	domrec "github.com/kailas-cloud/chemdex/internal/domain/record"
	"github.com/kailas-cloud/chemdex/internal/repository/keyspace"
)

// store is the consumer interface for records (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Repo implements usecase/record.Repository.
type Repo struct {
	store store
	keys  keyspace.Keyspace
}

// New creates a record repository.
func New(s store, keys keyspace.Keyspace) *Repo {
	return &Repo{store: s, keys: keys}
}

// Put replaces the given records, so properties dropped from a record do
// not linger in its hash.
func (r *Repo) Put(ctx context.Context, collection string, recs []domrec.Record) error {
	if len(recs) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(recs))
	for i := range recs {
		items[i] = db.HashSetItem{
			Key:     r.keys.Record(collection, recs[i].ID()),
			Fields:  ToHash(&recs[i]),
			Replace: true,
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset records %s: %w", collection, err)
	}
	return nil
}

// Get returns a record by ID.
func (r *Repo) Get(ctx context.Context, collection, id string) (domrec.Record, error) {
	key := r.keys.Record(collection, id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domrec.Record{}, domain.ErrNotFound
		}
		return domrec.Record{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return FromHash(id, m)
}

// Delete removes a record.
func (r *Repo) Delete(ctx context.Context, collection, id string) error {
	key := r.keys.Record(collection, id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrNotFound
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}
