package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/chemdex/internal/db"
	"github.com/kailas-cloud/chemdex/internal/domain"
	domcol "github.com/kailas-cloud/chemdex/internal/domain/collection"
	"github.com/kailas-cloud/chemdex/internal/repository/keyspace"
)

// store is the consumer interface for collections (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
}

// Repo implements usecase/collection.Repository.
type Repo struct {
	store store
	keys  keyspace.Keyspace
}

// New creates a collection repository.
func New(s store, keys keyspace.Keyspace) *Repo {
	return &Repo{store: s, keys: keys}
}

// Create stores the collection metadata, then creates the index over its
// record prefix. A failed index creation removes the metadata again.
func (r *Repo) Create(ctx context.Context, col domcol.Collection) error {
	name := col.Name()

	metaKey := r.keys.Meta(name)
	exists, err := r.store.Exists(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return domain.ErrAlreadyExists
	}

	indexDef, err := buildIndex(r.keys.Index(name), r.keys.Records(name), col.Fields())
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	meta := db.HashSetItem{Key: metaKey, Fields: collectionToHash(col), Replace: true}
	if err := r.store.HSetMulti(ctx, []db.HashSetItem{meta}); err != nil {
		return fmt.Errorf("hset collection %s: %w", name, err)
	}

	if err := r.store.CreateIndex(ctx, indexDef); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			err = fmt.Errorf("index %s: %w", indexDef.Name, domain.ErrAlreadyExists)
		}
		cleanupErr := r.store.Del(ctx, metaKey)
		return errors.Join(err, cleanupErr)
	}

	return nil
}

// Get retrieves a collection by name.
func (r *Repo) Get(ctx context.Context, name string) (domcol.Collection, error) {
	m, err := r.store.HGetAll(ctx, r.keys.Meta(name))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domcol.Collection{}, domain.ErrNotFound
		}
		return domcol.Collection{}, fmt.Errorf("hgetall collection %s: %w", name, err)
	}
	if len(m) == 0 {
		return domcol.Collection{}, domain.ErrNotFound
	}

	return collectionFromHash(m)
}

// Delete drops the collection index together with its records, then the
// metadata. Metadata left behind by a half-created collection (no index) is
// still removed. A failed drop leaves the collection intact.
func (r *Repo) Delete(ctx context.Context, name string) error {
	metaKey := r.keys.Meta(name)
	exists, err := r.store.Exists(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}

	idxName := r.keys.Index(name)
	if err := r.store.DropIndex(ctx, idxName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", idxName, err)
	}
	if err := r.store.Del(ctx, metaKey); err != nil {
		return fmt.Errorf("del collection %s: %w", name, err)
	}
	return nil
}
