package record

import (
	"context"

	domcol "github.com/kailas-cloud/chemdex/internal/domain/collection"
	domrec "github.com/kailas-cloud/chemdex/internal/domain/record"
)

// Repository defines the storage contract for records.
type Repository interface {
	Put(ctx context.Context, collection string, recs []domrec.Record) error
	Get(ctx context.Context, collection, id string) (domrec.Record, error)
	Delete(ctx context.Context, collection, id string) error
}

// CollectionReader reads collections for existence and schema validation.
type CollectionReader interface {
	Get(ctx context.Context, name string) (domcol.Collection, error)
}
