package collection

import (
	"context"

	domcol "github.com/kailas-cloud/chemdex/internal/domain/collection"
)

// Repository stores collection metadata and owns the search index built
// over a collection's records.
type Repository interface {
	// Create fails with domain.ErrAlreadyExists when the name is taken.
	Create(ctx context.Context, col domcol.Collection) error
	// Get fails with domain.ErrNotFound for an unknown name.
	Get(ctx context.Context, name string) (domcol.Collection, error)
	// Delete drops the index, every record under it, then the metadata.
	Delete(ctx context.Context, name string) error
}
