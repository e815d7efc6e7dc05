package search

import (
	"context"

	"github.com/kailas-cloud/chemdex/internal/domain/record"
	"github.com/kailas-cloud/chemdex/internal/domain/search/document"
)

// Backend executes a compiled document against one collection.
type Backend interface {
	Open(ctx context.Context, collection string, doc *document.Document) (Cursor, error)
}

// Cursor pages through screened candidates in backend order.
// Next returns an empty page once the results are exhausted.
type Cursor interface {
	Next(ctx context.Context) ([]record.Match, error)
	Close() error
}
