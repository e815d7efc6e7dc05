package chemdex

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/chemdex/internal/domain/search/postprocess"
	searchuc "github.com/kailas-cloud/chemdex/internal/usecase/search"
)

// SearchOptions tune a single search.
type SearchOptions struct {
	// Collections are searched in order and their matches concatenated.
	// Empty means the default collection for the target kind.
	Collections []string
	// Limit caps verified matches (0 = similarity default, others unlimited).
	Limit int
}

// Compile compiles queries without touching the backend.
func (c *Client) Compile(qs ...Query) (Compiled, error) {
	res, err := c.searchSvc.Compile(qs...)
	if err != nil {
		return Compiled{}, fmt.Errorf("chemdex: %w", err)
	}
	return res, nil
}

// Search compiles the queries, screens the collections and returns a
// stream of verified matches. Compilation errors never reach the backend.
// The caller must Close the stream.
func (c *Client) Search(ctx context.Context, opts SearchOptions, qs ...Query) (*Stream, error) {
	collections := opts.Collections
	if len(collections) == 0 {
		collections = []string{c.defaultCollection(qs)}
	}
	st, err := c.searchSvc.Search(ctx, collections, searchuc.Options{Limit: opts.Limit}, qs...)
	if err != nil {
		return nil, fmt.Errorf("chemdex: %w", err)
	}
	return st, nil
}

// Verify runs the verification steps of a compiled search over
// caller-supplied candidates, preserving their order.
func (c *Client) Verify(steps []postprocess.Step, candidates []Match) *Stream {
	return c.searchSvc.Verify(steps, candidates)
}

// defaultCollection picks the collection matching the structural target kind.
func (c *Client) defaultCollection(qs []Query) string {
	for _, q := range qs {
		if t, ok := q.(interface{ Target() Record }); ok {
			if t := t.Target(); t.Kind() == Reaction {
				return c.cfg.rxnCollection
			}
			break
		}
	}
	return c.cfg.molCollection
}
