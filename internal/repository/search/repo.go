// Package search implements the screening backend over a db.Searcher:
// it pages boolean candidates out of a collection index and, for scored
// documents, evaluates the similarity script itself.
package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chemdex/internal/db"
	"github.com/kailas-cloud/chemdex/internal/domain"
	domcol "github.com/kailas-cloud/chemdex/internal/domain/collection"
	"github.com/kailas-cloud/chemdex/internal/domain/collection/field"
	domrec "github.com/kailas-cloud/chemdex/internal/domain/record"
	"github.com/kailas-cloud/chemdex/internal/domain/search/document"
	"github.com/kailas-cloud/chemdex/internal/logger"
	"github.com/kailas-cloud/chemdex/internal/metrics"
	recordrepo "github.com/kailas-cloud/chemdex/internal/repository/record"
	"github.com/kailas-cloud/chemdex/internal/repository/keyspace"
	searchuc "github.com/kailas-cloud/chemdex/internal/usecase/search"
)

// DefaultPageSize is the number of hits fetched per store round-trip.
const DefaultPageSize = 100

// store is the consumer interface for search operations (ISP).
type store interface {
	Search(ctx context.Context, q *db.ScreenQuery) (*db.SearchResult, error)
}

// schemaSource resolves the declared property fields of a collection.
type schemaSource interface {
	Get(ctx context.Context, name string) (domcol.Collection, error)
}

// Compile-time check: Repo implements usecase/search.Backend.
var _ searchuc.Backend = (*Repo)(nil)

// Repo implements usecase/search.Backend.
type Repo struct {
	store    store
	schemas  schemaSource
	keys     keyspace.Keyspace
	pageSize int
}

// Option configures a Repo.
type Option func(*Repo)

// WithSchemas lets Open look up which property fields are TAGs, so stores
// can render match and wildcard clauses on them correctly.
func WithSchemas(src schemaSource) Option {
	return func(r *Repo) { r.schemas = src }
}

// New creates a search repository. pageSize <= 0 means DefaultPageSize.
func New(s store, keys keyspace.Keyspace, pageSize int, opts ...Option) *Repo {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	r := &Repo{store: s, keys: keys, pageSize: pageSize}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Open starts screening one collection and fetches the first page, so a
// missing index or an unreachable store fails here.
//
// Scored documents (script or min_score) are fully screened up front,
// ranked by score descending (ties by ID) and cut to doc.Size. Boolean
// documents stream in store order. Records that fail to decode are logged,
// counted and skipped.
func (r *Repo) Open(ctx context.Context, collection string, doc *document.Document) (searchuc.Cursor, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrBackend)
	}

	c := &cursor{
		repo:       r,
		collection: collection,
		doc:        doc,
		q: db.ScreenQuery{
			IndexName: r.keys.Index(collection),
			Must:      doc.Must,
			Should:    doc.Should,
			Filter:    doc.Filter,
			MinShould: doc.MinimumShouldCount(),
			Limit:     r.pageSize,
		},
	}
	if f, ok := lengthFilter(doc); ok {
		c.q.Filter = append(slices.Clip(c.q.Filter), f)
	}
	if r.schemas != nil && hasTextClauses(doc) {
		tags, err := r.tagFields(ctx, collection)
		if err != nil {
			return nil, err
		}
		c.q.TagFields = tags
	}

	if doc.Script != nil || doc.MinScore != nil {
		ranked, err := c.rankAll(ctx)
		if err != nil {
			return nil, err
		}
		c.ranked = ranked
		c.done = true
		return c, nil
	}

	page, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.pending = page
	return c, nil
}

type cursor struct {
	repo       *Repo
	collection string
	doc        *document.Document
	q          db.ScreenQuery

	pending []domrec.Match // prefetched page
	ranked  []domrec.Match // remaining ranked hits
	emitted int
	done    bool
}

// Next returns the next page; an empty page means the cursor is exhausted.
func (c *cursor) Next(ctx context.Context) ([]domrec.Match, error) {
	if c.ranked != nil {
		n := min(c.repo.pageSize, len(c.ranked))
		page := c.ranked[:n:n]
		c.ranked = c.ranked[n:]
		return page, nil
	}

	for {
		if len(c.pending) > 0 {
			page := c.pending
			c.pending = nil
			return c.capped(page), nil
		}
		if c.done {
			return nil, nil
		}
		page, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.pending = page
	}
}

// Close releases nothing: pages are fetched on demand.
func (c *cursor) Close() error {
	c.pending, c.ranked, c.done = nil, nil, true
	return nil
}

// capped applies doc.Size to boolean streams.
func (c *cursor) capped(page []domrec.Match) []domrec.Match {
	if c.doc.Size <= 0 {
		return page
	}
	left := c.doc.Size - c.emitted
	if left <= 0 {
		c.done = true
		return nil
	}
	if len(page) > left {
		page = page[:left]
		c.done = true
	}
	c.emitted += len(page)
	return page
}

// fetch loads one store page and keeps the hits the document accepts.
// A store that relaxes MinShould returns a superset; Rank removes it.
func (c *cursor) fetch(ctx context.Context) ([]domrec.Match, error) {
	res, err := c.repo.store.Search(ctx, &c.q)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", domain.ErrBackend, c.collection, err)
	}

	c.q.Offset += len(res.Entries)
	if len(res.Entries) == 0 || c.q.Offset >= res.Total {
		c.done = true
	}

	page := make([]domrec.Match, 0, len(res.Entries))
	for _, e := range res.Entries {
		rec, err := recordrepo.FromHash(c.repo.keys.RecordID(c.collection, e.Key), e.Fields)
		if err != nil {
			logger.FromContext(ctx).Warn("Skipping undecodable record",
				zap.String("collection", c.collection),
				zap.String("key", e.Key),
				zap.Error(err),
			)
			metrics.CorruptRecordsTotal.WithLabelValues(c.collection).Inc()
			continue
		}
		score, ok := c.doc.Rank(&rec)
		if !ok {
			continue
		}
		page = append(page, domrec.Match{Record: rec, Score: score})
	}
	return page, nil
}

func (c *cursor) rankAll(ctx context.Context) ([]domrec.Match, error) {
	var all []domrec.Match
	for !c.done {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
	}

	slices.SortStableFunc(all, func(a, b domrec.Match) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.Record.ID(), b.Record.ID())
	})
	if c.doc.Size > 0 && len(all) > c.doc.Size {
		all = all[:c.doc.Size]
	}
	if all == nil {
		all = []domrec.Match{}
	}
	return all, nil
}

func (r *Repo) tagFields(ctx context.Context, collection string) (map[string]bool, error) {
	col, err := r.schemas.Get(ctx, collection)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("collection %s: %w", collection, err)
		}
		return nil, fmt.Errorf("%w: collection %s: %w", domain.ErrBackend, collection, err)
	}
	tags := map[string]bool{domrec.FieldKind: true}
	for _, f := range col.Fields() {
		if f.FieldType() == field.Tag {
			tags[f.Name()] = true
		}
	}
	return tags, nil
}

// hasTextClauses reports whether the document holds clauses whose store
// syntax depends on the field type.
func hasTextClauses(doc *document.Document) bool {
	for _, list := range [][]document.Clause{doc.Must, doc.Should, doc.Filter} {
		for _, c := range list {
			if c.Kind == document.ClauseMatch || c.Kind == document.ClauseWildcard {
				return true
			}
		}
	}
	return false
}

// lengthFilter bounds sim_fingerprint_len to the cardinalities that can reach
// the document's min score. It keeps stores that relax MinShould from
// returning every record sharing a single bit with the query.
func lengthFilter(doc *document.Document) (document.Clause, bool) {
	if doc.Script == nil || doc.MinScore == nil {
		return document.Clause{}, false
	}
	lo, hi := doc.Script.Metric.CandidateLenRange(doc.Script.QueryLen, *doc.MinScore)
	if lo <= 0 && math.IsInf(hi, 1) {
		return document.Clause{}, false
	}
	c := document.Clause{Kind: document.ClauseRange, Field: domrec.FieldSimFingerprintLen, Lower: &lo}
	if !math.IsInf(hi, 1) {
		c.Upper = &hi
	}
	return c, true
}
