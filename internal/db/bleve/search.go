package bleve

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kailas-cloud/chemdex/internal/db"
	"github.com/kailas-cloud/chemdex/internal/domain/search/document"
)

// Search runs a boolean screening query. Filters join the must list,
// MinShould is applied natively and hits are ordered by key.
func (s *Store) Search(ctx context.Context, q *db.ScreenQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, errors.New("index name is required")
	}
	if q.Limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	ix, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}

	bq, err := buildQuery(ix.def, q)
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(bq, q.Limit, q.Offset, false)
	req.SortBy([]string{"_id"})

	res, err := ix.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	entries := make([]db.SearchEntry, 0, len(res.Hits))
	for _, hit := range res.Hits {
		h, ok := s.hashes[hit.ID]
		if !ok {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    hit.ID,
			Score:  hit.Score,
			Fields: pick(h, q.ReturnFields),
		})
	}
	return &db.SearchResult{Total: int(res.Total), Entries: entries}, nil
}

func pick(h map[string]string, fields []string) map[string]string {
	if len(fields) == 0 {
		return maps.Clone(h)
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := h[f]; ok {
			out[f] = v
		}
	}
	return out
}

func buildQuery(def *db.IndexDefinition, q *db.ScreenQuery) (query.Query, error) {
	if len(q.Must)+len(q.Should)+len(q.Filter) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}

	bq := bleve.NewBooleanQuery()
	for _, list := range [][]document.Clause{q.Must, q.Filter} {
		for _, c := range list {
			cq, err := buildClause(def, c)
			if err != nil {
				return nil, err
			}
			bq.AddMust(cq)
		}
	}
	for _, c := range q.Should {
		cq, err := buildClause(def, c)
		if err != nil {
			return nil, err
		}
		bq.AddShould(cq)
	}
	if len(q.Should) > 0 && q.MinShould > 0 {
		bq.SetMinShould(float64(q.MinShould))
	}
	return bq, nil
}

func buildClause(def *db.IndexDefinition, c document.Clause) (query.Query, error) {
	f, ok := def.Field(c.Field)
	if !ok {
		return nil, fmt.Errorf("%w: field %q is not indexed", db.ErrUnsupported, c.Field)
	}

	switch c.Kind {
	case document.ClauseTerm:
		if f.Type == db.IndexFieldNumeric {
			v, err := numeric(c.Value)
			if err != nil {
				return nil, err
			}
			return numericRange(c.Field, &v, &v), nil
		}
		tq := bleve.NewTermQuery(normalizeTag(&f, document.ValueString(c.Value)))
		tq.SetField(c.Field)
		return tq, nil

	case document.ClauseMatch:
		if f.Type == db.IndexFieldTag {
			tq := bleve.NewTermQuery(normalizeTag(&f, document.ValueString(c.Value)))
			tq.SetField(c.Field)
			return tq, nil
		}
		mq := bleve.NewMatchQuery(document.ValueString(c.Value))
		mq.SetField(c.Field)
		mq.SetOperator(query.MatchQueryOperatorAnd)
		return mq, nil

	case document.ClauseWildcard:
		pattern := document.ValueString(c.Value)
		if f.Type == db.IndexFieldTag {
			pattern = normalizeTag(&f, pattern)
		}
		wq := bleve.NewWildcardQuery(pattern)
		wq.SetField(c.Field)
		return wq, nil

	case document.ClauseRange:
		return numericRange(c.Field, c.Lower, c.Upper), nil

	default:
		return nil, fmt.Errorf("%w: clause kind %q", db.ErrUnsupported, c.Kind)
	}
}

func numericRange(field string, lower, upper *float64) query.Query {
	inclusive := true
	rq := bleve.NewNumericRangeInclusiveQuery(lower, upper, &inclusive, &inclusive)
	rq.SetField(field)
	return rq
}

func numeric(v any) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("%w: non-numeric value %v", db.ErrUnsupported, v)
	}
}
