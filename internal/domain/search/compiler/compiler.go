// Package compiler turns query variants into a backend document plus the
// verification steps that make structural results exact.
package compiler

import (
	"fmt"

	"github.com/kailas-cloud/chemdex/internal/domain"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
	"github.com/kailas-cloud/chemdex/internal/domain/search/document"
	"github.com/kailas-cloud/chemdex/internal/domain/search/postprocess"
	"github.com/kailas-cloud/chemdex/internal/domain/search/query"
)

// Result is a compiled search: the screening document and the steps every
// returned candidate must pass.
type Result struct {
	Document *document.Document
	Steps    []postprocess.Step
	// Kind is the structural variant, or the first field variant.
	Kind query.Kind
}

// Compile compiles a single query.
func Compile(q query.Query) (Result, error) {
	return CompileAll(q)
}

// CompileAll combines field queries with at most one structural query.
// Nothing is returned on error.
func CompileAll(qs ...query.Query) (Result, error) {
	if len(qs) == 0 {
		return Result{}, domain.NewCompilationError("no query given", nil)
	}

	var structural query.Query
	var fields []query.Query
	for _, q := range qs {
		if q == nil {
			return Result{}, domain.NewCompilationError("nil query", nil)
		}
		if !q.Kind().IsStructural() {
			fields = append(fields, q)
			continue
		}
		if structural != nil {
			return Result{}, domain.NewCompilationError(
				"only one structural query per search",
				fmt.Sprintf("%s+%s", structural.Kind(), q.Kind()))
		}
		structural = q
	}

	res := Result{Document: &document.Document{}}
	if structural != nil {
		if err := compileStructural(&res, structural); err != nil {
			return Result{}, err
		}
	} else {
		res.Kind = fields[0].Kind()
		res.Document.ConstantScore = true
	}

	// Field clauses must not add to the matched-bit count a similarity script scores.
	toFilter := structural != nil && structural.Kind() == query.KindSimilarity
	for _, q := range fields {
		c, err := fieldClause(q)
		if err != nil {
			return Result{}, err
		}
		if toFilter {
			res.Document.Filter = append(res.Document.Filter, c)
		} else {
			res.Document.Must = append(res.Document.Must, c)
		}
	}
	return res, nil
}

func compileStructural(res *Result, q query.Query) error {
	d := res.Document
	res.Kind = q.Kind()

	switch v := q.(type) {
	case *query.Exact:
		// An empty hash leaves Must unconstrained; the exact step decides.
		d.Must = append(d.Must, v.Clauses()...)
		d.Filter = append(d.Filter, document.NotErrored())
		res.Steps = append(res.Steps, postprocess.Exact(v.Target(), v.Options()))
	case *query.Substructure:
		d.Must = append(d.Must, v.Clauses()...)
		d.Filter = append(d.Filter, document.NotErrored())
		res.Steps = append(res.Steps, postprocess.Substructure(v.Target(), v.Options()))
	case *query.Similarity:
		return compileSimilarity(d, v)
	default:
		return domain.NewCompilationError("unsupported query variant", q.Kind())
	}
	return nil
}

func compileSimilarity(d *document.Document, q *query.Similarity) error {
	m := q.Metric()
	if !m.Kind().IsValid() {
		return domain.NewCompilationError("unsupported similarity metric", m.Kind())
	}
	target := q.Target()
	queryLen := target.SimFingerprint().Len()
	clauses := q.Clauses()

	d.Should = append(d.Should, clauses...)
	if pct, ok := m.MinimumShouldMatch(queryLen, len(clauses), q.Threshold()); ok {
		d.MinimumShouldMatch = &pct
	}
	src, params := m.Script(queryLen)
	d.Script = &document.Script{Source: src, Params: params, Metric: m, QueryLen: queryLen}
	minScore := q.Threshold()
	d.MinScore = &minScore
	d.Filter = append(d.Filter, document.NotErrored())
	return nil
}

func fieldClause(q query.Query) (document.Clause, error) {
	switch v := q.(type) {
	case *query.Keyword:
		if v.Field() == record.FieldKind {
			return document.Term(v.Field(), v.Value()), nil
		}
		return document.Clause{Kind: document.ClauseMatch, Field: v.Field(), Value: v.Value()}, nil
	case *query.Range:
		lo, hi := v.Bounds()
		return document.Clause{Kind: document.ClauseRange, Field: v.Field(), Lower: lo, Upper: hi}, nil
	case *query.Wildcard:
		return document.Clause{Kind: document.ClauseWildcard, Field: v.Field(), Value: v.Pattern()}, nil
	default:
		return document.Clause{}, domain.NewCompilationError("unsupported query variant", q.Kind())
	}
}
