// Package query defines the closed set of search request variants.
package query

import (
	"math"
	"regexp"
	"sync"

	"github.com/kailas-cloud/chemdex/internal/domain"
	"github.com/kailas-cloud/chemdex/internal/domain/fingerprint"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
	"github.com/kailas-cloud/chemdex/internal/domain/search/document"
	"github.com/kailas-cloud/chemdex/internal/domain/search/metric"
)

// Kind names a query variant.
type Kind string

// Query variants.
const (
	KindKeyword      Kind = "keyword"
	KindRange        Kind = "range"
	KindWildcard     Kind = "wildcard"
	KindExact        Kind = "exact"
	KindSubstructure Kind = "substructure"
	KindSimilarity   Kind = "similarity"
)

// IsStructural reports whether the variant screens on fingerprints.
func (k Kind) IsStructural() bool {
	return k == KindExact || k == KindSubstructure || k == KindSimilarity
}

// Query is one search request variant. The set of implementations is closed.
type Query interface {
	Kind() Kind
	sealed()
}

var fieldRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

func validateField(field string) error {
	if field == "" {
		return domain.NewCompilationError("field name is required", nil)
	}
	if !fieldRegex.MatchString(field) {
		return domain.NewCompilationError("invalid field name", field)
	}
	if record.IsReservedField(field) && field != record.FieldKind {
		return domain.NewCompilationError("field is not searchable", field)
	}
	return nil
}

// Keyword matches records whose field equals value.
type Keyword struct {
	field string
	value string
}

// NewKeyword validates and creates a Keyword query.
func NewKeyword(field, value string) (*Keyword, error) {
	if err := validateField(field); err != nil {
		return nil, err
	}
	if value == "" {
		return nil, domain.NewCompilationError("keyword value is required", field)
	}
	return &Keyword{field: field, value: value}, nil
}

func (*Keyword) Kind() Kind { return KindKeyword }
func (*Keyword) sealed()    {}

// Field returns the target field.
func (q *Keyword) Field() string { return q.field }

// Value returns the matched text.
func (q *Keyword) Value() string { return q.value }

// Range matches records whose numeric field lies in [lower, upper].
type Range struct {
	field string
	lower *float64
	upper *float64
}

// NewRange validates and creates a Range query. Nil bounds are open.
func NewRange(field string, lower, upper *float64) (*Range, error) {
	if err := validateField(field); err != nil {
		return nil, err
	}
	if lower == nil && upper == nil {
		return nil, domain.NewCompilationError("range needs at least one bound", field)
	}
	for _, b := range []*float64{lower, upper} {
		if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
			return nil, domain.NewCompilationError("range bound must be finite", *b)
		}
	}
	if lower != nil && upper != nil && *lower > *upper {
		return nil, domain.NewCompilationError("range lower bound exceeds upper bound", field)
	}
	q := &Range{field: field}
	if lower != nil {
		lo := *lower
		q.lower = &lo
	}
	if upper != nil {
		hi := *upper
		q.upper = &hi
	}
	return q, nil
}

func (*Range) Kind() Kind { return KindRange }
func (*Range) sealed()    {}

// Field returns the target field.
func (q *Range) Field() string { return q.field }

// Bounds returns copies of the inclusive bounds.
func (q *Range) Bounds() (lower, upper *float64) {
	if q.lower != nil {
		lo := *q.lower
		lower = &lo
	}
	if q.upper != nil {
		hi := *q.upper
		upper = &hi
	}
	return lower, upper
}

// Wildcard matches records whose field matches a glob pattern (* and ?).
type Wildcard struct {
	field   string
	pattern string
}

// NewWildcard validates and creates a Wildcard query.
func NewWildcard(field, pattern string) (*Wildcard, error) {
	if err := validateField(field); err != nil {
		return nil, err
	}
	if pattern == "" {
		return nil, domain.NewCompilationError("wildcard pattern is required", field)
	}
	return &Wildcard{field: field, pattern: pattern}, nil
}

func (*Wildcard) Kind() Kind { return KindWildcard }
func (*Wildcard) sealed()    {}

// Field returns the target field.
func (q *Wildcard) Field() string { return q.field }

// Pattern returns the glob pattern.
func (q *Wildcard) Pattern() string { return q.pattern }

// structural holds the target and its lazily generated screening clauses.
type structural struct {
	target  record.Record
	options string

	once    sync.Once
	clauses []document.Clause
}

func (s *structural) screen(field string, set func(*record.Record) fingerprint.Set) []document.Clause {
	s.once.Do(func() {
		s.clauses = document.TermClauses(set(&s.target), field)
	})
	return s.clauses
}

// Exact matches records structurally equal to the target.
type Exact struct{ structural }

// NewExact creates an Exact query. options are passed to the oracle as is.
func NewExact(target record.Record, options string) *Exact {
	return &Exact{structural{target: target, options: options}}
}

func (*Exact) Kind() Kind { return KindExact }
func (*Exact) sealed()    {}

// Target returns the query structure.
func (q *Exact) Target() record.Record { return q.target }

// Options returns the opaque oracle flags.
func (q *Exact) Options() string { return q.options }

// Clauses returns the hash term clauses, computed once per query.
func (q *Exact) Clauses() []document.Clause {
	return q.screen(record.FieldHash, (*record.Record).ExactHash)
}

// Substructure matches records containing the target.
type Substructure struct{ structural }

// NewSubstructure creates a Substructure query.
func NewSubstructure(target record.Record, options string) *Substructure {
	return &Substructure{structural{target: target, options: options}}
}

func (*Substructure) Kind() Kind { return KindSubstructure }
func (*Substructure) sealed()    {}

// Target returns the query structure.
func (q *Substructure) Target() record.Record { return q.target }

// Options returns the opaque oracle flags.
func (q *Substructure) Options() string { return q.options }

// Clauses returns the substructure fingerprint term clauses.
func (q *Substructure) Clauses() []document.Clause {
	return q.screen(record.FieldSubFingerprint, (*record.Record).SubFingerprint)
}

// Similarity matches records whose metric score reaches the threshold.
type Similarity struct {
	structural
	metric    metric.Params
	threshold float64
}

// NewSimilarity validates the threshold and creates a Similarity query.
// threshold must lie in (0, 1].
func NewSimilarity(m metric.Params, target record.Record, threshold float64) (*Similarity, error) {
	if math.IsNaN(threshold) || threshold <= 0 || threshold > 1 {
		return nil, domain.NewConfigurationError("threshold", threshold, "must be in (0, 1]")
	}
	if !m.Kind().IsValid() {
		return nil, domain.NewConfigurationError("metric", m.Kind(), "unsupported similarity metric")
	}
	return &Similarity{structural: structural{target: target}, metric: m, threshold: threshold}, nil
}

func (*Similarity) Kind() Kind { return KindSimilarity }
func (*Similarity) sealed()    {}

// Target returns the query structure.
func (q *Similarity) Target() record.Record { return q.target }

// Metric returns the scoring metric.
func (q *Similarity) Metric() metric.Params { return q.metric }

// Threshold returns the inclusive minimum score.
func (q *Similarity) Threshold() float64 { return q.threshold }

// Clauses returns the similarity fingerprint term clauses.
func (q *Similarity) Clauses() []document.Clause {
	return q.screen(record.FieldSimFingerprint, (*record.Record).SimFingerprint)
}
