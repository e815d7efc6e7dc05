// Package document defines the backend-facing compiled query: boolean clause
// lists, screening bounds and the scoring script.
package document

import (
	"encoding/json"
	"strconv"

	"github.com/kailas-cloud/chemdex/internal/domain/fingerprint"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
	"github.com/kailas-cloud/chemdex/internal/domain/search/metric"
)

// ClauseKind selects how a clause tests its field.
type ClauseKind string

// Clause kinds.
const (
	ClauseTerm     ClauseKind = "term"
	ClauseMatch    ClauseKind = "match"
	ClauseRange    ClauseKind = "range"
	ClauseWildcard ClauseKind = "wildcard"
)

// Clause is a single field test.
type Clause struct {
	Kind  ClauseKind
	Field string
	// Value is the term, match text or wildcard pattern.
	Value any
	// Lower and Upper bound range clauses (inclusive, nil = open).
	Lower *float64
	Upper *float64
}

// Term creates an exact term clause.
func Term(field string, value any) Clause {
	return Clause{Kind: ClauseTerm, Field: field, Value: value}
}

// TermClauses generates one term clause per set bit, ascending.
// An empty set yields no clauses.
func TermClauses(set fingerprint.Set, field string) []Clause {
	bits := set.Bits()
	if len(bits) == 0 {
		return nil
	}
	out := make([]Clause, len(bits))
	for i, b := range bits {
		out[i] = Term(field, b)
	}
	return out
}

// NotErrored is the filter excluding records without safe fingerprints.
func NotErrored() Clause {
	return Term(record.FieldHasError, 0)
}

// Script is the per-candidate scoring expression.
type Script struct {
	Source string
	Params map[string]float64
	// Metric and QueryLen let Go backends evaluate the formula natively.
	Metric   metric.Params
	QueryLen int
}

// Document is a compiled query, owned by the call that built it.
type Document struct {
	Must   []Clause
	Should []Clause
	Filter []Clause
	// MinimumShouldMatch is a percentage of Should clauses (nil = unset).
	MinimumShouldMatch *int
	MinScore           *float64
	Script             *Script
	// ConstantScore wraps the boolean query for unscored field filters.
	ConstantScore bool
	// Size caps the number of hits (0 = backend default).
	Size int
}

// IsEmpty reports whether the document constrains nothing.
func (d *Document) IsEmpty() bool {
	return len(d.Must) == 0 && len(d.Should) == 0 && len(d.Filter) == 0
}

// MinimumShouldCount returns the number of Should clauses a hit must match.
// With Should clauses and no explicit minimum, at least one is required.
func (d *Document) MinimumShouldCount() int {
	n := len(d.Should)
	if n == 0 {
		return 0
	}
	if d.MinimumShouldMatch == nil {
		if len(d.Must) == 0 && len(d.Filter) == 0 {
			return 1
		}
		return 0
	}
	return metric.MinimumShouldCount(*d.MinimumShouldMatch, n)
}

// Rank evaluates the Should/score part of the document against a candidate
// that already satisfies Must and Filter. ok is false when the candidate
// misses the should bound or the min score.
func (d *Document) Rank(r *record.Record) (score float64, ok bool) {
	matched := 0
	for i := range d.Should {
		if Has(r, d.Should[i]) {
			matched++
		}
	}
	if matched < d.MinimumShouldCount() {
		return 0, false
	}

	score = 1
	if d.Script != nil {
		score = d.Script.Metric.Score(matched, d.Script.QueryLen, r.SimFingerprintLen())
	}
	if d.MinScore != nil && !metric.Accepts(score, *d.MinScore) {
		return score, false
	}
	return score, true
}

// Has reports whether a record satisfies a term clause. Other clause kinds
// depend on backend text analysis and always report false here.
func Has(r *record.Record, c Clause) bool {
	if c.Kind != ClauseTerm {
		return false
	}
	switch c.Field {
	case record.FieldHash:
		return hasBit(r.ExactHash(), c.Value)
	case record.FieldSubFingerprint:
		return hasBit(r.SubFingerprint(), c.Value)
	case record.FieldSimFingerprint:
		return hasBit(r.SimFingerprint(), c.Value)
	case record.FieldHasError:
		return ValueString(c.Value) == boolDigit(r.HasError())
	case record.FieldSimFingerprintLen:
		return ValueString(c.Value) == strconv.Itoa(r.SimFingerprintLen())
	case record.FieldKind:
		return ValueString(c.Value) == string(r.Kind())
	default:
		v, ok := r.Properties()[c.Field]
		return ok && v == ValueString(c.Value)
	}
}

func hasBit(set fingerprint.Set, v any) bool {
	b, ok := v.(uint32)
	if !ok {
		n, err := strconv.ParseUint(ValueString(v), 10, 32)
		if err != nil {
			return false
		}
		b = uint32(n)
	}
	return set.Contains(b)
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ValueString renders a clause value the way backends store it.
func ValueString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return boolDigit(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}
