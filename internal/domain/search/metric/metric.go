// Package metric implements the similarity formulas used for fingerprint screening
// and authoritative candidate scoring.
//
// Notation: Q is the query fingerprint cardinality, L the candidate cardinality
// (persisted as sim_fingerprint_len), S the number of query bits the candidate has.
package metric

import (
	"math"
	"strings"

	"github.com/kailas-cloud/chemdex/internal/domain"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
)

// Kind is a similarity metric name.
type Kind string

// Supported metrics.
const (
	Tanimoto Kind = "tanimoto"
	Tversky  Kind = "tversky"
	// Euclid is the fraction of query bits present in the candidate.
	Euclid Kind = "euclid"
)

// Default Tversky weights (Dice-equivalent).
const (
	DefaultAlpha = 0.5
	DefaultBeta  = 0.5
)

// IsValid checks if the metric is supported.
func (k Kind) IsValid() bool {
	return k == Tanimoto || k == Tversky || k == Euclid
}

// Params is a metric with its weights. Alpha and Beta are used by Tversky only.
type Params struct {
	kind  Kind
	alpha float64
	beta  float64
}

// NewTanimoto returns Tanimoto parameters.
func NewTanimoto() Params { return Params{kind: Tanimoto} }

// NewEuclid returns Euclid parameters.
func NewEuclid() Params { return Params{kind: Euclid} }

// NewTversky validates weights and returns Tversky parameters.
func NewTversky(alpha, beta float64) (Params, error) {
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) || alpha < 0 {
		return Params{}, domain.NewConfigurationError("alpha", alpha, "must be a finite non-negative number")
	}
	if math.IsNaN(beta) || math.IsInf(beta, 0) || beta < 0 {
		return Params{}, domain.NewConfigurationError("beta", beta, "must be a finite non-negative number")
	}
	return Params{kind: Tversky, alpha: alpha, beta: beta}, nil
}

// Parse resolves a metric name ("tanimoto", "tversky", "euclid").
// Tversky weights default to 0.5/0.5 when both are zero.
func Parse(name string, alpha, beta float64) (Params, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(name))) {
	case Tanimoto:
		return NewTanimoto(), nil
	case Euclid:
		return NewEuclid(), nil
	case Tversky:
		if alpha == 0 && beta == 0 {
			alpha, beta = DefaultAlpha, DefaultBeta
		}
		return NewTversky(alpha, beta)
	default:
		return Params{}, domain.NewConfigurationError("metric", name, "unsupported similarity metric")
	}
}

// Kind returns the metric name.
func (p Params) Kind() Kind { return p.kind }

// Alpha returns the Tversky query weight.
func (p Params) Alpha() float64 { return p.alpha }

// Beta returns the Tversky candidate weight.
func (p Params) Beta() float64 { return p.beta }

// LowerBound returns the minimum number of matched query bits a candidate needs
// to possibly reach threshold t. The value is conservative: no candidate whose
// Score is >= t has fewer matched bits.
func (p Params) LowerBound(queryLen int, t float64) float64 {
	q := float64(queryLen)
	switch p.kind {
	case Tanimoto:
		return t * (q + 1) / (1 + t)
	case Euclid:
		return t * q
	case Tversky:
		// Score >= t with L >= S implies S >= t*a*Q / (1 - t + t*a).
		necessary := 0.0
		if den := 1 - t + t*p.alpha; den > 0 {
			necessary = t * p.alpha * q / den
		}
		den := t + p.alpha + p.beta - 1
		if den <= 0 {
			return necessary
		}
		return math.Min((p.alpha*q+p.beta)/den, necessary)
	default:
		return 0
	}
}

// CandidateLenRange returns the candidate fingerprint cardinalities that can
// still reach threshold t against a query of queryLen bits, widened by a
// small slack for float error. hi is +Inf when the metric sets no upper bound.
func (p Params) CandidateLenRange(queryLen int, t float64) (lo, hi float64) {
	lo, hi = 0, math.Inf(1)
	if queryLen <= 0 || t <= 0 {
		return lo, hi
	}
	q := float64(queryLen)
	switch p.kind {
	case Tanimoto:
		// Best case S = min(Q, L) scores min(Q, L) / max(Q, L).
		lo, hi = t*q, q/t
	case Euclid:
		lo = t * q
	case Tversky:
		if den := 1 - t + t*p.alpha; den > 0 {
			lo = t * p.alpha * q / den
		}
		if p.beta > 0 {
			hi = q + q*(1-t)/(t*p.beta)
		}
	}
	return math.Max(0, lo-lenSlack), hi + lenSlack
}

const lenSlack = 1e-9

// MinimumShouldMatch returns the minimum_should_match percentage for n
// generated clauses, rounded down. ok is false when there are no clauses.
func (p Params) MinimumShouldMatch(queryLen, n int, t float64) (percent int, ok bool) {
	if n <= 0 {
		return 0, false
	}
	bound := int(math.Floor(p.LowerBound(queryLen, t)))
	if bound <= 0 {
		return 0, true
	}
	if bound >= n {
		return 100, true
	}
	return 100 * bound / n, true
}

// MinimumShouldCount converts a percentage of n clauses to a clause count the
// way search backends do (rounded down).
func MinimumShouldCount(percent, n int) int {
	if percent <= 0 || n <= 0 {
		return 0
	}
	if percent >= 100 {
		return n
	}
	return n * percent / 100
}

// Score is the authoritative similarity of a candidate with matched query bits.
// A non-positive denominator yields 0.
func (p Params) Score(matched, queryLen, candidateLen int) float64 {
	s := float64(matched)
	q := float64(queryLen)
	l := float64(candidateLen)

	var den float64
	switch p.kind {
	case Tanimoto:
		den = q + l - s
	case Euclid:
		den = q
	case Tversky:
		den = (q-s)*p.alpha + (l-s)*p.beta + s
	default:
		return 0
	}
	if den <= 0 {
		return 0
	}
	return s / den
}

// Accepts reports whether score reaches threshold (inclusive).
func Accepts(score, threshold float64) bool { return score >= threshold }

// Script returns the painless scoring expression and its parameters, where
// _score is the matched clause count and params.a is the query cardinality.
func (p Params) Script(queryLen int) (source string, params map[string]float64) {
	lenRef := "doc['" + record.FieldSimFingerprintLen + "'].value"
	a := float64(queryLen)
	switch p.kind {
	case Tanimoto:
		return "_score / (params.a + " + lenRef + " - _score)", map[string]float64{"a": a}
	case Euclid:
		return "_score / params.a", map[string]float64{"a": a}
	case Tversky:
		return "_score / ((params.a - _score) * params.alpha + (" + lenRef + " - _score) * params.beta + _score)",
			map[string]float64{"a": a, "alpha": p.alpha, "beta": p.beta}
	default:
		return "", nil
	}
}
