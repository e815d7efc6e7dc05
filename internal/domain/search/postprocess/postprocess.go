// Package postprocess defines the verification predicates attached to a
// compiled query and applied to every screened candidate.
package postprocess

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/chemdex/internal/domain"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
)

// Predicate checks a candidate against the oracle. It returns the candidate
// to pass on and whether it matched. Errors are oracle failures.
type Predicate func(
	ctx context.Context, candidate record.Record, oracle domain.Oracle, options string,
) (record.Record, bool, error)

// Step is a named predicate with its oracle options.
type Step struct {
	Name    string
	Check   Predicate
	Options string
}

// Step names.
const (
	StepExact        = "exact"
	StepSubstructure = "substructure"
)

// Exact returns the step verifying structural equality with target.
func Exact(target record.Record, options string) Step {
	return Step{
		Name:    StepExact,
		Options: options,
		Check: func(ctx context.Context, c record.Record, o domain.Oracle, opts string) (record.Record, bool, error) {
			ok, err := o.Exact(ctx, target.Structure(), c.Structure(), opts)
			if err != nil {
				return c, false, fmt.Errorf("%w: exact %s: %w", domain.ErrOracle, c.ID(), err)
			}
			return c, ok, nil
		},
	}
}

// Substructure returns the step verifying that candidates contain target.
func Substructure(target record.Record, options string) Step {
	return Step{
		Name:    StepSubstructure,
		Options: options,
		Check: func(ctx context.Context, c record.Record, o domain.Oracle, opts string) (record.Record, bool, error) {
			ok, err := o.Substructure(ctx, target.Structure(), c.Structure(), opts)
			if err != nil {
				return c, false, fmt.Errorf("%w: substructure %s: %w", domain.ErrOracle, c.ID(), err)
			}
			return c, ok, nil
		},
	}
}

// Apply runs steps in order and stops at the first rejection or error.
func Apply(
	ctx context.Context, steps []Step, oracle domain.Oracle, candidate record.Record,
) (record.Record, bool, error) {
	for _, s := range steps {
		next, ok, err := s.Check(ctx, candidate, oracle, s.Options)
		if err != nil {
			return candidate, false, err
		}
		if !ok {
			return candidate, false, nil
		}
		candidate = next
	}
	return candidate, true, nil
}
