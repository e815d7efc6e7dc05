package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/chemdex/internal/domain"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
	"github.com/kailas-cloud/chemdex/internal/domain/search/postprocess"
	"github.com/kailas-cloud/chemdex/internal/metrics"
)

// DefaultVerifyWorkers bounds concurrent oracle calls per page.
const DefaultVerifyWorkers = 4

// verifier applies verification steps to one screened page at a time.
type verifier struct {
	oracle  domain.Oracle
	steps   []postprocess.Step
	workers int
	kind    string
	logger  *zap.Logger
}

// page verifies candidates concurrently and keeps the survivors in input order.
// Oracle failures exclude the candidate. Only context errors are returned.
func (v *verifier) page(ctx context.Context, candidates []record.Match) ([]record.Match, error) {
	if len(v.steps) == 0 {
		return candidates, nil
	}
	if v.oracle == nil {
		return nil, fmt.Errorf("%w: no oracle configured for %s verification", domain.ErrOracle, v.kind)
	}

	keep := make([]bool, len(candidates))
	verified := make([]record.Record, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(v.workers, 1))
	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c := candidates[i].Record
			out, ok, err := postprocess.Apply(gctx, v.steps, v.oracle, c)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				v.logger.Warn("Candidate verification failed, excluding",
					zap.String("id", c.ID()),
					zap.String("kind", v.kind),
					zap.Error(err),
				)
				metrics.CandidatesVerifiedTotal.WithLabelValues(v.kind, "error").Inc()
				return nil
			}
			if !ok {
				metrics.CandidatesVerifiedTotal.WithLabelValues(v.kind, "reject").Inc()
				return nil
			}
			metrics.CandidatesVerifiedTotal.WithLabelValues(v.kind, "match").Inc()
			keep[i] = true
			verified[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("verify candidates: %w", err)
	}

	out := candidates[:0:0]
	for i, ok := range keep {
		if ok {
			out = append(out, record.Match{Record: verified[i], Score: candidates[i].Score})
		}
	}
	return out, nil
}

// sliceCursor serves pre-fetched candidates as a single page.
type sliceCursor struct {
	matches []record.Match
	done    bool
}

func (c *sliceCursor) Next(context.Context) ([]record.Match, error) {
	if c.done {
		return nil, nil
	}
	c.done = true
	return c.matches, nil
}

func (c *sliceCursor) Close() error { return nil }
