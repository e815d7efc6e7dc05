// Package oracle wraps the structure engine with rate limiting and observability.
package oracle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/chemdex/internal/domain"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
	"github.com/kailas-cloud/chemdex/internal/logger"
	"github.com/kailas-cloud/chemdex/internal/metrics"
)

// InstrumentedOracle wraps an Oracle with a call-rate limit, metrics and logging.
type InstrumentedOracle struct {
	inner   domain.Oracle
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewInstrumentedOracle wraps an oracle. maxPerSec <= 0 disables the limit;
// burst < 1 is raised to 1.
func NewInstrumentedOracle(inner domain.Oracle, maxPerSec float64, burst int, logger *zap.Logger) *InstrumentedOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if maxPerSec > 0 {
		limit = rate.Limit(maxPerSec)
	}
	return &InstrumentedOracle{
		inner:   inner,
		limiter: rate.NewLimiter(limit, max(burst, 1)),
		logger:  logger,
	}
}

// Exact delegates to the inner oracle.
func (o *InstrumentedOracle) Exact(ctx context.Context, target, candidate record.Structure, options string) (bool, error) {
	return o.call(ctx, "exact", func(ctx context.Context) (bool, error) {
		return o.inner.Exact(ctx, target, candidate, options)
	})
}

// Substructure delegates to the inner oracle.
func (o *InstrumentedOracle) Substructure(ctx context.Context, q, candidate record.Structure, options string) (bool, error) {
	return o.call(ctx, "substructure", func(ctx context.Context) (bool, error) {
		return o.inner.Substructure(ctx, q, candidate, options)
	})
}

// HealthCheck forwards to the inner oracle when it can check itself.
func (o *InstrumentedOracle) HealthCheck(ctx context.Context) error {
	if hc, ok := o.inner.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("oracle health: %w", err)
		}
	}
	return nil
}

func (o *InstrumentedOracle) call(ctx context.Context, check string, fn func(context.Context) (bool, error)) (bool, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("oracle rate limit: %w", err)
	}

	log := logger.FromContextOr(ctx, o.logger)
	start := time.Now()
	ok, err := fn(ctx)
	duration := time.Since(start)
	metrics.OracleCallDuration.WithLabelValues(check).Observe(duration.Seconds())

	if err != nil {
		metrics.OracleErrorsTotal.WithLabelValues(check).Inc()
		log.Warn("Oracle call failed",
			zap.String("check", check),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return false, err
	}

	log.Debug("Oracle call completed",
		zap.String("check", check),
		zap.Duration("duration", duration),
		zap.Bool("match", ok),
	)
	return ok, nil
}
