// Package verdictcache memoizes structure engine verdicts in process.
package verdictcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chemdex/internal/domain"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
)

// DefaultSize is the number of verdicts kept when no size is given.
const DefaultSize = 10_000

const (
	checkExact        = "exact"
	checkSubstructure = "substructure"
)

// CachedOracle caches successful verdicts of an inner oracle.
// Failures are never cached, so a flaky engine gets asked again.
type CachedOracle struct {
	inner      domain.Oracle
	cache      *lru.Cache[string, bool]
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator holding up to size verdicts.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Oracle,
	size int,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) (*CachedOracle, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, bool](size)
	if err != nil {
		return nil, fmt.Errorf("create verdict cache: %w", err)
	}
	return &CachedOracle{inner: inner, cache: cache, cacheTotal: cacheTotal, logger: logger}, nil
}

// Exact returns a cached verdict or asks the inner oracle.
func (c *CachedOracle) Exact(ctx context.Context, target, candidate record.Structure, options string) (bool, error) {
	return c.verdict(ctx, checkExact, target, candidate, options, c.inner.Exact)
}

// Substructure returns a cached verdict or asks the inner oracle.
func (c *CachedOracle) Substructure(ctx context.Context, q, candidate record.Structure, options string) (bool, error) {
	return c.verdict(ctx, checkSubstructure, q, candidate, options, c.inner.Substructure)
}

// Len returns the number of cached verdicts.
func (c *CachedOracle) Len() int { return c.cache.Len() }

// Purge drops every cached verdict.
func (c *CachedOracle) Purge() { c.cache.Purge() }

func (c *CachedOracle) verdict(
	ctx context.Context,
	check string,
	a, b record.Structure,
	options string,
	call func(context.Context, record.Structure, record.Structure, string) (bool, error),
) (bool, error) {
	key := cacheKey(check, a, b, options)
	if v, ok := c.cache.Get(key); ok {
		c.incCache("hit")
		return v, nil
	}
	c.incCache("miss")

	v, err := call(ctx, a, b, options)
	if err != nil {
		return false, err
	}
	c.cache.Add(key, v)
	c.logger.Debug("Verdict cached", zap.String("check", check), zap.Bool("match", v))
	return v, nil
}

func (c *CachedOracle) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey hashes every input of a check. Lengths are written before
// variable parts so that concatenations cannot collide.
func cacheKey(check string, a, b record.Structure, options string) string {
	h := sha256.New()
	for _, part := range [][]byte{
		[]byte(check), []byte(options),
		[]byte(a.Kind), a.Payload,
		[]byte(b.Kind), b.Payload,
	} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
