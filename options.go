package chemdex

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chemdex/internal/domain"
	searchrepo "github.com/kailas-cloud/chemdex/internal/repository/search"
	"github.com/kailas-cloud/chemdex/internal/repository/verdictcache"
	searchuc "github.com/kailas-cloud/chemdex/internal/usecase/search"
)

// Backend drivers.
const (
	DriverRedis = "redis"
	DriverBleve = "bleve"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver           string
	addrs            []string
	password         string
	readinessTimeout time.Duration
	keyPrefix        string

	oracle         Oracle
	fingerprinter  Fingerprinter
	cacheSize      int
	maxCallsPerSec float64
	burst          int

	pageSize        int
	verifyWorkers   int
	similarityLimit int
	molCollection   string
	rxnCollection   string

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		readinessTimeout: 10 * time.Second,
		keyPrefix:        domain.KeyPrefix,
		cacheSize:        verdictcache.DefaultSize,
		burst:            1,
		pageSize:         searchrepo.DefaultPageSize,
		verifyWorkers:    searchuc.DefaultVerifyWorkers,
		similarityLimit:  searchuc.DefaultSimilarityLimit,
		molCollection:    "molecules",
		rxnCollection:    "reactions",
	}
}

// WithRedis stores collections in Redis 8+ (or Redis Stack) with the query engine.
func WithRedis(password string, addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = DriverRedis
		c.addrs = addrs
		c.password = password
	})
}

// WithBleve stores collections in an in-process bleve index. Nothing is persisted.
func WithBleve() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = DriverBleve
	})
}

// WithReadinessTimeout bounds the wait for the backend on Open.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		if d > 0 {
			c.readinessTimeout = d
		}
	})
}

// WithKeyPrefix namespaces every key and index name. Defaults to "chemdex:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		if prefix != "" {
			c.keyPrefix = prefix
		}
	})
}

// WithOracle sets the structure engine used to verify exact and
// substructure candidates. Without it only similarity and field searches work.
func WithOracle(o Oracle) Option {
	return optionFunc(func(c *clientConfig) {
		c.oracle = o
	})
}

// WithFingerprinter lets the client compute fingerprints of records and
// query targets that come without them.
func WithFingerprinter(f Fingerprinter) Option {
	return optionFunc(func(c *clientConfig) {
		c.fingerprinter = f
	})
}

// WithVerdictCache sets how many oracle verdicts are kept in memory.
// Zero or a negative size disables the cache.
func WithVerdictCache(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheSize = size
	})
}

// WithOracleRateLimit caps oracle calls per second. Zero means unlimited.
func WithOracleRateLimit(perSec float64, burst int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxCallsPerSec = perSec
		c.burst = burst
	})
}

// WithPageSize sets the number of candidates fetched per backend round-trip.
func WithPageSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		if n > 0 {
			c.pageSize = n
		}
	})
}

// WithVerifyWorkers bounds concurrent oracle calls per page.
func WithVerifyWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		if n > 0 {
			c.verifyWorkers = n
		}
	})
}

// WithDefaultSimilarityLimit caps similarity results when a search sets no limit.
func WithDefaultSimilarityLimit(n int) Option {
	return optionFunc(func(c *clientConfig) {
		if n > 0 {
			c.similarityLimit = n
		}
	})
}

// WithDefaultCollections names the collections searched when a search
// names none: one for molecule targets, one for reaction targets.
func WithDefaultCollections(molecules, reactions string) Option {
	return optionFunc(func(c *clientConfig) {
		if molecules != "" {
			c.molCollection = molecules
		}
		if reactions != "" {
			c.rxnCollection = reactions
		}
	})
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithMetrics registers the search metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
