package chemdex

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chemdex/internal/db"
	dbBleve "github.com/kailas-cloud/chemdex/internal/db/bleve"
	dbRedis "github.com/kailas-cloud/chemdex/internal/db/redis"
	"github.com/kailas-cloud/chemdex/internal/domain"
	"github.com/kailas-cloud/chemdex/internal/metrics"
	collectionrepo "github.com/kailas-cloud/chemdex/internal/repository/collection"
	"github.com/kailas-cloud/chemdex/internal/repository/keyspace"
	recordrepo "github.com/kailas-cloud/chemdex/internal/repository/record"
	searchrepo "github.com/kailas-cloud/chemdex/internal/repository/search"
	"github.com/kailas-cloud/chemdex/internal/repository/verdictcache"
	collectionuc "github.com/kailas-cloud/chemdex/internal/usecase/collection"
	healthuc "github.com/kailas-cloud/chemdex/internal/usecase/health"
	oracleuc "github.com/kailas-cloud/chemdex/internal/usecase/oracle"
	recorduc "github.com/kailas-cloud/chemdex/internal/usecase/record"
	searchuc "github.com/kailas-cloud/chemdex/internal/usecase/search"
)

// Client is the chemdex entry point. It is safe for concurrent use.
type Client struct {
	store     db.Store
	collSvc   *collectionuc.Service
	recSvc    *recorduc.Service
	searchSvc *searchuc.Service
	healthSvc *healthuc.Service
	cache     *verdictcache.CachedOracle
	cfg       *clientConfig
	logger    *zap.Logger
}

// Open connects to the configured backend and wires the client.
// The context bounds the initial readiness check.
func Open(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, cfg.readinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("chemdex: backend not ready: %w", err)
	}

	c, err := wireClient(store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	cfg.logger.Info("chemdex client ready",
		zap.String("driver", cfg.driver),
		zap.String("key_prefix", cfg.keyPrefix),
		zap.Bool("oracle", cfg.oracle != nil),
	)
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case DriverRedis:
		if len(cfg.addrs) == 0 {
			return nil, errors.New("chemdex: redis address required")
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("chemdex: create redis store: %w", err)
		}
		return s, nil
	case DriverBleve:
		return dbBleve.NewStore(), nil
	case "":
		return nil, errors.New("chemdex: backend required (use WithRedis or WithBleve)")
	default:
		return nil, fmt.Errorf("chemdex: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig) (*Client, error) {
	if cfg.metricsReg != nil {
		if err := metrics.RegisterSearchMetricsWith(cfg.metricsReg); err != nil {
			return nil, fmt.Errorf("chemdex: %w", err)
		}
	}

	keys := keyspace.New(cfg.keyPrefix)
	collRepo := collectionrepo.New(store, keys)
	recRepo := recordrepo.New(store, keys)
	searchRepo := searchrepo.New(store, keys, cfg.pageSize, searchrepo.WithSchemas(collRepo))

	// Chain: cache -> rate limit + metrics -> engine. Cache hits skip the limiter.
	// Keep untyped nils: a nil *CachedOracle in an interface is not a nil Oracle.
	var (
		oracle domain.Oracle
		health healthuc.OracleChecker
		cache  *verdictcache.CachedOracle
	)
	if cfg.oracle != nil {
		instrumented := oracleuc.NewInstrumentedOracle(cfg.oracle, cfg.maxCallsPerSec, cfg.burst, cfg.logger)
		oracle, health = instrumented, instrumented
		if cfg.cacheSize > 0 {
			var err error
			cache, err = verdictcache.New(instrumented, cfg.cacheSize, metrics.VerdictCacheTotal, cfg.logger)
			if err != nil {
				return nil, fmt.Errorf("chemdex: %w", err)
			}
			oracle = cache
		}
	}

	return &Client{
		store:   store,
		collSvc: collectionuc.New(collRepo),
		recSvc:  recorduc.New(recRepo, collRepo, cfg.fingerprinter, cfg.logger),
		searchSvc: searchuc.New(searchRepo, oracle, cfg.logger,
			searchuc.WithVerifyWorkers(cfg.verifyWorkers),
			searchuc.WithDefaultSimilarityLimit(cfg.similarityLimit),
		),
		healthSvc: healthuc.New(store, health),
		cache:     cache,
		cfg:       cfg,
		logger:    cfg.logger,
	}, nil
}

// Close releases the backend connection.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks backend connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Health checks the backend and, when configured, the oracle.
func (c *Client) Health(ctx context.Context) HealthReport {
	return c.healthSvc.Check(ctx)
}

// PurgeVerdicts drops every cached oracle verdict, e.g. after the
// structure engine changed its matching rules.
func (c *Client) PurgeVerdicts() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

// CreateCollection creates a collection and its search index.
// An empty kind means molecules.
func (c *Client) CreateCollection(ctx context.Context, name string, kind Kind, fields ...Field) (Collection, error) {
	col, err := c.collSvc.Create(ctx, name, kind, fields)
	if err != nil {
		return Collection{}, fmt.Errorf("chemdex: %w", err)
	}
	return col, nil
}

// EnsureCollection returns the named collection, creating it when missing.
// An existing collection of another kind is an ErrInvalidSchema error.
func (c *Client) EnsureCollection(ctx context.Context, name string, kind Kind, fields ...Field) (Collection, error) {
	col, created, err := c.collSvc.Ensure(ctx, name, kind, fields)
	if err != nil {
		return Collection{}, fmt.Errorf("chemdex: %w", err)
	}
	if created {
		c.logger.Info("Collection created", zap.String("collection", name), zap.String("kind", string(col.Kind())))
	}
	return col, nil
}

// GetCollection returns a collection by name.
func (c *Client) GetCollection(ctx context.Context, name string) (Collection, error) {
	col, err := c.collSvc.Get(ctx, name)
	if err != nil {
		return Collection{}, fmt.Errorf("chemdex: %w", err)
	}
	return col, nil
}

// DropCollection deletes a collection with its index and records.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	if err := c.collSvc.Delete(ctx, name); err != nil {
		return fmt.Errorf("chemdex: %w", err)
	}
	return nil
}

// Index stores records in a collection, replacing records with the same IDs.
func (c *Client) Index(ctx context.Context, collection string, recs ...Record) error {
	if err := c.recSvc.Index(ctx, collection, recs); err != nil {
		return fmt.Errorf("chemdex: %w", err)
	}
	return nil
}

// Get returns a record by collection and ID.
func (c *Client) Get(ctx context.Context, collection, id string) (Record, error) {
	rec, err := c.recSvc.Get(ctx, collection, id)
	if err != nil {
		return Record{}, fmt.Errorf("chemdex: %w", err)
	}
	return rec, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	if err := c.recSvc.Delete(ctx, collection, id); err != nil {
		return fmt.Errorf("chemdex: %w", err)
	}
	return nil
}

// Target builds a query target. Blank fingerprints are computed when a
// Fingerprinter is configured.
func (c *Client) Target(ctx context.Context, s Structure, fps Fingerprints) (Record, error) {
	t, err := c.recSvc.Target(ctx, s, fps)
	if err != nil {
		return Record{}, fmt.Errorf("chemdex: %w", err)
	}
	return t, nil
}
