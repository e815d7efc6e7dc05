package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chemdex"
	"github.com/kailas-cloud/chemdex/internal/config"
	logpkg "github.com/kailas-cloud/chemdex/internal/logger"
	"github.com/kailas-cloud/chemdex/internal/metrics"
	chiTransport "github.com/kailas-cloud/chemdex/internal/transport/chi"
	"github.com/kailas-cloud/chemdex/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting chemdex ops server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend", cfg.Backend.Driver),
		zap.Strings("backend_addrs", cfg.Backend.Addrs),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterSearchMetrics()
	if err := metrics.RegisterOpsMetrics(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("Failed to register ops metrics", zap.Error(err))
	}

	ctx := context.Background()
	client, err := chemdex.Open(ctx, clientOptions(cfg, logger)...)
	if err != nil {
		logger.Fatal("Failed to open chemdex", zap.Error(err))
	}
	defer client.Close()
	logger.Info("Connected to backend")

	if err := ensureCollections(ctx, client, cfg.Search); err != nil {
		logger.Fatal("Failed to provision default collections", zap.Error(err))
	}

	server := chiTransport.NewServer(client, prometheus.DefaultGatherer, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// clientOptions maps the file configuration onto client options.
// Metrics are registered by main, so WithMetrics is not passed.
func clientOptions(cfg config.Config, logger *zap.Logger) []chemdex.Option {
	opts := []chemdex.Option{
		chemdex.WithReadinessTimeout(time.Duration(cfg.Backend.ReadinessTimeout) * time.Second),
		chemdex.WithKeyPrefix(cfg.Backend.KeyPrefix),
		chemdex.WithPageSize(cfg.Search.PageSize),
		chemdex.WithVerifyWorkers(cfg.Search.VerifyWorkers),
		chemdex.WithDefaultSimilarityLimit(cfg.Search.DefaultSimilarityLimit),
		chemdex.WithDefaultCollections(cfg.Search.MoleculeCollection, cfg.Search.ReactionCollection),
		chemdex.WithVerdictCache(cfg.Oracle.CacheSize),
		chemdex.WithOracleRateLimit(cfg.Oracle.MaxCallsPerSec, cfg.Oracle.Burst),
		chemdex.WithLogger(logger),
	}
	switch cfg.Backend.Driver {
	case config.DriverBleve:
		opts = append(opts, chemdex.WithBleve())
	default:
		opts = append(opts, chemdex.WithRedis(cfg.Backend.Password, cfg.Backend.Addrs...))
	}
	return opts
}

// collectionEnsurer is the part of the client ensureCollections needs.
type collectionEnsurer interface {
	EnsureCollection(ctx context.Context, name string, kind chemdex.Kind, fields ...chemdex.Field) (chemdex.Collection, error)
}

// ensureCollections provisions the default molecule and reaction collections.
func ensureCollections(ctx context.Context, c collectionEnsurer, sc config.SearchConfig) error {
	defaults := []struct {
		name string
		kind chemdex.Kind
	}{
		{sc.MoleculeCollection, chemdex.Molecule},
		{sc.ReactionCollection, chemdex.Reaction},
	}
	for _, d := range defaults {
		if _, err := c.EnsureCollection(ctx, d.name, d.kind); err != nil {
			return fmt.Errorf("ensure %s: %w", d.name, err)
		}
	}
	return nil
}
