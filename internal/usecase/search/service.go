package search

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chemdex/internal/domain"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
	"github.com/kailas-cloud/chemdex/internal/domain/search/compiler"
	"github.com/kailas-cloud/chemdex/internal/domain/search/postprocess"
	"github.com/kailas-cloud/chemdex/internal/domain/search/query"
	"github.com/kailas-cloud/chemdex/internal/metrics"
)

// DefaultSimilarityLimit caps similarity results when the caller sets none.
const DefaultSimilarityLimit = 10

// Options tune a single search.
type Options struct {
	// Limit caps verified matches across all collections (0 = default).
	Limit int
}

// Service compiles structure searches and streams verified matches.
type Service struct {
	backend         Backend
	oracle          domain.Oracle
	logger          *zap.Logger
	workers         int
	similarityLimit int
}

// Option configures the Service.
type Option func(*Service)

// WithVerifyWorkers bounds concurrent oracle calls per page.
func WithVerifyWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithDefaultSimilarityLimit sets the similarity result cap used when Options.Limit is 0.
func WithDefaultSimilarityLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.similarityLimit = n
		}
	}
}

// New creates a search service.
func New(backend Backend, oracle domain.Oracle, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		backend:         backend,
		oracle:          oracle,
		logger:          logger,
		workers:         DefaultVerifyWorkers,
		similarityLimit: DefaultSimilarityLimit,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Compile compiles queries without touching the backend.
func (s *Service) Compile(qs ...query.Query) (compiler.Result, error) {
	res, err := compiler.CompileAll(qs...)
	kind := "unknown"
	if len(qs) > 0 && qs[0] != nil {
		kind = string(qs[0].Kind())
	}
	if err != nil {
		metrics.CompileTotal.WithLabelValues(kind, "error").Inc()
		return compiler.Result{}, fmt.Errorf("compile: %w", err)
	}
	metrics.CompileTotal.WithLabelValues(string(res.Kind), "ok").Inc()
	return res, nil
}

// Search compiles the queries and returns a stream over the given collections
// in order. Compilation errors are returned before any backend call.
func (s *Service) Search(
	ctx context.Context, collections []string, opts Options, qs ...query.Query,
) (*Stream, error) {
	if len(collections) == 0 {
		return nil, domain.NewConfigurationError("collections", collections, "at least one collection is required")
	}
	res, err := s.Compile(qs...)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 && res.Kind == query.KindSimilarity {
		limit = s.similarityLimit
	}
	// Verified searches page through every candidate; the stream enforces the limit.
	if len(res.Steps) == 0 && limit > 0 {
		res.Document.Size = limit
	}

	log := s.logger.With(
		zap.String("search_id", uuid.NewString()),
		zap.String("kind", string(res.Kind)),
	)
	log.Debug("Search compiled",
		zap.Strings("collections", collections),
		zap.Int("must", len(res.Document.Must)),
		zap.Int("should", len(res.Document.Should)),
		zap.Int("steps", len(res.Steps)),
		zap.Int("limit", limit),
	)

	doc := res.Document
	sources := make([]source, len(collections))
	for i, name := range collections {
		sources[i] = source{
			collection: name,
			open: func(ctx context.Context) (Cursor, error) {
				return s.backend.Open(ctx, name, doc)
			},
		}
	}

	st := newStream(s.verifier(res.Steps, res.Kind, log), sources, limit, log)
	if err := st.start(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// Verify streams the candidates that pass every step, in input order.
func (s *Service) Verify(steps []postprocess.Step, candidates []record.Match) *Stream {
	log := s.logger.With(zap.String("search_id", uuid.NewString()))
	src := source{
		collection: "candidates",
		open: func(context.Context) (Cursor, error) {
			return &sliceCursor{matches: candidates}, nil
		},
	}
	return newStream(s.verifier(steps, "verify", log), []source{src}, 0, log)
}

func (s *Service) verifier(steps []postprocess.Step, kind query.Kind, log *zap.Logger) *verifier {
	return &verifier{
		oracle:  s.oracle,
		steps:   steps,
		workers: s.workers,
		kind:    string(kind),
		logger:  log,
	}
}
