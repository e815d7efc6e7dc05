// Package chi serves the chemdex ops endpoints: health, metrics, collection
// descriptors and verdict cache control.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chemdex/internal/domain"
	domcol "github.com/kailas-cloud/chemdex/internal/domain/collection"
	"github.com/kailas-cloud/chemdex/internal/metrics"
	healthuc "github.com/kailas-cloud/chemdex/internal/usecase/health"
	"github.com/kailas-cloud/chemdex/internal/version"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest    = "bad_request"
	CodeUnauthorized  = "unauthorized"
	CodeNotFound      = "collection_not_found"
	CodeUnavailable   = "backend_unavailable"
	CodeInternalError = "internal_error"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the JSON body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version"`
}

// FieldResponse describes a declared record property.
type FieldResponse struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// CollectionResponse is the JSON body of GET /collections/{name}.
type CollectionResponse struct {
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	Fields    []FieldResponse `json:"fields"`
	CreatedAt int64           `json:"created_at"`
	Revision  int             `json:"revision"`
}

// Engine is the part of the chemdex client the ops server exposes.
type Engine interface {
	Health(ctx context.Context) healthuc.Report
	GetCollection(ctx context.Context, name string) (domcol.Collection, error)
	PurgeVerdicts()
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server handles the ops routes.
type Server struct {
	engine        Engine
	gatherer      prometheus.Gatherer
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an ops server. A nil gatherer serves the default registry.
func NewServer(engine Engine, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:   engine,
		gatherer: gatherer,
		logger:   logger,
		errorHandlers: []errorHandler{
			sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
			sentinelHandler(domain.ErrConfiguration, http.StatusBadRequest, CodeBadRequest),
			sentinelHandler(domain.ErrBackend, http.StatusServiceUnavailable, CodeUnavailable),
		},
	}
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/collections/{name}", s.GetCollection)
	r.Post("/verdicts/purge", s.PurgeVerdicts)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.engine.Health(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	// Degraded still serves field and similarity searches.
	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: version.String(),
	})
}

// GetCollection handles GET /collections/{name}.
func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	col, err := s.engine.GetCollection(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collectionToResponse(col))
}

// PurgeVerdicts handles POST /verdicts/purge.
func (s *Server) PurgeVerdicts(w http.ResponseWriter, _ *http.Request) {
	s.engine.PurgeVerdicts()
	s.logger.Info("Verdict cache purged")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func collectionToResponse(c domcol.Collection) CollectionResponse {
	fields := make([]FieldResponse, len(c.Fields()))
	for i, f := range c.Fields() {
		fields[i] = FieldResponse{Name: f.Name(), Type: string(f.FieldType())}
	}
	return CollectionResponse{
		Name:      c.Name(),
		Kind:      string(c.Kind()),
		Fields:    fields,
		CreatedAt: c.CreatedAt(),
		Revision:  c.Revision(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
