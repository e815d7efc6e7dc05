package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy: every configured component answered.
	Healthy Status = "ok"
	// Degraded: the backend answers but the structure engine does not.
	// Field and similarity searches still work, since neither calls the
	// oracle; exact and substructure searches fail with ErrOracle.
	Degraded Status = "degraded"
	// Unhealthy: the backend is down, so no search can run.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Check names.
const (
	CheckBackend = "backend"
	CheckOracle  = "oracle"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	backend BackendPinger
	oracle  OracleChecker
}

// New creates a Service. oracle is nil when no structure engine is
// configured; the report then carries no oracle check at all.
func New(backend BackendPinger, oracle OracleChecker) *Service {
	return &Service{backend: backend, oracle: oracle}
}

// Check probes the backend and, when configured, the oracle.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{CheckBackend: result(s.backend.Ping(ctx))}
	if s.oracle != nil {
		checks[CheckOracle] = result(s.oracle.HealthCheck(ctx))
	}

	status := Healthy
	switch {
	case checks[CheckBackend] == CheckError:
		status = Unhealthy
	case checks[CheckOracle] == CheckError:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
