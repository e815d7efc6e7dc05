package health

import "context"

// BackendPinger checks search backend availability.
type BackendPinger interface {
	Ping(ctx context.Context) error
}

// OracleChecker checks structure engine availability.
type OracleChecker interface {
	HealthCheck(ctx context.Context) error
}
