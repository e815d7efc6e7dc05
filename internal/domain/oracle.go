package domain

import (
	"context"

	"github.com/kailas-cloud/chemdex/internal/domain/record"
)

// Oracle is the authoritative structure comparison contract between layers.
// Options are opaque match flags owned by the structure engine.
type Oracle interface {
	// Exact reports whether candidate is structurally equal to target.
	Exact(ctx context.Context, target, candidate record.Structure, options string) (bool, error)
	// Substructure reports whether query is contained in candidate.
	Substructure(ctx context.Context, query, candidate record.Structure, options string) (bool, error)
}

// Fingerprinter computes screening data for a structure (optional engine capability).
type Fingerprinter interface {
	Fingerprint(ctx context.Context, s record.Structure) (record.Fingerprints, error)
}

// HealthChecker verifies structure engine availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
