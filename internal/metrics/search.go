package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chemdex"

// Search Prometheus metrics.
var (
	CompileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compile_total",
			Help:      "Compiled queries by variant and outcome",
		},
		[]string{"kind", "status"}, // status: "ok" / "error"
	)

	BackendPageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_page_duration_seconds",
			Help:      "Duration of one screening page fetch",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind"},
	)

	CandidatesScreenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_screened_total",
			Help:      "Candidates returned by the backend screen",
		},
		[]string{"kind"},
	)

	CandidatesVerifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_verified_total",
			Help:      "Candidates after verification by outcome",
		},
		[]string{"kind", "result"}, // result: "match" / "reject" / "error"
	)

	CorruptRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrupt_records_total",
			Help:      "Stored records skipped during screening because they failed to decode",
		},
		[]string{"collection"},
	)

	OracleCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_call_duration_seconds",
			Help:      "Structure engine call duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"check"},
	)

	OracleErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_errors_total",
			Help:      "Structure engine failures treated as non-matches",
		},
		[]string{"check"},
	)

	VerdictCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdict_cache_total",
			Help:      "Oracle verdict cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

// RegisterSearchMetrics registers Prometheus search metrics with the default
// registry. Must be called once from main; repeated calls are no-ops.
func RegisterSearchMetrics() {
	if err := RegisterSearchMetricsWith(prometheus.DefaultRegisterer); err != nil {
		panic(err)
	}
}

// RegisterSearchMetricsWith registers the search metrics with reg.
// Collectors that are already registered are left in place.
func RegisterSearchMetricsWith(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		CompileTotal, BackendPageDuration, CandidatesScreenedTotal, CandidatesVerifiedTotal,
		CorruptRecordsTotal, OracleCallDuration, OracleErrorsTotal, VerdictCacheTotal,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register metric: %w", err)
		}
	}
	return nil
}
