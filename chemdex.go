// Package chemdex is a fingerprint-screened chemical structure search library.
//
// A search compiles exact, substructure, similarity and field queries into a
// boolean screening document, pages candidates out of a Redis or in-process
// bleve index, scores similarity candidates from fingerprint cardinalities and
// verifies structural candidates through a caller-supplied Oracle.
package chemdex

import (
	"github.com/kailas-cloud/chemdex/internal/domain"
	domcol "github.com/kailas-cloud/chemdex/internal/domain/collection"
	"github.com/kailas-cloud/chemdex/internal/domain/collection/field"
	"github.com/kailas-cloud/chemdex/internal/domain/fingerprint"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
	"github.com/kailas-cloud/chemdex/internal/domain/search/compiler"
	"github.com/kailas-cloud/chemdex/internal/domain/search/metric"
	"github.com/kailas-cloud/chemdex/internal/domain/search/query"
	healthuc "github.com/kailas-cloud/chemdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/chemdex/internal/usecase/search"
)

// Domain types.
type (
	// FingerprintSet is a set of "on" fingerprint bit positions.
	FingerprintSet = fingerprint.Set
	// Kind is the record kind: molecule or reaction.
	Kind = record.Kind
	// Structure is the opaque payload handed to the Oracle.
	Structure = record.Structure
	// Fingerprints groups the precomputed screening data of a structure.
	Fingerprints = record.Fingerprints
	// Record is an indexed structure.
	Record = record.Record
	// Match is a verified hit with its score.
	Match = record.Match
	// Collection is a named set of records with one search index.
	Collection = domcol.Collection
	// Field is a declared record property.
	Field = field.Field
	// FieldType is the index type of a Field.
	FieldType = field.Type
	// Query is one search variant: exact, substructure, similarity or a field filter.
	Query = query.Query
	// Metric is a similarity metric with its parameters.
	Metric = metric.Params
	// Compiled is a compiled search: screening document plus verification steps.
	Compiled = compiler.Result
	// Stream is a pull-based cursor over verified matches.
	Stream = searchuc.Stream
	// Oracle is the authoritative structure comparison capability.
	Oracle = domain.Oracle
	// Fingerprinter computes screening data for a structure.
	Fingerprinter = domain.Fingerprinter
	// HealthReport aggregates backend and oracle health.
	HealthReport = healthuc.Report
)

// Record kinds.
const (
	Molecule = record.Molecule
	Reaction = record.Reaction
)

// Field types.
const (
	TagField     = field.Tag
	NumericField = field.Numeric
	TextField    = field.Text
)

// Errors.
var (
	ErrNotFound      = domain.ErrNotFound
	ErrAlreadyExists = domain.ErrAlreadyExists
	ErrInvalidSchema = domain.ErrInvalidSchema
	ErrCompilation   = domain.ErrCompilation
	ErrConfiguration = domain.ErrConfiguration
	ErrOracle        = domain.ErrOracle
	ErrBackend       = domain.ErrBackend
	ErrClosedHandle  = domain.ErrClosedHandle
)

// Constructors.
var (
	// NewFingerprintSet creates a set from bit positions.
	NewFingerprintSet = fingerprint.New
	// NewRecord validates and creates a Record.
	NewRecord = record.New
	// NewField validates and creates a Field.
	NewField = field.New
	// Tanimoto is the Tanimoto similarity metric.
	Tanimoto = metric.NewTanimoto
	// Euclid scores the fraction of query bits present in the candidate.
	Euclid = metric.NewEuclid
	// Tversky is the Tversky metric with query weight alpha and candidate weight beta.
	Tversky = metric.NewTversky
	// ParseMetric resolves a metric by name ("tanimoto", "tversky", "euclid").
	ParseMetric = metric.Parse
	// Exact matches structures equal to the target.
	Exact = query.NewExact
	// Substructure matches structures containing the target.
	Substructure = query.NewSubstructure
	// Similarity matches structures scoring at least the threshold.
	Similarity = query.NewSimilarity
	// Keyword matches a text or tag property.
	Keyword = query.NewKeyword
	// Range matches a numeric property within optional inclusive bounds.
	Range = query.NewRange
	// Wildcard matches a property against a '*'/'?' pattern.
	Wildcard = query.NewWildcard
	// Each drains a stream into fn and always closes it.
	Each = searchuc.Each
)
