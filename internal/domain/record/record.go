// Package record defines the indexed unit that structure searches screen and verify.
package record

import (
	"fmt"
	"maps"
	"regexp"

	"github.com/kailas-cloud/chemdex/internal/domain/fingerprint"
)

// Index field names shared by the compiler and every backend.
const (
	FieldPayload           = "payload"
	FieldKind              = "kind"
	FieldHash              = "hash"
	FieldSubFingerprint    = "sub_fingerprint"
	FieldSimFingerprint    = "sim_fingerprint"
	FieldSimFingerprintLen = "sim_fingerprint_len"
	FieldHasError          = "has_error"
)

// MaxPayloadSize bounds the opaque structure payload (molfile, rxnfile, SMILES...).
const MaxPayloadSize = 4 << 20

var (
	idRegex        = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)
	propertyRegex  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
	reservedFields = map[string]bool{
		FieldPayload:           true,
		FieldKind:              true,
		FieldHash:              true,
		FieldSubFingerprint:    true,
		FieldSimFingerprint:    true,
		FieldSimFingerprintLen: true,
		FieldHasError:          true,
	}
)

// IsReservedField reports whether name is owned by the record layout.
func IsReservedField(name string) bool { return reservedFields[name] }

// Kind distinguishes molecule and reaction records.
type Kind string

const (
	// Molecule is a single structure.
	Molecule Kind = "molecule"
	// Reaction is a reaction scheme.
	Reaction Kind = "reaction"
)

// IsValid checks if the kind is supported.
func (k Kind) IsValid() bool { return k == Molecule || k == Reaction }

// Structure is the opaque payload handed to the oracle.
type Structure struct {
	Kind    Kind
	Payload []byte
}

// Fingerprints groups the precomputed screening data of a structure.
type Fingerprints struct {
	ExactHash    fingerprint.Set
	Substructure fingerprint.Set
	Similarity   fingerprint.Set
	// HasError marks structures whose fingerprints could not be computed safely.
	HasError bool
}

// Record is an indexed structure (immutable value object).
type Record struct {
	id         string
	structure  Structure
	fps        Fingerprints
	simLen     int
	properties map[string]string
}

// New validates and creates a Record.
// ID: ^[a-zA-Z0-9_.:-]+$, 1-256 chars. Properties must not shadow index fields.
func New(id string, s Structure, fps Fingerprints, properties map[string]string) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("record ID is required")
	}
	if len(id) > 256 {
		return Record{}, fmt.Errorf("record ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Record{}, fmt.Errorf("record ID %q contains invalid characters", id)
	}
	r, err := NewTarget(s, fps)
	if err != nil {
		return Record{}, err
	}
	for name := range properties {
		if !propertyRegex.MatchString(name) {
			return Record{}, fmt.Errorf("invalid property name %q", name)
		}
		if reservedFields[name] {
			return Record{}, fmt.Errorf("property name %q is reserved", name)
		}
	}
	r.id = id
	r.properties = maps.Clone(properties)
	return r, nil
}

// NewTarget creates an anonymous Record used as a query target.
func NewTarget(s Structure, fps Fingerprints) (Record, error) {
	if s.Kind == "" {
		s.Kind = Molecule
	}
	if !s.Kind.IsValid() {
		return Record{}, fmt.Errorf("invalid record kind: %q", s.Kind)
	}
	if len(s.Payload) > MaxPayloadSize {
		return Record{}, fmt.Errorf("payload too large (max %d bytes)", MaxPayloadSize)
	}
	return Record{
		structure: s,
		fps:       fps,
		simLen:    fps.Similarity.Len(),
	}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
// simLen is the persisted similarity cardinality, which may differ from the
// decoded fingerprint when the stored set was truncated.
func Reconstruct(
	id string, s Structure, fps Fingerprints, simLen int, properties map[string]string,
) Record {
	return Record{id: id, structure: s, fps: fps, simLen: simLen, properties: properties}
}

// ID returns the record identifier (empty for query targets).
func (r *Record) ID() string { return r.id }

// Kind returns the structure kind.
func (r *Record) Kind() Kind { return r.structure.Kind }

// Structure returns the opaque payload for verification.
func (r *Record) Structure() Structure { return r.structure }

// ExactHash returns the canonical-structure hash bits.
func (r *Record) ExactHash() fingerprint.Set { return r.fps.ExactHash }

// SubFingerprint returns the substructure screening fingerprint.
func (r *Record) SubFingerprint() fingerprint.Set { return r.fps.Substructure }

// SimFingerprint returns the similarity fingerprint.
func (r *Record) SimFingerprint() fingerprint.Set { return r.fps.Similarity }

// SimFingerprintLen returns the persisted similarity fingerprint cardinality.
func (r *Record) SimFingerprintLen() int { return r.simLen }

// HasError reports whether the record must be excluded from term screening.
func (r *Record) HasError() bool { return r.fps.HasError }

// Properties returns the free-form fields targeted by field queries.
func (r *Record) Properties() map[string]string { return r.properties }

// Match is a search hit: a record with the score the backend assigned it.
type Match struct {
	Record Record
	Score  float64
}
