package record

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/chemdex/internal/domain/fingerprint"
	domrec "github.com/kailas-cloud/chemdex/internal/domain/record"
)

// ToHash converts a record into a flat map for HSET. Empty fingerprints
// are left out so TAG fields never hold an empty value.
func ToHash(r *domrec.Record) map[string]string {
	props := r.Properties()
	m := make(map[string]string, 7+len(props))
	for k, v := range props {
		m[k] = v
	}
	m[domrec.FieldPayload] = string(r.Structure().Payload)
	m[domrec.FieldKind] = string(r.Kind())
	putSet(m, domrec.FieldHash, r.ExactHash())
	putSet(m, domrec.FieldSubFingerprint, r.SubFingerprint())
	putSet(m, domrec.FieldSimFingerprint, r.SimFingerprint())
	m[domrec.FieldSimFingerprintLen] = strconv.Itoa(r.SimFingerprintLen())
	m[domrec.FieldHasError] = "0"
	if r.HasError() {
		m[domrec.FieldHasError] = "1"
	}
	return m
}

func putSet(m map[string]string, field string, s fingerprint.Set) {
	if !s.IsEmpty() {
		m[field] = s.String()
	}
}

// FromHash hydrates a record from an HGETALL or search result map.
// Every non-reserved field is a property.
func FromHash(id string, m map[string]string) (domrec.Record, error) {
	var (
		fps    domrec.Fingerprints
		err    error
		simLen int
		props  = make(map[string]string)
	)
	s := domrec.Structure{Kind: domrec.Kind(m[domrec.FieldKind]), Payload: []byte(m[domrec.FieldPayload])}
	if s.Kind == "" {
		s.Kind = domrec.Molecule
	}

	if fps.ExactHash, err = fingerprint.Parse(m[domrec.FieldHash]); err != nil {
		return domrec.Record{}, fmt.Errorf("record %s: %w", id, err)
	}
	if fps.Substructure, err = fingerprint.Parse(m[domrec.FieldSubFingerprint]); err != nil {
		return domrec.Record{}, fmt.Errorf("record %s: %w", id, err)
	}
	if fps.Similarity, err = fingerprint.Parse(m[domrec.FieldSimFingerprint]); err != nil {
		return domrec.Record{}, fmt.Errorf("record %s: %w", id, err)
	}

	simLen = fps.Similarity.Len()
	if v, ok := m[domrec.FieldSimFingerprintLen]; ok && v != "" {
		if simLen, err = strconv.Atoi(v); err != nil {
			return domrec.Record{}, fmt.Errorf("record %s: invalid %s: %w", id, domrec.FieldSimFingerprintLen, err)
		}
	}
	fps.HasError = m[domrec.FieldHasError] == "1"

	for k, v := range m {
		if !domrec.IsReservedField(k) {
			props[k] = v
		}
	}
	return domrec.Reconstruct(id, s, fps, simLen, props), nil
}
