package collection

import (
	"fmt"

	"github.com/kailas-cloud/chemdex/internal/db"
	"github.com/kailas-cloud/chemdex/internal/domain/collection/field"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
)

// fingerprintSeparator joins fingerprint bits in record hashes.
const fingerprintSeparator = ","

// buildIndex creates the index over a collection's record hashes:
// fingerprint bits as case-sensitive TAGs, screening numbers as NUMERIC,
// then one field per declared property.
func buildIndex(name, prefix string, fields []field.Field) (*db.IndexDefinition, error) {
	b := db.NewIndex(name).
		Prefix(prefix).
		Tag(record.FieldKind).
		TagWithOpts(record.FieldHash, fingerprintSeparator, true).
		TagWithOpts(record.FieldSubFingerprint, fingerprintSeparator, true).
		TagWithOpts(record.FieldSimFingerprint, fingerprintSeparator, true).
		Numeric(record.FieldSimFingerprintLen).
		Numeric(record.FieldHasError)

	for _, f := range fields {
		switch f.FieldType() {
		case field.Tag:
			b.Tag(f.Name())
		case field.Numeric:
			b.Numeric(f.Name())
		case field.Text:
			b.Text(f.Name())
		default:
			return nil, fmt.Errorf("unknown field type: %s", f.FieldType())
		}
	}
	return b.Build()
}
