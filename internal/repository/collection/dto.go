package collection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/chemdex/internal/domain/collection"
	"github.com/kailas-cloud/chemdex/internal/domain/collection/field"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
)

// Metadata hash fields.
const (
	metaName      = "name"
	metaKind      = "kind"
	metaFields    = "fields"
	metaCreatedAt = "created_at"
	metaRevision  = "revision"
)

// encodeFields renders property fields as "name:type" pairs joined by commas.
// Field names are identifiers, so neither separator can occur inside one.
func encodeFields(fields []field.Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name() + ":" + string(f.FieldType())
	}
	return strings.Join(parts, ",")
}

func decodeFields(s string) ([]field.Field, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	fields := make([]field.Field, 0, len(parts))
	for _, p := range parts {
		name, typ, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("malformed field %q", p)
		}
		f, err := field.New(name, field.Type(typ))
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func collectionToHash(col collection.Collection) map[string]string {
	return map[string]string{
		metaName:      col.Name(),
		metaKind:      string(col.Kind()),
		metaFields:    encodeFields(col.Fields()),
		metaCreatedAt: strconv.FormatInt(col.CreatedAt(), 10),
		metaRevision:  strconv.Itoa(col.Revision()),
	}
}

// collectionFromHash hydrates a collection from its metadata hash. Every
// field is checked: a collection whose index schema cannot be trusted is
// reported as corrupt rather than half-loaded.
func collectionFromHash(m map[string]string) (collection.Collection, error) {
	createdAt, err := strconv.ParseInt(m[metaCreatedAt], 10, 64)
	if err != nil {
		return collection.Collection{}, fmt.Errorf("invalid %s: %w", metaCreatedAt, err)
	}
	kind := record.Kind(m[metaKind])
	if !kind.IsValid() {
		return collection.Collection{}, fmt.Errorf("invalid %s %q", metaKind, m[metaKind])
	}
	fields, err := decodeFields(m[metaFields])
	if err != nil {
		return collection.Collection{}, fmt.Errorf("invalid %s: %w", metaFields, err)
	}
	revision := 1
	if s := m[metaRevision]; s != "" {
		if revision, err = strconv.Atoi(s); err != nil {
			return collection.Collection{}, fmt.Errorf("invalid %s: %w", metaRevision, err)
		}
	}
	return collection.Reconstruct(m[metaName], kind, fields, createdAt, revision), nil
}
