package field

import (
	"fmt"
	"regexp"

	"github.com/kailas-cloud/chemdex/internal/domain/record"
)

// Type is the indexing type of a property field.
type Type string

// Field type constants.
const (
	// Tag is an exact-match field (Keyword on a tag matches the whole value).
	Tag Type = "tag"
	// Numeric is a range-queryable field.
	Numeric Type = "numeric"
	// Text is a tokenized field for Keyword and Wildcard queries.
	Text Type = "text"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Field is an immutable value object describing an indexed record property.
type Field struct {
	name      string
	fieldType Type
}

// New validates and creates a Field.
// Name must match ^[a-zA-Z][a-zA-Z0-9_]*$, max 64 chars, and not shadow a record field.
func New(name string, ft Type) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if len(name) > 64 {
		return Field{}, fmt.Errorf("field name %q too long (max 64)", name)
	}
	if record.IsReservedField(name) {
		return Field{}, fmt.Errorf("field name %q is reserved", name)
	}
	if !nameRegex.MatchString(name) {
		return Field{}, fmt.Errorf("field name %q contains invalid characters", name)
	}
	if ft != Tag && ft != Numeric && ft != Text {
		return Field{}, fmt.Errorf("invalid field type %q for %q", ft, name)
	}
	return Field{name: name, fieldType: ft}, nil
}

// Reconstruct creates a Field without validation (storage hydration).
func Reconstruct(name string, ft Type) Field {
	return Field{name: name, fieldType: ft}
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// FieldType returns the field's indexing type.
func (f Field) FieldType() Type { return f.fieldType }
