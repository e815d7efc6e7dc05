// Package collection defines a named set of records of one kind and the
// property fields its index exposes to Keyword, Range and Wildcard queries.
package collection

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kailas-cloud/chemdex/internal/domain/collection/field"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Collection is the record collection aggregate (immutable value object).
type Collection struct {
	name      string
	kind      record.Kind
	fields    []field.Field
	createdAt int64
	revision  int
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("collection name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("collection name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

func validateFields(fields []field.Field) error {
	if len(fields) > 64 {
		return fmt.Errorf("too many fields (max 64)")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name()] {
			return fmt.Errorf("duplicate field name: %s", f.Name())
		}
		seen[f.Name()] = true
	}
	return nil
}

// New validates and creates a Collection. An empty kind means molecule.
// Name: ^[a-zA-Z0-9_-]+$, 1-64 chars. Fields: unique names, max 64.
func New(name string, kind record.Kind, fields []field.Field) (Collection, error) {
	if kind == "" {
		kind = record.Molecule
	}
	if !kind.IsValid() {
		return Collection{}, fmt.Errorf("invalid collection kind: %q", kind)
	}
	if err := validateName(name); err != nil {
		return Collection{}, err
	}
	if err := validateFields(fields); err != nil {
		return Collection{}, err
	}

	return Collection{
		name:      name,
		kind:      kind,
		fields:    fields,
		createdAt: time.Now().UnixMilli(),
		revision:  1,
	}, nil
}

// Reconstruct creates a Collection without validation (storage hydration).
func Reconstruct(name string, kind record.Kind, fields []field.Field, createdAt int64, revision int) Collection {
	if kind == "" {
		kind = record.Molecule
	}
	return Collection{
		name:      name,
		kind:      kind,
		fields:    fields,
		createdAt: createdAt,
		revision:  revision,
	}
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// Kind returns the kind of records the collection holds.
func (c Collection) Kind() record.Kind { return c.kind }

// Fields returns the indexed property fields.
func (c Collection) Fields() []field.Field { return c.fields }

// CreatedAt returns the creation timestamp (unix millis).
func (c Collection) CreatedAt() int64 { return c.createdAt }

// Revision returns the optimistic concurrency version.
func (c Collection) Revision() int { return c.revision }

// HasField checks if a field with the given name and type exists.
func (c Collection) HasField(name string, ft field.Type) bool {
	for _, f := range c.fields {
		if f.Name() == name && f.FieldType() == ft {
			return true
		}
	}
	return false
}

// FieldByName looks up a field by name.
func (c Collection) FieldByName(name string) (field.Field, bool) {
	for _, f := range c.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}
