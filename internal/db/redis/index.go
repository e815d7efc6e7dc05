package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/chemdex/internal/db"
)

// CreateIndex runs FT.CREATE over hashes for the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}
	if err := s.do(ctx, s.b().Arbitrary("FT.CREATE").Args(args...).Build()).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes an index together with the hashes it covers (DD).
func (s *Store) DropIndex(ctx context.Context, name string) error {
	if err := s.do(ctx, s.b().Arbitrary("FT.DROPINDEX").Args(name, "DD").Build()).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

func buildCreateArgs(def *db.IndexDefinition) ([]string, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	args := []string{def.Name, "ON", "HASH"}
	if len(def.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(def.Prefixes)))
		args = append(args, def.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for i := range def.Fields {
		fieldArgs, err := buildFieldArgs(&def.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}
	return args, nil
}

// buildFieldArgs renders one SCHEMA entry. TEXT fields are not stemmed so
// that keyword matches behave like the bleve backend's standard analyzer.
func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, fmt.Errorf("field name is required")
	}
	switch f.Type {
	case db.IndexFieldNumeric:
		return []string{f.Name, "NUMERIC"}, nil
	case db.IndexFieldText:
		return []string{f.Name, "TEXT", "NOSTEM"}, nil
	case db.IndexFieldTag:
		args := []string{f.Name, "TAG"}
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
		if f.TagCaseSensitive {
			args = append(args, "CASESENSITIVE")
		}
		return args, nil
	default:
		return nil, fmt.Errorf("field %s: unknown type %s", f.Name, f.Type)
	}
}
