package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/chemdex/internal/domain"
	domcol "github.com/kailas-cloud/chemdex/internal/domain/collection"
	"github.com/kailas-cloud/chemdex/internal/domain/collection/field"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
)

// Service handles collection lifecycle operations.
type Service struct {
	repo Repository
}

// New creates a collection service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and stores a new collection with its search index.
func (s *Service) Create(ctx context.Context, name string, kind record.Kind, fields []field.Field) (domcol.Collection, error) {
	col, err := domcol.New(name, kind, fields)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("validate collection: %w: %w", domain.ErrInvalidSchema, err)
	}

	if err := s.repo.Create(ctx, col); err != nil {
		return domcol.Collection{}, fmt.Errorf("create collection: %w", err)
	}

	return col, nil
}

// Ensure returns the named collection, creating it when missing. created
// reports whether this call created it. An existing collection of another
// kind is a schema error; its fields are left as they are.
func (s *Service) Ensure(
	ctx context.Context, name string, kind record.Kind, fields []field.Field,
) (col domcol.Collection, created bool, err error) {
	if kind == "" {
		kind = record.Molecule
	}
	col, err = s.repo.Get(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		col, err = s.Create(ctx, name, kind, fields)
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return col, err == nil, err
		}
		// Created concurrently; fall through to the kind check.
		col, err = s.repo.Get(ctx, name)
	}
	if err != nil {
		return domcol.Collection{}, false, fmt.Errorf("get collection: %w", err)
	}
	if col.Kind() != kind {
		return domcol.Collection{}, false, fmt.Errorf("collection %s holds %s records, want %s: %w",
			name, col.Kind(), kind, domain.ErrInvalidSchema)
	}
	return col, false, nil
}

// Get retrieves a collection by name.
func (s *Service) Get(ctx context.Context, name string) (domcol.Collection, error) {
	col, err := s.repo.Get(ctx, name)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	return col, nil
}

// Delete removes a collection, its index and its records.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}
