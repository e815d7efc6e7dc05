package record

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chemdex/internal/domain"
	domcol "github.com/kailas-cloud/chemdex/internal/domain/collection"
	"github.com/kailas-cloud/chemdex/internal/domain/collection/field"
	domrec "github.com/kailas-cloud/chemdex/internal/domain/record"
)

// Service stores pre-fingerprinted records in collections.
type Service struct {
	repo          Repository
	colls         CollectionReader
	fingerprinter domain.Fingerprinter
	logger        *zap.Logger
}

// New creates a record service. fingerprinter may be nil; records then
// have to carry their fingerprints.
func New(repo Repository, colls CollectionReader, fingerprinter domain.Fingerprinter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, colls: colls, fingerprinter: fingerprinter, logger: logger}
}

// Index validates records against the collection schema and stores them,
// replacing records with the same IDs.
func (s *Service) Index(ctx context.Context, collection string, recs []domrec.Record) error {
	if len(recs) == 0 {
		return nil
	}
	col, err := s.colls.Get(ctx, collection)
	if err != nil {
		return fmt.Errorf("get collection: %w", err)
	}

	prepared := make([]domrec.Record, len(recs))
	for i := range recs {
		if err := validateRecord(&recs[i], col); err != nil {
			return err
		}
		if prepared[i], err = s.fill(ctx, recs[i]); err != nil {
			return err
		}
	}

	if err := s.repo.Put(ctx, collection, prepared); err != nil {
		return fmt.Errorf("index records: %w", err)
	}
	s.logger.Debug("Records indexed", zap.String("collection", collection), zap.Int("count", len(prepared)))
	return nil
}

// Get retrieves a record by collection and ID.
func (s *Service) Get(ctx context.Context, collection, id string) (domrec.Record, error) {
	if _, err := s.colls.Get(ctx, collection); err != nil {
		return domrec.Record{}, fmt.Errorf("get collection: %w", err)
	}
	rec, err := s.repo.Get(ctx, collection, id)
	if err != nil {
		return domrec.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.colls.Get(ctx, collection); err != nil {
		return fmt.Errorf("get collection: %w", err)
	}
	if err := s.repo.Delete(ctx, collection, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Target builds a query target, computing its fingerprints when a
// fingerprinter is configured.
func (s *Service) Target(ctx context.Context, st domrec.Structure, fps domrec.Fingerprints) (domrec.Record, error) {
	if s.fingerprinter != nil && isBlank(fps) {
		var err error
		if fps, err = s.fingerprinter.Fingerprint(ctx, st); err != nil {
			return domrec.Record{}, fmt.Errorf("fingerprint target: %w", err)
		}
	}
	t, err := domrec.NewTarget(st, fps)
	if err != nil {
		return domrec.Record{}, fmt.Errorf("build target: %w: %w", domain.ErrInvalidSchema, err)
	}
	return t, nil
}

// fill computes missing fingerprints. A failing engine marks the record
// as errored instead of rejecting it, so screening keeps it out.
func (s *Service) fill(ctx context.Context, r domrec.Record) (domrec.Record, error) {
	fps := domrec.Fingerprints{
		ExactHash:    r.ExactHash(),
		Substructure: r.SubFingerprint(),
		Similarity:   r.SimFingerprint(),
		HasError:     r.HasError(),
	}
	if s.fingerprinter == nil || !isBlank(fps) {
		return r, nil
	}

	computed, err := s.fingerprinter.Fingerprint(ctx, r.Structure())
	if err != nil {
		s.logger.Warn("Fingerprinting failed, record marked as errored",
			zap.String("id", r.ID()),
			zap.Error(err),
		)
		computed = domrec.Fingerprints{HasError: true}
	}
	out, err := domrec.New(r.ID(), r.Structure(), computed, r.Properties())
	if err != nil {
		return domrec.Record{}, fmt.Errorf("record %s: %w: %w", r.ID(), domain.ErrInvalidSchema, err)
	}
	return out, nil
}

func isBlank(fps domrec.Fingerprints) bool {
	return !fps.HasError && fps.ExactHash.IsEmpty() && fps.Substructure.IsEmpty() && fps.Similarity.IsEmpty()
}

// validateRecord checks the record kind and its properties against the schema.
func validateRecord(r *domrec.Record, col domcol.Collection) error {
	if r.Kind() != col.Kind() {
		return fmt.Errorf("record %s is a %s, collection %s holds %s: %w",
			r.ID(), r.Kind(), col.Name(), col.Kind(), domain.ErrInvalidSchema)
	}
	for name, v := range r.Properties() {
		f, ok := col.FieldByName(name)
		if !ok {
			return fmt.Errorf("unknown field %q (not in collection schema): %w", name, domain.ErrInvalidSchema)
		}
		if f.FieldType() == field.Numeric {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return fmt.Errorf("field %q is numeric, got %q: %w", name, v, domain.ErrInvalidSchema)
			}
		}
	}
	return nil
}
