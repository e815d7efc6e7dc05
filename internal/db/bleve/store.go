// Package bleve implements db.Store in process on top of bleve memory indexes.
// Hashes live in a map; every index whose prefix matches a key keeps a
// bleve document for it, mirroring how RediSearch follows hash keys.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/kailas-cloud/chemdex/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

var errClosed = errors.New("store is closed")

type index struct {
	def *db.IndexDefinition
	idx bleve.Index
}

func (ix *index) covers(key string) bool {
	if len(ix.def.Prefixes) == 0 {
		return true
	}
	for _, p := range ix.def.Prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// Store is an in-memory db.Store.
type Store struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	indexes map[string]*index
	closed  bool
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		hashes:  make(map[string]map[string]string),
		indexes: make(map[string]*index),
	}
}

// Ping reports whether the store is usable.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &db.Error{Op: db.OpPing, Err: errClosed}
	}
	return nil
}

// WaitForReady returns immediately: the store lives in process.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// Close releases every bleve index.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, ix := range s.indexes {
		_ = ix.idx.Close()
		delete(s.indexes, name)
	}
	s.closed = true
}

// --- hashes ---

// HSetMulti stores hashes and reindexes them in every covering index.
// Fields merge into an existing hash as HSET does unless the item replaces it.
func (s *Store) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpHSet, Err: errClosed}
	}

	for _, item := range items {
		h, ok := s.hashes[item.Key]
		if !ok || item.Replace {
			h = make(map[string]string, len(item.Fields))
			s.hashes[item.Key] = h
		}
		maps.Copy(h, item.Fields)

		for _, ix := range s.indexes {
			if !ix.covers(item.Key) {
				continue
			}
			if err := ix.idx.Index(item.Key, toDocument(ix.def, h)); err != nil {
				return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", item.Key, err)}
			}
		}
	}
	return nil
}

// HGetAll returns a copy of a hash, or db.ErrKeyNotFound.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hashes[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return maps.Clone(h), nil
}

// Del deletes a hash and its index documents.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[key]; !ok {
		return nil
	}
	delete(s.hashes, key)
	for _, ix := range s.indexes {
		if !ix.covers(key) {
			continue
		}
		if err := ix.idx.Delete(key); err != nil {
			return &db.Error{Op: db.OpDel, Err: err}
		}
	}
	return nil
}

// Exists checks if a hash exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hashes[key]
	return ok, nil
}

// --- indexes ---

// CreateIndex builds a memory-only bleve index and backfills existing hashes.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpCreateIndex, Err: errClosed}
	}
	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}

	idx, err := bleve.NewMemOnly(buildMapping(def))
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	ix := &index{def: def, idx: idx}

	batch := idx.NewBatch()
	for key, h := range s.hashes {
		if !ix.covers(key) {
			continue
		}
		if err := batch.Index(key, toDocument(def, h)); err != nil {
			_ = idx.Close()
			return &db.Error{Op: db.OpCreateIndex, Err: err}
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	s.indexes[def.Name] = ix
	return nil
}

// DropIndex removes an index together with the hashes it covers.
func (s *Store) DropIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, ok := s.indexes[name]
	if !ok {
		return db.ErrIndexNotFound
	}
	delete(s.indexes, name)
	for key := range s.hashes {
		if ix.covers(key) {
			delete(s.hashes, key)
		}
	}
	if err := ix.idx.Close(); err != nil {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// buildMapping turns an index definition into a static bleve mapping:
// TAG fields use the keyword analyzer, TEXT the standard analyzer.
func buildMapping(def *db.IndexDefinition) mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	for i := range def.Fields {
		f := &def.Fields[i]
		var fm *mapping.FieldMapping
		switch f.Type {
		case db.IndexFieldNumeric:
			fm = bleve.NewNumericFieldMapping()
		case db.IndexFieldTag:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = keyword.Name
		default:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = standard.Name
		}
		fm.Store = false
		fm.IncludeInAll = false
		fm.IncludeTermVectors = false
		docMapping.AddFieldMappingsAt(f.Name, fm)
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// toDocument converts hash fields into the typed values the mapping expects.
// Unparsable numeric values are left out, as RediSearch skips them.
func toDocument(def *db.IndexDefinition, h map[string]string) map[string]any {
	doc := make(map[string]any, len(def.Fields))
	for i := range def.Fields {
		f := &def.Fields[i]
		raw, ok := h[f.Name]
		if !ok {
			continue
		}
		switch f.Type {
		case db.IndexFieldNumeric:
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				doc[f.Name] = v
			}
		case db.IndexFieldTag:
			doc[f.Name] = splitTags(f, raw)
		default:
			doc[f.Name] = raw
		}
	}
	return doc
}

func splitTags(f *db.IndexField, raw string) []string {
	sep := f.TagSeparator
	if sep == "" {
		sep = ","
	}
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, normalizeTag(f, p))
	}
	return out
}

func normalizeTag(f *db.IndexField, v string) string {
	if f.TagCaseSensitive {
		return v
	}
	return strings.ToLower(v)
}
