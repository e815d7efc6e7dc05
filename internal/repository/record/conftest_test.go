package record

import (
	"context"
	"testing"

	"github.com/kailas-cloud/chemdex/internal/db"
	"github.com/kailas-cloud/chemdex/internal/domain/fingerprint"
	domrec "github.com/kailas-cloud/chemdex/internal/domain/record"
	"github.com/kailas-cloud/chemdex/internal/repository/keyspace"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn   func(ctx context.Context, key string) (map[string]string, error)
	delFn       func(ctx context.Context, key string) error
	existsFn    func(ctx context.Context, key string) (bool, error)
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, keyspace.New("")), ms
}

func testRecord(t *testing.T) domrec.Record {
	t.Helper()
	r, err := domrec.New("CHEMBL545",
		domrec.Structure{Kind: domrec.Molecule, Payload: []byte("CCO")},
		domrec.Fingerprints{
			ExactHash:    fingerprint.New(11, 12),
			Substructure: fingerprint.New(3, 7),
			Similarity:   fingerprint.New(1, 5, 9),
		},
		map[string]string{"name": "ethanol", "mw": "46.07"},
	)
	if err != nil {
		t.Fatalf("record.New: %v", err)
	}
	return r
}
