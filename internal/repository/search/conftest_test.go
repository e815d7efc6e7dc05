package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/chemdex/internal/db"
	"github.com/kailas-cloud/chemdex/internal/domain/fingerprint"
	domrec "github.com/kailas-cloud/chemdex/internal/domain/record"
	recordrepo "github.com/kailas-cloud/chemdex/internal/repository/record"
	"github.com/kailas-cloud/chemdex/internal/repository/keyspace"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchFn func(ctx context.Context, q *db.ScreenQuery) (*db.SearchResult, error)
	queries  []db.ScreenQuery
}

func (m *mockStore) Search(ctx context.Context, q *db.ScreenQuery) (*db.SearchResult, error) {
	m.queries = append(m.queries, *q)
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

// pagedStore serves recs as hashes, honoring Offset and Limit only.
func pagedStore(t *testing.T, collection string, recs ...domrec.Record) *mockStore {
	t.Helper()
	keys := keyspace.New("")
	entries := make([]db.SearchEntry, len(recs))
	for i := range recs {
		entries[i] = db.SearchEntry{
			Key:    keys.Record(collection, recs[i].ID()),
			Fields: recordrepo.ToHash(&recs[i]),
		}
	}
	return &mockStore{searchFn: func(_ context.Context, q *db.ScreenQuery) (*db.SearchResult, error) {
		lo := min(q.Offset, len(entries))
		hi := min(lo+q.Limit, len(entries))
		return &db.SearchResult{Total: len(entries), Entries: entries[lo:hi]}, nil
	}}
}

func newTestRepo(ms *mockStore) *Repo {
	return New(ms, keyspace.New(""), 2)
}

func mkRecord(t *testing.T, id string, hash []uint32, sim ...uint32) domrec.Record {
	t.Helper()
	r, err := domrec.New(id, domrec.Structure{Payload: []byte("C")},
		domrec.Fingerprints{ExactHash: fingerprint.New(hash...), Similarity: fingerprint.New(sim...)}, nil)
	if err != nil {
		t.Fatalf("record.New(%s): %v", id, err)
	}
	return r
}

func mkTarget(t *testing.T, fps domrec.Fingerprints) domrec.Record {
	t.Helper()
	r, err := domrec.NewTarget(domrec.Structure{Payload: []byte("C")}, fps)
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	return r
}

// drain reads every page until the cursor reports exhaustion.
func drain(t *testing.T, c interface {
	Next(context.Context) ([]domrec.Match, error)
}) []domrec.Match {
	t.Helper()
	var all []domrec.Match
	for range 100 {
		page, err := c.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if len(page) == 0 {
			return all
		}
		all = append(all, page...)
	}
	t.Fatal("cursor never exhausted")
	return nil
}

func ids(ms []domrec.Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Record.ID()
	}
	return out
}
