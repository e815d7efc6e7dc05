package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kailas-cloud/chemdex/internal/domain/fingerprint"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
	"github.com/kailas-cloud/chemdex/internal/domain/search/document"
)

// --- Mocks ---

// mockBackend ignores the document and pages through every record of a
// collection, so screening is maximally permissive.
type mockBackend struct {
	mu       sync.Mutex
	data     map[string][]record.Record
	pageSize int
	openErr  error
	nextErr  error
	opened   []string
	closed   int
	lastDoc  *document.Document
}

func (b *mockBackend) Open(_ context.Context, collection string, doc *document.Document) (Cursor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opened = append(b.opened, collection)
	b.lastDoc = doc
	size := b.pageSize
	if size <= 0 {
		size = 2
	}
	return &mockCursor{backend: b, recs: b.data[collection], size: size}, nil
}

type mockCursor struct {
	backend *mockBackend
	recs    []record.Record
	size    int
	pos     int
}

func (c *mockCursor) Next(context.Context) ([]record.Match, error) {
	if c.backend.nextErr != nil {
		return nil, c.backend.nextErr
	}
	end := min(c.pos+c.size, len(c.recs))
	page := make([]record.Match, 0, end-c.pos)
	for _, r := range c.recs[c.pos:end] {
		page = append(page, record.Match{Record: r, Score: 1})
	}
	c.pos = end
	return page, nil
}

func (c *mockCursor) Close() error {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	c.backend.closed++
	return nil
}

// payloadOracle treats payloads as canonical forms: equal bytes are the
// same structure, and substructure is a plain substring test.
type payloadOracle struct {
	mu      sync.Mutex
	calls   int
	failFor map[string]bool
}

var errCorrupt = errors.New("corrupt structure")

func (o *payloadOracle) Exact(_ context.Context, t, c record.Structure, _ string) (bool, error) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	if o.failFor[string(c.Payload)] {
		return false, errCorrupt
	}
	return string(t.Payload) == string(c.Payload), nil
}

func (o *payloadOracle) Substructure(_ context.Context, q, c record.Structure, _ string) (bool, error) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	if o.failFor[string(c.Payload)] {
		return false, errCorrupt
	}
	return contains(string(c.Payload), string(q.Payload)), nil
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func mkRecord(t *testing.T, id, payload string, hash ...uint32) record.Record {
	t.Helper()
	r, err := record.New(id, record.Structure{Payload: []byte(payload)},
		record.Fingerprints{ExactHash: fingerprint.New(hash...)}, nil)
	if err != nil {
		t.Fatalf("record.New(%s): %v", id, err)
	}
	return r
}

func mkTarget(t *testing.T, payload string, fps record.Fingerprints) record.Record {
	t.Helper()
	r, err := record.NewTarget(record.Structure{Payload: []byte(payload)}, fps)
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	return r
}

func ids(ms []record.Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Record.ID()
	}
	return out
}
