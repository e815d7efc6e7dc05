package chemdex_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/chemdex"
)

// payloadOracle compares payloads byte-wise; substructure is a substring test.
type payloadOracle struct {
	calls atomic.Int64
}

func (o *payloadOracle) Exact(_ context.Context, t, c chemdex.Structure, _ string) (bool, error) {
	o.calls.Add(1)
	return string(t.Payload) == string(c.Payload), nil
}

func (o *payloadOracle) Substructure(_ context.Context, q, c chemdex.Structure, _ string) (bool, error) {
	o.calls.Add(1)
	return strings.Contains(string(c.Payload), string(q.Payload)), nil
}

func openBleve(t *testing.T, opts ...chemdex.Option) *chemdex.Client {
	t.Helper()
	c, err := chemdex.Open(context.Background(), append([]chemdex.Option{chemdex.WithBleve()}, opts...)...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func mol(t *testing.T, id, payload string, hash, sim []uint32, props map[string]string) chemdex.Record {
	t.Helper()
	r, err := chemdex.NewRecord(id, chemdex.Structure{Kind: chemdex.Molecule, Payload: []byte(payload)},
		chemdex.Fingerprints{
			ExactHash:    chemdex.NewFingerprintSet(hash...),
			Substructure: chemdex.NewFingerprintSet(hash...),
			Similarity:   chemdex.NewFingerprintSet(sim...),
		}, props)
	if err != nil {
		t.Fatalf("NewRecord(%s): %v", id, err)
	}
	return r
}

func seed(t *testing.T, c *chemdex.Client) {
	t.Helper()
	ctx := context.Background()
	name, err := chemdex.NewField("name", chemdex.TextField)
	if err != nil {
		t.Fatal(err)
	}
	weight, err := chemdex.NewField("weight", chemdex.NumericField)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateCollection(ctx, "molecules", chemdex.Molecule, name, weight); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	err = c.Index(ctx, "molecules",
		mol(t, "ethanol", "CCO", []uint32{1, 2}, []uint32{1, 2, 3}, map[string]string{"name": "ethanol", "weight": "46"}),
		mol(t, "ethanol2", "CCO", []uint32{1, 2}, []uint32{1, 2, 3}, map[string]string{"name": "ethanol", "weight": "46"}),
		mol(t, "ether", "CCOCC", []uint32{1, 2, 5}, []uint32{1, 2, 3, 4}, map[string]string{"name": "ether", "weight": "74"}),
		mol(t, "methane", "C", []uint32{7}, []uint32{9}, map[string]string{"name": "methane", "weight": "16"}),
	)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
}

func ids(t *testing.T, st *chemdex.Stream) []string {
	t.Helper()
	ms, err := st.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Record.ID()
	}
	return out
}

func TestOpen_NoBackend(t *testing.T) {
	if _, err := chemdex.Open(context.Background()); err == nil {
		t.Fatal("expected error without a backend option")
	}
	if _, err := chemdex.Open(context.Background(), chemdex.WithRedis("")); err == nil {
		t.Fatal("expected error without redis addresses")
	}
}

func TestClient_CollectionLifecycle(t *testing.T) {
	c := openBleve(t)
	ctx := context.Background()

	col, err := c.CreateCollection(ctx, "rxns", chemdex.Reaction)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if col.Name() != "rxns" {
		t.Errorf("name = %q", col.Name())
	}
	if _, err := c.CreateCollection(ctx, "rxns", chemdex.Reaction); !errors.Is(err, chemdex.ErrAlreadyExists) {
		t.Errorf("duplicate create: %v", err)
	}
	if _, err := c.GetCollection(ctx, "rxns"); err != nil {
		t.Errorf("GetCollection: %v", err)
	}
	if err := c.DropCollection(ctx, "rxns"); err != nil {
		t.Fatalf("DropCollection: %v", err)
	}
	if _, err := c.GetCollection(ctx, "rxns"); !errors.Is(err, chemdex.ErrNotFound) {
		t.Errorf("after drop: %v", err)
	}
}

func TestClient_EnsureCollection(t *testing.T) {
	c := openBleve(t)
	ctx := context.Background()

	first, err := c.EnsureCollection(ctx, "rxns", chemdex.Reaction)
	if err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	again, err := c.EnsureCollection(ctx, "rxns", chemdex.Reaction)
	if err != nil {
		t.Fatalf("second EnsureCollection: %v", err)
	}
	if again.CreatedAt() != first.CreatedAt() {
		t.Errorf("existing collection was recreated")
	}
	if _, err := c.EnsureCollection(ctx, "rxns", chemdex.Molecule); !errors.Is(err, chemdex.ErrInvalidSchema) {
		t.Errorf("kind mismatch: %v", err)
	}
}

func TestClient_RecordRoundTrip(t *testing.T) {
	c := openBleve(t)
	seed(t, c)
	ctx := context.Background()

	got, err := c.Get(ctx, "molecules", "ether")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Structure().Payload) != "CCOCC" || got.SimFingerprintLen() != 4 {
		t.Errorf("record = %q len %d", got.Structure().Payload, got.SimFingerprintLen())
	}
	if err := c.Delete(ctx, "molecules", "ether"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "molecules", "ether"); !errors.Is(err, chemdex.ErrNotFound) {
		t.Errorf("after delete: %v", err)
	}
}

func TestClient_ExactSearch(t *testing.T) {
	oracle := &payloadOracle{}
	c := openBleve(t, chemdex.WithOracle(oracle))
	seed(t, c)
	ctx := context.Background()

	target, err := c.Target(ctx, chemdex.Structure{Payload: []byte("CCO")},
		chemdex.Fingerprints{ExactHash: chemdex.NewFingerprintSet(1, 2)})
	if err != nil {
		t.Fatal(err)
	}
	st, err := c.Search(ctx, chemdex.SearchOptions{}, chemdex.Exact(target, ""))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := ids(t, st)
	slices.Sort(got)
	if !slices.Equal(got, []string{"ethanol", "ethanol2"}) {
		t.Errorf("ids = %v", got)
	}
	if oracle.calls.Load() == 0 {
		t.Error("oracle never consulted")
	}
}

func TestClient_VerdictCacheSkipsOracle(t *testing.T) {
	oracle := &payloadOracle{}
	c := openBleve(t, chemdex.WithOracle(oracle))
	seed(t, c)
	ctx := context.Background()
	target, _ := c.Target(ctx, chemdex.Structure{Payload: []byte("CO")},
		chemdex.Fingerprints{Substructure: chemdex.NewFingerprintSet(1)})

	run := func() []string {
		st, err := c.Search(ctx, chemdex.SearchOptions{}, chemdex.Substructure(target, ""))
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		out := ids(t, st)
		slices.Sort(out)
		return out
	}
	first := run()
	calls := oracle.calls.Load()
	second := run()
	if !slices.Equal(first, second) || !slices.Equal(first, []string{"ethanol", "ethanol2", "ether"}) {
		t.Errorf("first = %v, second = %v", first, second)
	}
	if oracle.calls.Load() != calls {
		t.Errorf("cached verdicts re-ran the oracle: %d -> %d", calls, oracle.calls.Load())
	}

	c.PurgeVerdicts()
	run()
	if oracle.calls.Load() == calls {
		t.Error("purge did not drop cached verdicts")
	}
}

func TestClient_SimilaritySearch(t *testing.T) {
	c := openBleve(t)
	seed(t, c)
	ctx := context.Background()

	target, _ := c.Target(ctx, chemdex.Structure{Payload: []byte("CCO")},
		chemdex.Fingerprints{Similarity: chemdex.NewFingerprintSet(1, 2, 3)})
	q, err := chemdex.Similarity(chemdex.Tanimoto(), target, 0.7)
	if err != nil {
		t.Fatal(err)
	}
	st, err := c.Search(ctx, chemdex.SearchOptions{}, q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	ms, err := st.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, m := range ms {
		got = append(got, m.Record.ID())
	}
	// ether scores 3/4; ties break by id.
	if !slices.Equal(got, []string{"ethanol", "ethanol2", "ether"}) {
		t.Fatalf("ids = %v", got)
	}
	if ms[0].Score != 1 || ms[2].Score != 0.75 {
		t.Errorf("scores = %v, %v", ms[0].Score, ms[2].Score)
	}
}

func TestClient_FieldSearchWithoutOracle(t *testing.T) {
	c := openBleve(t)
	seed(t, c)
	ctx := context.Background()

	lo := 40.0
	r, err := chemdex.Range("weight", &lo, nil)
	if err != nil {
		t.Fatal(err)
	}
	st, err := c.Search(ctx, chemdex.SearchOptions{Collections: []string{"molecules"}}, r)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := ids(t, st)
	slices.Sort(got)
	if !slices.Equal(got, []string{"ethanol", "ethanol2", "ether"}) {
		t.Errorf("ids = %v", got)
	}
}

func TestClient_StructuralSearchWithoutOracle(t *testing.T) {
	c := openBleve(t)
	seed(t, c)
	ctx := context.Background()
	target, _ := c.Target(ctx, chemdex.Structure{Payload: []byte("CCO")}, chemdex.Fingerprints{})

	st, err := c.Search(ctx, chemdex.SearchOptions{}, chemdex.Exact(target, ""))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	defer st.Close()
	if _, err := st.Next(ctx); !errors.Is(err, chemdex.ErrOracle) {
		t.Errorf("expected ErrOracle, got %v", err)
	}
}

func TestClient_CompileErrorNeverReachesBackend(t *testing.T) {
	c := openBleve(t)
	target, _ := c.Target(context.Background(), chemdex.Structure{Payload: []byte("C")}, chemdex.Fingerprints{})
	_, err := c.Search(context.Background(), chemdex.SearchOptions{Collections: []string{"missing"}},
		chemdex.Exact(target, ""), chemdex.Substructure(target, ""))
	if !errors.Is(err, chemdex.ErrCompilation) {
		t.Errorf("expected ErrCompilation, got %v", err)
	}
}

func TestClient_Health(t *testing.T) {
	c := openBleve(t, chemdex.WithOracle(&payloadOracle{}), chemdex.WithMetrics(prometheus.NewRegistry()))
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	rep := c.Health(context.Background())
	if rep.Status != "ok" {
		t.Errorf("status = %v", rep.Status)
	}
	if rep.Checks["backend"] != "ok" || rep.Checks["oracle"] != "ok" {
		t.Errorf("checks = %v", rep.Checks)
	}
}
