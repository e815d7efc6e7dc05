package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/chemdex/internal/db"
	"github.com/kailas-cloud/chemdex/internal/domain/fingerprint"
	"github.com/kailas-cloud/chemdex/internal/domain/search/document"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.Ping(context.Background())
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).
		AnyTimes()

	s := NewStoreForTest(c)
	if err := s.WaitForReady(context.Background(), 250*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestWaitForReady_QueryEngine(t *testing.T) {
	tests := []struct {
		name    string
		list    rueidis.RedisResult
		wantErr error
	}{
		{"loaded", mock.Result(mock.RedisArray()), nil},
		{"plain redis", mock.Result(mock.RedisError("ERR unknown command 'FT._LIST'")), db.ErrNoQueryEngine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)
			c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG")))
			c.EXPECT().Do(gomock.Any(), mock.Match("FT._LIST")).Return(tt.list)

			err := NewStoreForTest(c).WaitForReady(context.Background(), time.Second)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("WaitForReady = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// --- hash.go tests ---

func TestHSetMulti_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.Result(mock.RedisInt64(2)),
		})

	s := NewStoreForTest(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"hash": "1,2"}},
		{Key: "k2", Fields: map[string]string{"hash": "3"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{mock.ErrorResult(context.DeadlineExceeded)})

	s := NewStoreForTest(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f": "v"}},
	})
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
	if !strings.Contains(err.Error(), "k1") {
		t.Errorf("error should name the key: %v", err)
	}
}

func TestHSetMulti_ReplaceDeletesFirst(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), mock.Match("DEL", "k1"), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.ErrorResult(errors.New("READONLY")),
			mock.Result(mock.RedisInt64(1)),
		})

	s := NewStoreForTest(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"hash": "1"}, Replace: true},
	})
	if !isDBError(err) || !strings.Contains(err.Error(), "k1") {
		t.Fatalf("expected db.Error naming k1, got %v", err)
	}
}

func TestHSetMulti_Chunked(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var sizes []int
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Times(2).
		DoAndReturn(func(_ context.Context, cmds ...rueidis.Completed) []rueidis.RedisResult {
			sizes = append(sizes, len(cmds))
			out := make([]rueidis.RedisResult, len(cmds))
			for i := range out {
				out[i] = mock.Result(mock.RedisInt64(1))
			}
			return out
		})

	items := make([]db.HashSetItem, 300)
	for i := range items {
		items[i] = db.HashSetItem{Key: "k", Fields: map[string]string{"f": "v"}, Replace: true}
	}
	s := NewStoreForTest(c)
	if err := s.HSetMulti(context.Background(), items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sizes) != 2 || sizes[0] != maxPipeline || sizes[1] != 600-maxPipeline {
		t.Errorf("pipeline sizes = %v", sizes)
	}
}

func TestHSetMulti_Empty(t *testing.T) {
	s := NewStoreForTest(nil) // client not called
	if err := s.HSetMulti(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHGetAll_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "mykey")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"f1": mock.RedisString("v1"),
			"f2": mock.RedisString("v2"),
		})))

	s := NewStoreForTest(c)
	m, err := s.HGetAll(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["f1"] != "v1" || m["f2"] != "v2" {
		t.Errorf("unexpected map: %v", m)
	}
}

func TestHGetAll_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "missing")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})))

	s := NewStoreForTest(c)
	_, err := s.HGetAll(context.Background(), "missing")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestHGetAll_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "mykey")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.HGetAll(context.Background(), "mykey")
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestDel_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "mykey")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.Del(context.Background(), "mykey"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExists(t *testing.T) {
	for _, tc := range []struct {
		reply int64
		want  bool
	}{{1, true}, {0, false}} {
		ctrl := gomock.NewController(t)
		c := mock.NewClient(ctrl)

		c.EXPECT().
			Do(gomock.Any(), mock.Match("EXISTS", "mykey")).
			Return(mock.Result(mock.RedisInt64(tc.reply)))

		s := NewStoreForTest(c)
		exists, err := s.Exists(context.Background(), "mykey")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if exists != tc.want {
			t.Errorf("Exists = %v, want %v", exists, tc.want)
		}
	}
}

// --- index.go tests ---

func TestCreateIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.CREATE", "chemdex:mols:idx", "ON", "HASH", "PREFIX", "1", "chemdex:mols:",
			"SCHEMA",
			"hash", "TAG", "SEPARATOR", ",", "CASESENSITIVE",
			"has_error", "NUMERIC",
			"name", "TEXT", "NOSTEM",
		)).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	idx := db.NewIndex("chemdex:mols:idx").
		Prefix("chemdex:mols:").
		TagWithOpts("hash", ",", true).
		Numeric("has_error").
		Text("name").
		MustBuild()
	if err := s.CreateIndex(context.Background(), idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	idx := &db.IndexDefinition{
		Name:   "test:idx",
		Fields: []db.IndexField{{Name: "f", Type: db.IndexFieldTag}},
	}
	err := s.CreateIndex(context.Background(), idx)
	if !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestCreateIndex_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	idx := &db.IndexDefinition{
		Name:   "test:idx",
		Fields: []db.IndexField{{Name: "f", Type: db.IndexFieldTag}},
	}
	if err := s.CreateIndex(context.Background(), idx); !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestDropIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "test:idx", "DD")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.DropIndex(context.Background(), "test:idx"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "test:idx", "DD")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	err := s.DropIndex(context.Background(), "test:idx")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestBuildCreateArgs_Validation(t *testing.T) {
	_, err := buildCreateArgs(&db.IndexDefinition{Name: "", Fields: []db.IndexField{{Name: "f", Type: db.IndexFieldTag}}})
	if err == nil {
		t.Error("expected error for empty name")
	}

	_, err = buildCreateArgs(&db.IndexDefinition{Name: "test"})
	if err == nil {
		t.Error("expected error for empty fields")
	}
}

func TestBuildFieldArgs_AllTypes(t *testing.T) {
	tests := []struct {
		name  string
		field db.IndexField
		want  string
	}{
		{"tag", db.IndexField{Name: "f", Type: db.IndexFieldTag}, "TAG"},
		{"numeric", db.IndexField{Name: "f", Type: db.IndexFieldNumeric}, "NUMERIC"},
		{"text", db.IndexField{Name: "f", Type: db.IndexFieldText}, "TEXT"},
		{"text_nostem", db.IndexField{Name: "f", Type: db.IndexFieldText}, "NOSTEM"},
		{"tag_with_separator", db.IndexField{Name: "f", Type: db.IndexFieldTag, TagSeparator: ","}, "SEPARATOR"},
		{"tag_case_sensitive", db.IndexField{Name: "f", Type: db.IndexFieldTag, TagCaseSensitive: true}, "CASESENSITIVE"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args, err := buildFieldArgs(&tc.field)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertContains(t, args, tc.want)
		})
	}
}

func TestBuildFieldArgs_Errors(t *testing.T) {
	_, err := buildFieldArgs(&db.IndexField{Name: "", Type: db.IndexFieldTag})
	if err == nil {
		t.Error("expected error for empty field name")
	}

	_, err = buildFieldArgs(&db.IndexField{Name: "f", Type: db.IndexFieldType(99)})
	if err == nil {
		t.Error("expected error for unknown type")
	}
}

func assertContains(t *testing.T, args []string, want string) {
	t.Helper()
	for _, a := range args {
		if a == want {
			return
		}
	}
	t.Errorf("expected %q in args %v", want, args)
}

// --- search.go tests ---

func TestSearch_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.SEARCH", "idx", "@hash:{7} @hash:{9} @has_error:[0 0]",
			"LIMIT", "20", "10", "DIALECT", "2",
		)).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("doc:1"),
			mock.RedisArray(mock.RedisString("payload"), mock.RedisString("CCO")),
			mock.RedisString("doc:2"),
			mock.RedisArray(mock.RedisString("payload"), mock.RedisString("OCC")),
		)))

	s := NewStoreForTest(c)
	result, err := s.Search(context.Background(), &db.ScreenQuery{
		IndexName: "idx",
		Must:      []document.Clause{document.Term("hash", uint32(7)), document.Term("hash", uint32(9))},
		Filter:    []document.Clause{document.NotErrored()},
		Offset:    20,
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 2 || len(result.Entries) != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.Entries[1].Key != "doc:2" || result.Entries[1].Fields["payload"] != "OCC" {
		t.Errorf("entry = %+v", result.Entries[1])
	}
}

func TestSearch_ReturnFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.SEARCH", "idx", "*", "RETURN", "1", "payload",
			"LIMIT", "0", "5", "DIALECT", "2",
		)).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	result, err := s.Search(context.Background(), &db.ScreenQuery{
		IndexName: "idx", Limit: 5, ReturnFields: []string{"payload"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 0 || len(result.Entries) != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestSearch_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	_, err := s.Search(context.Background(), &db.ScreenQuery{IndexName: "idx", Limit: 1})
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestSearch_Validation(t *testing.T) {
	s := NewStoreForTest(nil)
	if _, err := s.Search(context.Background(), &db.ScreenQuery{Limit: 1}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.Search(context.Background(), &db.ScreenQuery{IndexName: "idx"}); err == nil {
		t.Error("expected error for zero limit")
	}
}

// --- Query building tests ---

func TestBuildQuery(t *testing.T) {
	lo, hi := 100.0, 250.5
	tests := []struct {
		name string
		q    db.ScreenQuery
		want string
	}{
		{"empty", db.ScreenQuery{}, "*"},
		{
			"similarity should collapses into a tag union",
			db.ScreenQuery{
				Should:    document.TermClauses(fingerprint.New(1, 5, 9), "sim_fingerprint"),
				Filter:    []document.Clause{document.NotErrored()},
				MinShould: 2,
			},
			"@sim_fingerprint:{1 | 5 | 9} @has_error:[0 0]",
		},
		{
			"optional should is dropped",
			db.ScreenQuery{
				Must:   []document.Clause{document.Term("kind", "reaction")},
				Should: []document.Clause{document.Term("hash", uint32(3))},
			},
			"@kind:{reaction}",
		},
		{
			"mixed should group",
			db.ScreenQuery{
				Should: []document.Clause{
					document.Term("kind", "molecule"),
					{Kind: document.ClauseMatch, Field: "name", Value: "ethanol"},
				},
			},
			"(@kind:{molecule} | @name:(ethanol))",
		},
		{
			"match range wildcard",
			db.ScreenQuery{
				Must: []document.Clause{
					{Kind: document.ClauseMatch, Field: "name", Value: "acetic acid"},
					{Kind: document.ClauseRange, Field: "mw", Lower: &lo, Upper: &hi},
					{Kind: document.ClauseRange, Field: "logp", Upper: &hi},
					{Kind: document.ClauseWildcard, Field: "cas", Value: "64-*"},
				},
			},
			`@name:(acetic acid) @mw:[100 250.5] @logp:[-inf 250.5] @cas:(w'64-*')`,
		},
		{
			"match and wildcard on tag properties",
			db.ScreenQuery{
				Must: []document.Clause{
					{Kind: document.ClauseMatch, Field: "supplier", Value: "acme corp"},
					{Kind: document.ClauseWildcard, Field: "lot", Value: "B7*"},
					{Kind: document.ClauseMatch, Field: "name", Value: "ethanol"},
				},
				TagFields: map[string]bool{"supplier": true, "lot": true},
			},
			`@supplier:{acme\ corp} @lot:{w'B7*'} @name:(ethanol)`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := buildQuery(&tc.q)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("buildQuery() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildQuery_UnsupportedClause(t *testing.T) {
	_, err := buildQuery(&db.ScreenQuery{Must: []document.Clause{{Kind: "knn", Field: "f"}}})
	if !errors.Is(err, db.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestBuildTagFilter_Escapes(t *testing.T) {
	got := buildTagFilter("kind", "a b,c")
	if got != `@kind:{a\ b\,c}` {
		t.Errorf("buildTagFilter = %q", got)
	}
}

func TestEscapeQuery(t *testing.T) {
	input := `hello "world" @user {tag}`
	escaped := escapeQuery(input)
	expected := `hello \"world\" \@user \{tag\}`
	if escaped != expected {
		t.Errorf("expected %q, got %q", expected, escaped)
	}
}

func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
