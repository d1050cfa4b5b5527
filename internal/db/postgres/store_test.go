package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/adoptapet/internal/db"
)

func TestBuildCreateStatements(t *testing.T) {
	def := mustBuild(t, db.NewIndex("pets").
		Prefix("pet:").
		Tag("source").
		Numeric("age_months").
		Vector("text_embedding", db.VectorSpec{Dim: 512, M: 16, EFConstruct: 200}).
		Vector("image_embedding", db.VectorSpec{Algorithm: db.VectorFlat, Dim: 512}))

	stmts, err := buildCreateStatements(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE "pets" ("key" TEXT PRIMARY KEY, "source" TEXT, "age_months" DOUBLE PRECISION, ` +
			`"text_embedding" vector(512), "image_embedding" vector(512))`,
		`CREATE INDEX "pets_source_idx" ON "pets" ("source")`,
		`CREATE INDEX "pets_text_embedding_hnsw" ON "pets" USING hnsw ("text_embedding" vector_cosine_ops) ` +
			`WITH (m = 16, ef_construction = 200)`,
	}
	if len(stmts) != len(want) {
		t.Fatalf("got %d statements, want %d:\n%s", len(stmts), len(want), strings.Join(stmts, "\n"))
	}
	for i := range want {
		if stmts[i] != want[i] {
			t.Errorf("stmt[%d]:\n got %s\nwant %s", i, stmts[i], want[i])
		}
	}
}

func TestBuildCreateStatements_Invalid(t *testing.T) {
	if _, err := buildCreateStatements(&db.IndexDefinition{Name: "pets"}); err == nil {
		t.Error("expected error for index without fields")
	}
}

func TestOpsClass(t *testing.T) {
	tests := map[db.DistanceMetric]string{
		db.DistanceCosine: "vector_cosine_ops",
		db.DistanceL2:     "vector_l2_ops",
		db.DistanceIP:     "vector_ip_ops",
		"":                "vector_cosine_ops",
	}
	for in, want := range tests {
		if got := opsClass(in); got != want {
			t.Errorf("opsClass(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildInsert(t *testing.T) {
	stmt, args := buildInsert(`"pets"`, &db.Item{
		Key:     "pet:pf-1",
		Fields:  map[string]string{"source": "petfinder", "name": "Rex"},
		Vectors: map[string][]float32{"text_embedding": {1, 0}},
	})

	want := `INSERT INTO "pets" ("key", "name", "source", "text_embedding") VALUES ($1, $2, $3, $4)`
	if stmt != want {
		t.Errorf("stmt:\n got %s\nwant %s", stmt, want)
	}
	if len(args) != 4 || args[0] != "pet:pf-1" || args[1] != "Rex" || args[2] != "petfinder" {
		t.Fatalf("args = %v", args)
	}
	vec, ok := args[3].(pgvector.Vector)
	if !ok || len(vec.Slice()) != 2 {
		t.Errorf("args[3] = %#v, want pgvector.Vector", args[3])
	}
}

func TestBuildSearchQuery(t *testing.T) {
	q := &db.WeightedKNNQuery{
		IndexName: "pets",
		Vector:    []float32{0.6, 0.8},
		Fields: []db.VectorWeight{
			{Field: "text_embedding", Weight: 1.5},
			{Field: "image_embedding", Weight: 1.0},
		},
		Filters:      []db.TagMatch{{Field: "source", Value: "petfinder"}},
		K:            7,
		ReturnFields: []string{"name", "breed"},
	}

	sql, args := buildSearchQuery(q)
	want := `SELECT "key", ($2 * COALESCE(1 - ("text_embedding" <=> $1), 0) + ` +
		`$3 * COALESCE(1 - ("image_embedding" <=> $1), 0)) AS score, count(*) OVER () AS total, ` +
		`"name"::text, "breed"::text FROM "pets" WHERE "source" = $4 ORDER BY score DESC, "key" ASC LIMIT $5`
	if sql != want {
		t.Errorf("sql:\n got %s\nwant %s", sql, want)
	}
	if len(args) != 5 {
		t.Fatalf("args = %v", args)
	}
	if args[1] != 1.5 || args[2] != 1.0 || args[3] != "petfinder" || args[4] != 7 {
		t.Errorf("args = %v", args[1:])
	}
}

func TestBuildSearchQuery_Unfiltered(t *testing.T) {
	sql, args := buildSearchQuery(&db.WeightedKNNQuery{
		IndexName: "pets",
		Vector:    []float32{1},
		Fields:    []db.VectorWeight{{Field: "v", Weight: 2}},
		K:         3,
	})
	if strings.Contains(sql, "WHERE") {
		t.Errorf("unexpected WHERE in %s", sql)
	}
	if !strings.HasSuffix(sql, "LIMIT $3") || len(args) != 3 {
		t.Errorf("sql = %s, args = %v", sql, args)
	}
}

func TestWrapErr_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"network", errors.New("dial tcp: connection refused"), db.ErrUnavailable},
		{"deadline", context.DeadlineExceeded, db.ErrUnavailable},
		{"connection failure", &pq.Error{Code: "08006"}, db.ErrUnavailable},
		{"too many connections", &pq.Error{Code: "53300"}, db.ErrUnavailable},
		{"admin shutdown", &pq.Error{Code: "57P01"}, db.ErrUnavailable},
		{"dimension mismatch", &pq.Error{Code: "22000"}, db.ErrRejected},
		{"undefined column", &pq.Error{Code: "42703"}, db.ErrRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapErr(db.OpSearch, tt.err)
			if !errors.Is(err, tt.want) {
				t.Errorf("wrapErr(%v) = %v, want %v", tt.err, err, tt.want)
			}
		})
	}
}

type execResult struct {
	rows int64
	err  error
}

func (r execResult) LastInsertId() (int64, error) { return 0, nil }
func (r execResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestCheckDeleted(t *testing.T) {
	if err := checkDeleted(execResult{rows: 1}); err != nil {
		t.Errorf("one row: unexpected error %v", err)
	}
	if err := checkDeleted(execResult{}); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("no rows: expected ErrKeyNotFound, got %v", err)
	}

	err := checkDeleted(execResult{err: errors.New("driver: bad connection")})
	if errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("driver error reported as missing key: %v", err)
	}
	if !errors.Is(err, db.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpDel {
		t.Errorf("expected *db.Error with op %s, got %v", db.OpDel, err)
	}
}

func TestHasCode(t *testing.T) {
	if !hasCode(&pq.Error{Code: codeUndefinedTable}, codeUndefinedTable) {
		t.Error("expected match")
	}
	if hasCode(errors.New("other"), codeUndefinedTable) {
		t.Error("unexpected match")
	}
}

func TestNewStore_RequiresDSN(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Error("expected error for empty DSN")
	}
}

func TestSearchWeighted_InvalidQuery(t *testing.T) {
	s := &Store{}
	_, err := s.SearchWeighted(context.Background(), &db.WeightedKNNQuery{IndexName: "pets"})
	if !errors.Is(err, db.ErrRejected) {
		t.Errorf("expected ErrRejected, got %v", err)
	}
}

func mustBuild(t *testing.T, b *db.IndexBuilder) *db.IndexDefinition {
	t.Helper()
	def, err := b.Build()
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return def
}
