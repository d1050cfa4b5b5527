package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/kailas-cloud/adoptapet/internal/db"
)

// CreateIndex creates the table and one HNSW index per vector field in a single transaction.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	stmts, err := buildCreateStatements(def)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(db.OpCreateIndex, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if hasCode(err, codeDuplicateTable) {
				return db.ErrIndexExists
			}
			return wrapErr(db.OpCreateIndex, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapErr(db.OpCreateIndex, err)
	}
	return nil
}

// DropIndex drops the table. Unlike Valkey, the stored rows go with it.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	if !db.IsValidIdentifier(name) {
		return errors.New("index name contains invalid characters")
	}
	if _, err := s.db.ExecContext(ctx, "DROP TABLE "+pq.QuoteIdentifier(name)); err != nil {
		if hasCode(err, codeUndefinedTable) {
			return db.ErrIndexNotFound
		}
		return wrapErr(db.OpDropIndex, err)
	}
	return nil
}

// IndexExists reports whether the backing table exists.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT to_regclass($1) IS NOT NULL", pq.QuoteIdentifier(name),
	).Scan(&exists)
	if err != nil {
		return false, wrapErr(db.OpIndexInfo, err)
	}
	return exists, nil
}

func buildCreateStatements(def *db.IndexDefinition) ([]string, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	table := pq.QuoteIdentifier(def.Name)
	cols := []string{`"key" TEXT PRIMARY KEY`}
	var indexes []string

	for i := range def.Fields {
		f := &def.Fields[i]
		col := pq.QuoteIdentifier(f.Name)
		switch f.Type {
		case db.IndexFieldTag:
			cols = append(cols, col+" TEXT")
			indexes = append(indexes, fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
				pq.QuoteIdentifier(def.Name+"_"+f.Name+"_idx"), table, col))
		case db.IndexFieldNumeric:
			cols = append(cols, col+" DOUBLE PRECISION")
		case db.IndexFieldVector:
			spec := f.Vector.Resolved()
			cols = append(cols, fmt.Sprintf("%s vector(%d)", col, spec.Dim))
			// FLAT means exact scan: no ANN index.
			if spec.Algorithm == db.VectorHNSW {
				indexes = append(indexes, buildVectorIndex(def.Name, table, f.Name, spec))
			}
		default:
			return nil, errors.New("unknown field type")
		}
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(cols, ", ")),
	}
	return append(stmts, indexes...), nil
}

func buildVectorIndex(index, table, field string, spec db.VectorSpec) string {
	name := pq.QuoteIdentifier(index + "_" + field + "_hnsw")
	col := pq.QuoteIdentifier(field)
	stmt := fmt.Sprintf("CREATE INDEX %s ON %s USING hnsw (%s %s)", name, table, col, opsClass(spec.Distance))

	var with []string
	if spec.M > 0 {
		with = append(with, fmt.Sprintf("m = %d", spec.M))
	}
	if spec.EFConstruct > 0 {
		with = append(with, fmt.Sprintf("ef_construction = %d", spec.EFConstruct))
	}
	if len(with) > 0 {
		stmt += " WITH (" + strings.Join(with, ", ") + ")"
	}
	return stmt
}

func opsClass(d db.DistanceMetric) string {
	switch d {
	case db.DistanceL2:
		return "vector_l2_ops"
	case db.DistanceIP:
		return "vector_ip_ops"
	default:
		return "vector_cosine_ops"
	}
}
