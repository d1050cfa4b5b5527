package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/adoptapet/internal/db"
)

// UpsertItems replaces each item's row (DELETE + INSERT) inside one transaction.
func (s *Store) UpsertItems(ctx context.Context, index string, items []db.Item) error {
	if len(items) == 0 {
		return nil
	}
	if !db.IsValidIdentifier(index) {
		return errors.New("index name contains invalid characters")
	}
	table := pq.QuoteIdentifier(index)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(db.OpHSet, err)
	}
	defer func() { _ = tx.Rollback() }()

	del := `DELETE FROM ` + table + ` WHERE "key" = $1`
	for i := range items {
		item := &items[i]
		if _, err := tx.ExecContext(ctx, del, item.Key); err != nil {
			return fmt.Errorf("key %s: %w", item.Key, wrapErr(db.OpDel, err))
		}
		stmt, args := buildInsert(table, item)
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("key %s: %w", item.Key, wrapErr(db.OpHSet, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapErr(db.OpHSet, err)
	}
	return nil
}

// DeleteItem removes a single row.
func (s *Store) DeleteItem(ctx context.Context, index, key string) error {
	if !db.IsValidIdentifier(index) {
		return errors.New("index name contains invalid characters")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+pq.QuoteIdentifier(index)+` WHERE "key" = $1`, key)
	if err != nil {
		return wrapErr(db.OpDel, err)
	}
	return checkDeleted(res)
}

// checkDeleted maps a DELETE result to db.ErrKeyNotFound when no row matched.
func checkDeleted(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(db.OpDel, err)
	}
	if n == 0 {
		return db.ErrKeyNotFound
	}
	return nil
}

// buildInsert renders one INSERT with columns in a stable order: key, scalar fields, vectors.
func buildInsert(table string, item *db.Item) (string, []any) {
	cols := []string{`"key"`}
	args := []any{item.Key}

	for _, k := range slices.Sorted(maps.Keys(item.Fields)) {
		cols = append(cols, pq.QuoteIdentifier(k))
		args = append(args, item.Fields[k])
	}
	for _, k := range slices.Sorted(maps.Keys(item.Vectors)) {
		cols = append(cols, pq.QuoteIdentifier(k))
		args = append(args, pgvector.NewVector(item.Vectors[k]))
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders(1, len(cols)))
	return stmt, args
}

// placeholders returns "$from, $from+1, ..." for n parameters.
func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}
