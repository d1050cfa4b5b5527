package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/adoptapet/internal/db"
)

// SearchWeighted scores rows in SQL as sum(weight_f * (1 - (field_f <=> $1))).
// A NULL vector contributes zero. Ordering by the combined expression makes this an exact
// scan over the filtered rows, so the candidate total is the filtered row count.
func (s *Store) SearchWeighted(ctx context.Context, q *db.WeightedKNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: %w", db.ErrRejected, err)}
	}

	query, args := buildSearchQuery(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(db.OpSearch, err)
	}
	defer rows.Close()

	res := &db.SearchResult{}
	for rows.Next() {
		var (
			key   string
			score float64
			total int
		)
		values := make([]sql.NullString, len(q.ReturnFields))
		dest := []any{&key, &score, &total}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, wrapErr(db.OpSearch, err)
		}

		fields := make(map[string]string, len(values))
		for i, v := range values {
			if v.Valid {
				fields[q.ReturnFields[i]] = v.String
			}
		}
		res.Total = total
		res.Entries = append(res.Entries, db.SearchEntry{Key: key, Score: score, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(db.OpSearch, err)
	}
	return res, nil
}

func buildSearchQuery(q *db.WeightedKNNQuery) (string, []any) {
	args := []any{pgvector.NewVector(q.Vector)}

	terms := make([]string, 0, len(q.Fields))
	for _, f := range q.Fields {
		args = append(args, f.Weight)
		terms = append(terms, fmt.Sprintf("$%d * COALESCE(1 - (%s <=> $1), 0)",
			len(args), pq.QuoteIdentifier(f.Field)))
	}

	cols := []string{`"key"`, "(" + strings.Join(terms, " + ") + ") AS score", "count(*) OVER () AS total"}
	for _, f := range q.ReturnFields {
		cols = append(cols, pq.QuoteIdentifier(f)+"::text")
	}

	where := make([]string, 0, len(q.Filters))
	for _, m := range q.Filters {
		args = append(args, m.Value)
		where = append(where, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(m.Field), len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(pq.QuoteIdentifier(q.IndexName))
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, q.K)
	fmt.Fprintf(&sb, ` ORDER BY score DESC, "key" ASC LIMIT $%d`, len(args))

	return sb.String(), args
}
