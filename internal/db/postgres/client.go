// Package postgres implements db.Store on PostgreSQL with the pgvector extension.
//
// An index is a table: one TEXT primary key column "key", one column per scalar field and
// one vector(dim) column per vector field, each with its own HNSW index.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/kailas-cloud/adoptapet/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Postgres store.
type Config struct {
	DSN          string
	MaxOpenConns int
}

// Store implements db.Store via database/sql and lib/pq.
type Store struct {
	db *sql.DB

	kvMu    sync.Mutex
	kvReady bool
}

// NewStore opens a connection pool. No connection is made until first use.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	conn, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	return &Store{db: conn}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := s.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// SQLSTATE classes that signal a transient condition.
var transientClasses = map[pq.ErrorClass]bool{
	"08": true, // connection exception
	"40": true, // transaction rollback
	"53": true, // insufficient resources
	"57": true, // operator intervention
}

// Specific SQLSTATE codes the store maps to db sentinels.
const (
	codeUndefinedTable = "42P01"
	codeDuplicateTable = "42P07"
)

// wrapErr classifies err as db.ErrUnavailable or db.ErrRejected and tags it with op.
// Errors that are not server replies (dial failures, timeouts, closed pool) are transient.
func wrapErr(op string, err error) error {
	class := db.ErrUnavailable
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && !transientClasses[pqErr.Code.Class()] {
		class = db.ErrRejected
	}
	return &db.Error{Op: op, Err: fmt.Errorf("%w: %w", class, err)}
}

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
