package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kailas-cloud/adoptapet/internal/db"
)

const kvTable = "adoptapet_kv"

// Get retrieves a non-expired value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM `+kvTable+` WHERE "key" = $1 AND expires_at > now()`, key,
	).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows), hasCode(err, codeUndefinedTable):
		return nil, db.ErrKeyNotFound
	case err != nil:
		return nil, wrapErr(db.OpGet, err)
	}
	return value, nil
}

// SetWithTTL stores a value with an expiration. The backing table is created on first write.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.ensureKV(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+kvTable+` ("key", value, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		ON CONFLICT ("key") DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, ttl.Seconds(),
	)
	if err != nil {
		return wrapErr(db.OpSet, err)
	}
	return nil
}

func (s *Store) ensureKV(ctx context.Context) error {
	s.kvMu.Lock()
	defer s.kvMu.Unlock()
	if s.kvReady {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+kvTable+` (
		"key" TEXT PRIMARY KEY,
		value BYTEA NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return wrapErr(db.OpSet, err)
	}
	s.kvReady = true
	return nil
}
