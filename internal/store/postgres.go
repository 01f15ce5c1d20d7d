package store

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code for a unique-constraint
// violation (23505); both insert_queue and insert_message treat it as a
// normal negative result, not an error.
const uniqueViolation = "23505"

// PostgresStore is the Repository backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PoolConfig bounds the connection pool's size.
type PoolConfig struct {
	MinConns int32
	MaxConns int32
}

// NewPostgresStore opens a pool against dsn, verifies connectivity, and
// ensures the queues/messages schema exists.
func NewPostgresStore(ctx context.Context, dsn string, pc PoolConfig) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if pc.MinConns > 0 {
		poolCfg.MinConns = pc.MinConns
	}
	if pc.MaxConns > 0 {
		poolCfg.MaxConns = pc.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &PostgresStore{pool: pool}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres not initialized")
	}
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS queues (
			id                           BIGSERIAL PRIMARY KEY,
			name                         TEXT NOT NULL UNIQUE,
			max_receives                 INTEGER,
			dead_letter_queue            TEXT,
			retention_timeout            INTERVAL NOT NULL,
			visibility_timeout           INTERVAL NOT NULL,
			message_delay                INTERVAL NOT NULL,
			content_based_deduplication  BOOLEAN NOT NULL DEFAULT false,
			created_at                   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at                   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id                BYTEA NOT NULL PRIMARY KEY,
			payload           BYTEA NOT NULL,
			content_type      TEXT NOT NULL,
			content_encoding  TEXT,
			hash              TEXT,
			queue             TEXT NOT NULL REFERENCES queues(name) ON DELETE CASCADE,
			receives          INTEGER NOT NULL DEFAULT 0,
			visible_since     TIMESTAMPTZ NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			trace_id          BYTEA
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS messages_queue_hash_idx
			ON messages (queue, hash) WHERE hash IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS messages_queue_visible_since_idx
			ON messages (queue, visible_since)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// intervalFromDuration clamps d into a pgtype.Interval expressed purely
// in microseconds; out-of-range durations clamp to the nearest
// representable int64 microsecond count rather than erroring, since
// callers have already validated durations fit by the time they reach
// here.
func intervalFromDuration(d time.Duration) pgtype.Interval {
	micros := d.Microseconds()
	return pgtype.Interval{Microseconds: micros, Days: 0, Months: 0, Valid: true}
}

func durationFromInterval(iv pgtype.Interval) time.Duration {
	total := time.Duration(iv.Microseconds) * time.Microsecond
	total += time.Duration(iv.Days) * 24 * time.Hour
	total += time.Duration(iv.Months) * 30 * 24 * time.Hour
	return total
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func secondsToDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}

func secondsSince(t time.Time) float64 {
	return time.Since(t).Seconds()
}

var _ Repository = (*PostgresStore)(nil)
