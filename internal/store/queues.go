package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oriys/mqs/internal/mqs"
)

const queueColumns = `id, name, max_receives, dead_letter_queue, retention_timeout,
	visibility_timeout, message_delay, content_based_deduplication, created_at, updated_at`

func scanQueue(row pgx.Row) (*mqs.Queue, error) {
	var (
		q                 mqs.Queue
		maxReceives       *int32
		deadLetterQueue   *string
		retentionTimeout  pgtype.Interval
		visibilityTimeout pgtype.Interval
		messageDelay      pgtype.Interval
	)
	if err := row.Scan(
		&q.ID, &q.Name, &maxReceives, &deadLetterQueue,
		&retentionTimeout, &visibilityTimeout, &messageDelay,
		&q.MessageDeduplication, &q.CreatedAt, &q.UpdatedAt,
	); err != nil {
		return nil, err
	}

	q.RetentionTimeout = durationFromInterval(retentionTimeout)
	q.VisibilityTimeout = durationFromInterval(visibilityTimeout)
	q.MessageDelay = durationFromInterval(messageDelay)
	if maxReceives != nil && deadLetterQueue != nil {
		q.RedrivePolicy = &mqs.RedrivePolicy{
			MaxReceives:     int(*maxReceives),
			DeadLetterQueue: *deadLetterQueue,
		}
	}
	return &q, nil
}

func (s *PostgresStore) FindQueue(ctx context.Context, name string) (*mqs.Queue, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+queueColumns+` FROM queues WHERE name = $1`, name)
	q, err := scanQueue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find queue: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) InsertQueue(ctx context.Context, name string, cfg mqs.QueueConfig) (*mqs.Queue, error) {
	var maxReceives *int32
	var deadLetterQueue *string
	if cfg.RedrivePolicy != nil {
		mr := int32(cfg.RedrivePolicy.MaxReceives)
		maxReceives = &mr
		deadLetterQueue = &cfg.RedrivePolicy.DeadLetterQueue
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO queues (name, max_receives, dead_letter_queue, retention_timeout,
			visibility_timeout, message_delay, content_based_deduplication)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+queueColumns,
		name, maxReceives, deadLetterQueue,
		intervalFromDuration(secondsToDuration(cfg.RetentionTimeout)),
		intervalFromDuration(secondsToDuration(cfg.VisibilityTimeout)),
		intervalFromDuration(secondsToDuration(cfg.MessageDelay)),
		cfg.MessageDeduplication,
	)
	q, err := scanQueue(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("insert queue: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) UpdateQueue(ctx context.Context, name string, cfg mqs.QueueConfig) (*mqs.Queue, error) {
	var maxReceives *int32
	var deadLetterQueue *string
	if cfg.RedrivePolicy != nil {
		mr := int32(cfg.RedrivePolicy.MaxReceives)
		maxReceives = &mr
		deadLetterQueue = &cfg.RedrivePolicy.DeadLetterQueue
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE queues SET
			max_receives = $2,
			dead_letter_queue = $3,
			retention_timeout = $4,
			visibility_timeout = $5,
			message_delay = $6,
			content_based_deduplication = $7,
			updated_at = now()
		WHERE name = $1
		RETURNING `+queueColumns,
		name, maxReceives, deadLetterQueue,
		intervalFromDuration(secondsToDuration(cfg.RetentionTimeout)),
		intervalFromDuration(secondsToDuration(cfg.VisibilityTimeout)),
		intervalFromDuration(secondsToDuration(cfg.MessageDelay)),
		cfg.MessageDeduplication,
	)
	q, err := scanQueue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update queue: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) DeleteQueue(ctx context.Context, name string) (*mqs.Queue, error) {
	row := s.pool.QueryRow(ctx, `DELETE FROM queues WHERE name = $1 RETURNING `+queueColumns, name)
	q, err := scanQueue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete queue: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) ListQueues(ctx context.Context, offset, limit *int64) ([]*mqs.Queue, error) {
	query := `SELECT ` + queueColumns + ` FROM queues ORDER BY id ASC`
	args := make([]any, 0, 2)
	if limit != nil {
		args = append(args, *limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if offset != nil {
		args = append(args, *offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()

	var queues []*mqs.Queue
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, fmt.Errorf("list queues: %w", err)
		}
		queues = append(queues, q)
	}
	return queues, rows.Err()
}

func (s *PostgresStore) CountQueues(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM queues`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count queues: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) DescribeQueue(ctx context.Context, name string) (*QueueDescription, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("describe queue: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	q, err := scanQueue(tx.QueryRow(ctx, `SELECT `+queueColumns+` FROM queues WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("describe queue: %w", err)
	}

	desc := &QueueDescription{Queue: q}

	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE queue = $1`, name,
	).Scan(&desc.TotalMessages); err != nil {
		return nil, fmt.Errorf("describe queue: count total: %w", err)
	}

	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE queue = $1 AND visible_since <= now()`, name,
	).Scan(&desc.VisibleMessages); err != nil {
		return nil, fmt.Errorf("describe queue: count visible: %w", err)
	}

	// Oldest-message age excludes rows currently locked by an in-flight
	// FetchForReceive/DeleteMessage(s) transaction: FOR KEY SHARE SKIP
	// LOCKED skips them rather than blocking or counting them.
	var oldest pgtype.Timestamptz
	err = tx.QueryRow(ctx, `
		SELECT created_at FROM messages
		WHERE queue = $1
		ORDER BY created_at ASC
		FOR KEY SHARE SKIP LOCKED
		LIMIT 1
	`, name).Scan(&oldest)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		desc.OldestMessageAgeSeconds = 0
	case err != nil:
		return nil, fmt.Errorf("describe queue: oldest message: %w", err)
	default:
		desc.OldestMessageAgeSeconds = int64(secondsSince(oldest.Time))
	}

	return desc, nil
}
