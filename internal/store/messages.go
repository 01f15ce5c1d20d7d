package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oriys/mqs/internal/mqs"
)

const messageColumns = `id, payload, content_type, content_encoding, hash, queue, receives, visible_since, created_at, trace_id`

func scanMessage(row pgx.Row) (*mqs.Message, error) {
	var (
		m            mqs.Message
		idBytes      []byte
		traceIDBytes []byte
	)
	if err := row.Scan(
		&idBytes, &m.Payload, &m.ContentType, &m.ContentEncoding, &m.Hash,
		&m.Queue, &m.Receives, &m.VisibleSince, &m.CreatedAt, &traceIDBytes,
	); err != nil {
		return nil, err
	}

	id, err := uuid.FromBytes(idBytes)
	if err != nil {
		return nil, fmt.Errorf("scan message: decode id: %w", err)
	}
	m.ID = id

	if traceIDBytes != nil {
		traceID, err := uuid.FromBytes(traceIDBytes)
		if err != nil {
			return nil, fmt.Errorf("scan message: decode trace id: %w", err)
		}
		m.TraceID = &traceID
	}
	return &m, nil
}

// InsertMessage writes a single message. If the queue deduplicates by
// content and the payload's hash collides with an existing row for the
// same queue, the unique index rejects the insert and InsertMessage
// reports (false, nil) rather than an error.
func (s *PostgresStore) InsertMessage(ctx context.Context, queue string, dedup bool, messageDelay time.Duration, input mqs.MessageInput) (bool, error) {
	id := uuid.New()
	contentType := input.ContentType
	if contentType == "" {
		contentType = mqs.DefaultContentType
	}

	var hash *string
	if dedup {
		h := hashPayload(input.Payload)
		hash = &h
	}

	var traceIDBytes []byte
	if input.TraceID != nil {
		traceIDBytes = (*input.TraceID)[:]
	}

	visibleSince := time.Now().Add(messageDelay)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, payload, content_type, content_encoding, hash, queue, receives, visible_since, trace_id)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)
	`, id[:], input.Payload, contentType, input.ContentEncoding, hash, queue, visibleSince, traceIDBytes)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert message: %w", err)
	}
	return true, nil
}

// FetchForReceive atomically leases up to count messages from queue:
// visible rows are locked with FOR UPDATE SKIP LOCKED so concurrent
// receivers never contend on, or double-deliver, the same row, their
// visible_since is pushed out by the queue's visibility timeout, and
// their receive counter is incremented, in one statement.
func (s *PostgresStore) FetchForReceive(ctx context.Context, queue *mqs.Queue, count int) ([]*mqs.Message, error) {
	now := time.Now()
	rows, err := s.pool.Query(ctx, `
		UPDATE messages SET
			visible_since = $1::timestamptz + $2::interval,
			receives = receives + 1
		WHERE id IN (
			SELECT id FROM messages
			WHERE queue = $3 AND visible_since <= $1
			ORDER BY visible_since ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $4
		)
		RETURNING `+messageColumns,
		now, intervalFromDuration(queue.VisibilityTimeout), queue.Name, count,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch for receive: %w", err)
	}
	defer rows.Close()

	var messages []*mqs.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch for receive: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MoveMessages redrives ids into newQueue, resetting their receive
// counter so the destination queue's own redrive policy starts fresh.
func (s *PostgresStore) MoveMessages(ctx context.Context, ids []uuid.UUID, newQueue string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	idBytes := make([][]byte, len(ids))
	for i, id := range ids {
		idBytes[i] = id[:]
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET queue = $1, receives = 0
		WHERE id = ANY($2)
	`, newQueue, idBytes)
	if err != nil {
		return 0, fmt.Errorf("move messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id[:])
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteMessages(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	idBytes := make([][]byte, len(ids))
	for i, id := range ids {
		idBytes[i] = id[:]
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = ANY($1)`, idBytes)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	return tag.RowsAffected(), nil
}
