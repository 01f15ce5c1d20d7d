// Package store implements the durable repository: the queues and
// messages tables and the narrow set of operations the engines perform
// against them. Every operation is a single transactional unit against
// Postgres.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/mqs/internal/mqs"
)

// QueueDescription is the result of DescribeQueue: the queue row plus
// the two aggregate counts and the oldest-message age describe_queue
// reports.
type QueueDescription struct {
	Queue                   *mqs.Queue
	TotalMessages           int64
	VisibleMessages         int64
	OldestMessageAgeSeconds int64
}

// Repository is the full set of operations the message and queue
// engines need. A single interface (rather than separate QueueOps/
// MessageOps) keeps one implementation, PostgresStore, satisfying both;
// the fake in fake.go exists for engine-level tests.
type Repository interface {
	// Queue operations.
	FindQueue(ctx context.Context, name string) (*mqs.Queue, error)
	InsertQueue(ctx context.Context, name string, cfg mqs.QueueConfig) (*mqs.Queue, error)
	UpdateQueue(ctx context.Context, name string, cfg mqs.QueueConfig) (*mqs.Queue, error)
	DeleteQueue(ctx context.Context, name string) (*mqs.Queue, error)
	ListQueues(ctx context.Context, offset, limit *int64) ([]*mqs.Queue, error)
	CountQueues(ctx context.Context) (int64, error)
	DescribeQueue(ctx context.Context, name string) (*QueueDescription, error)

	// Message operations. messageDelay is the owning queue's message_delay;
	// the new row's visible_since is now+messageDelay.
	InsertMessage(ctx context.Context, queue string, dedup bool, messageDelay time.Duration, input mqs.MessageInput) (bool, error)
	FetchForReceive(ctx context.Context, queue *mqs.Queue, count int) ([]*mqs.Message, error)
	MoveMessages(ctx context.Context, ids []uuid.UUID, newQueue string) (int64, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteMessages(ctx context.Context, ids []uuid.UUID) (int64, error)

	Ping(ctx context.Context) error
	Close()
}
