// Package mqs holds the core queue/message data model shared by the
// repository, the engines, and the HTTP layer.
package mqs

import (
	"time"

	"github.com/google/uuid"
)

// RedrivePolicy moves a message to a dead-letter queue once it has been
// received max_receives times without being deleted.
type RedrivePolicy struct {
	MaxReceives     int    `json:"max_receives"`
	DeadLetterQueue string `json:"dead_letter_queue"`
}

// QueueConfig is the set of user-configurable parameters for a queue.
type QueueConfig struct {
	RedrivePolicy        *RedrivePolicy `json:"redrive_policy"`
	RetentionTimeout     int64          `json:"retention_timeout"`
	VisibilityTimeout    int64          `json:"visibility_timeout"`
	MessageDelay         int64          `json:"message_delay"`
	MessageDeduplication bool           `json:"message_deduplication"`
}

// Queue is a named durable buffer with delivery policies.
type Queue struct {
	ID                   int64
	Name                 string
	RedrivePolicy        *RedrivePolicy
	RetentionTimeout     time.Duration
	VisibilityTimeout    time.Duration
	MessageDelay         time.Duration
	MessageDeduplication bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Clone returns a deep copy of q, safe for a caller to mutate without
// affecting the original (used by the queue cache to hand out defensive
// copies on a hit).
func (q *Queue) Clone() *Queue {
	cp := *q
	if q.RedrivePolicy != nil {
		policy := *q.RedrivePolicy
		cp.RedrivePolicy = &policy
	}
	return &cp
}

// Config projects the persisted queue back into the wire config shape.
func (q *Queue) Config() QueueConfig {
	return QueueConfig{
		RedrivePolicy:        q.RedrivePolicy,
		RetentionTimeout:     int64(q.RetentionTimeout / time.Second),
		VisibilityTimeout:    int64(q.VisibilityTimeout / time.Second),
		MessageDelay:         int64(q.MessageDelay / time.Second),
		MessageDeduplication: q.MessageDeduplication,
	}
}

// QueueConfigOutput is QueueConfig plus the queue's name, the shape
// returned by create/update/delete/list.
type QueueConfigOutput struct {
	Name string `json:"name"`
	QueueConfig
}

// ConfigOutput projects the queue into the named wire shape.
func (q *Queue) ConfigOutput() QueueConfigOutput {
	return QueueConfigOutput{Name: q.Name, QueueConfig: q.Config()}
}

// QueueStatus holds the aggregate counts reported by describe_queue.
type QueueStatus struct {
	Messages         int64 `json:"messages"`
	VisibleMessages  int64 `json:"visible_messages"`
	OldestMessageAge int64 `json:"oldest_message_age"`
}

// QueueDescription is the full body of GET /queues/{name}.
type QueueDescription struct {
	QueueConfigOutput
	Status QueueStatus `json:"status"`
}

// QueuesResponse is the body of GET /queues.
type QueuesResponse struct {
	Queues []QueueConfigOutput `json:"queues"`
	Total  int64               `json:"total"`
}

// Message is a single opaque payload stored in a queue.
type Message struct {
	ID              uuid.UUID
	Payload         []byte
	ContentType     string
	ContentEncoding *string
	Hash            *string
	Queue           string
	Receives        int32
	VisibleSince    time.Time
	CreatedAt       time.Time
	TraceID         *uuid.UUID
}

// DefaultContentType is used when a publish omits Content-Type.
const DefaultContentType = "application/octet-stream"

// MessageInput is what publish hands to the repository for a single part.
type MessageInput struct {
	Payload         []byte
	ContentType     string
	ContentEncoding *string
	TraceID         *uuid.UUID
}

// ErrorResponse is the JSON body shape for every 4xx/5xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
