package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/mqs/internal/apperr"
	"github.com/oriys/mqs/internal/cache"
	"github.com/oriys/mqs/internal/metrics"
	"github.com/oriys/mqs/internal/mqs"
	"github.com/oriys/mqs/internal/multipart"
	"github.com/oriys/mqs/internal/queue"
	"github.com/oriys/mqs/internal/store"
)

// Notifier is the publish side of the wait/notify contract: signal at
// most one parked receiver on queue. *queue.Registry satisfies it
// through an adapter (see registrySignaler below); *queue.RedisFanout
// satisfies it natively.
type Notifier interface {
	Signal(ctx context.Context, queue string)
}

// registrySignaler adapts *queue.Registry's synchronous Signal to the
// ctx-taking Notifier interface so the message engine can treat a plain
// in-process registry and a Redis-backed fanout identically.
type registrySignaler struct{ registry *queue.Registry }

func (s registrySignaler) Signal(_ context.Context, name string) { s.registry.Signal(name) }

// NewRegistrySignaler wraps a bare Registry as a Notifier.
func NewRegistrySignaler(r *queue.Registry) Notifier { return registrySignaler{registry: r} }

// MessageEngine implements publish, receive, and delete on top of a
// repository, the queue cache, and the wait/notify registry.
type MessageEngine struct {
	repo     store.Repository
	cache    *cache.QueueCache
	registry *queue.Registry
	notifier Notifier
	logger   *slog.Logger
}

// NewMessageEngine wires a MessageEngine. notifier is the Signal target
// publish uses; pass NewRegistrySignaler(registry) to keep notification
// scoped to this process, or a *queue.RedisFanout to fan out across
// processes sharing the same Postgres database.
func NewMessageEngine(repo store.Repository, qc *cache.QueueCache, registry *queue.Registry, notifier Notifier, logger *slog.Logger) *MessageEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageEngine{repo: repo, cache: qc, registry: registry, notifier: notifier, logger: logger}
}

// PublishPart is one unit of payload + headers to insert, either the
// whole request body or one multipart section.
type PublishPart struct {
	Payload         []byte
	ContentType     string
	ContentEncoding *string
	TraceID         *uuid.UUID
}

// Publish inserts every part into queueName. Returns true iff at least
// one part was newly inserted (vs. deduplicated away), which the caller
// uses to pick 201 vs 200.
func (e *MessageEngine) Publish(ctx context.Context, queueName string, parts []PublishPart) (bool, error) {
	start := time.Now()
	q, err := resolveQueue(ctx, e.repo, e.cache, queueName)
	if err != nil {
		return false, apperr.Internal(fmt.Errorf("resolve queue %q: %w", queueName, err))
	}
	if q == nil {
		return false, apperr.NewNotFound(fmt.Sprintf("queue %q not found", queueName))
	}

	var anyNew bool
	for _, p := range parts {
		contentType := p.ContentType
		if contentType == "" {
			contentType = mqs.DefaultContentType
		}
		input := mqs.MessageInput{
			Payload:         p.Payload,
			ContentType:     contentType,
			ContentEncoding: p.ContentEncoding,
			TraceID:         p.TraceID,
		}

		inserted, err := e.repo.InsertMessage(ctx, queueName, q.MessageDeduplication, q.MessageDelay, input)
		if err != nil {
			return false, apperr.Internal(fmt.Errorf("insert message into %q: %w", queueName, err))
		}
		if inserted {
			anyNew = true
		} else {
			metrics.RecordDuplicateDropped(queueName)
		}
	}

	if anyNew {
		e.notifier.Signal(ctx, queueName)
	}
	metrics.RecordPublish(queueName, time.Since(start).Seconds())
	return anyNew, nil
}

// PartsFromRequest splits a publish body into one or more PublishParts,
// parsing it as multipart/mixed when contentType names that encoding
// and otherwise treating the whole body as a single part.
func PartsFromRequest(body []byte, contentType string, contentEncoding *string, traceID *uuid.UUID) ([]PublishPart, error) {
	if boundary, ok := multipart.IsMultipart(contentType); ok {
		parsed, err := multipart.Parse([]byte(boundary), body)
		if err != nil {
			return nil, apperr.NewValidation("invalid multipart body: " + err.Error())
		}
		parts := make([]PublishPart, 0, len(parsed))
		for _, p := range parsed {
			ct, _ := p.Header.Get("content-type")
			var ce *string
			if v, ok := p.Header.Get("content-encoding"); ok {
				ce = &v
			}
			var tid *uuid.UUID
			if v, ok := p.Header.Get("x-trace-id"); ok {
				if parsedID, err := uuid.Parse(v); err == nil {
					tid = &parsedID
				}
			}
			parts = append(parts, PublishPart{Payload: p.Body, ContentType: ct, ContentEncoding: ce, TraceID: tid})
		}
		return parts, nil
	}

	return []PublishPart{{Payload: body, ContentType: contentType, ContentEncoding: contentEncoding, TraceID: traceID}}, nil
}

// ReceiveResult is the outcome of Receive: zero or more leased messages,
// ready for response shaping.
type ReceiveResult struct {
	Messages []*mqs.Message
}

// Receive implements the R1-R6 algorithm: resolve the queue, lease up to
// count visible messages, apply retention expiry and redrive, and, if
// nothing came back and maxWait was requested, park once on the
// wait/notify registry before retrying exactly once.
func (e *MessageEngine) Receive(ctx context.Context, queueName string, count int, maxWait *time.Duration) (*ReceiveResult, error) {
	start := time.Now()
	q, err := resolveQueue(ctx, e.repo, e.cache, queueName)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("resolve queue %q: %w", queueName, err))
	}
	if q == nil {
		return nil, apperr.NewNotFound(fmt.Sprintf("queue %q not found", queueName))
	}

	messages, err := e.fetchAndReconcile(ctx, q, count)
	if err != nil {
		return nil, err
	}

	if len(messages) == 0 && maxWait != nil {
		metrics.IncActiveLongPolls()
		e.registry.Wait(queueName, *maxWait)
		metrics.DecActiveLongPolls()
		messages, err = e.fetchAndReconcile(ctx, q, count)
		if err != nil {
			return nil, err
		}
	}

	metrics.RecordReceive(queueName, len(messages), time.Since(start).Seconds())
	return &ReceiveResult{Messages: messages}, nil
}

// fetchAndReconcile runs one R2-R4 cycle: lease messages, then split the
// result into the reply, a delete list (expired), and a redrive list
// (receive-count exhausted), executing both batched follow-up
// statements before returning the reply.
func (e *MessageEngine) fetchAndReconcile(ctx context.Context, q *mqs.Queue, count int) ([]*mqs.Message, error) {
	leased, err := e.repo.FetchForReceive(ctx, q, count)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("fetch for receive on %q: %w", q.Name, err))
	}
	if len(leased) == 0 {
		return nil, nil
	}

	now := time.Now()
	var toDelete []uuid.UUID
	var toRedrive []uuid.UUID
	reply := make([]*mqs.Message, 0, len(leased))

	for _, m := range leased {
		// Expiry is checked first: a message both expired and due for
		// redrive is deleted, not redriven.
		if now.Sub(m.CreatedAt) > q.RetentionTimeout {
			toDelete = append(toDelete, m.ID)
			continue
		}
		if q.RedrivePolicy != nil && int(m.Receives) >= q.RedrivePolicy.MaxReceives {
			toRedrive = append(toRedrive, m.ID)
		}
		reply = append(reply, m)
	}

	if len(toDelete) > 0 {
		if _, err := e.repo.DeleteMessages(ctx, toDelete); err != nil {
			return nil, apperr.Internal(fmt.Errorf("expire messages on %q: %w", q.Name, err))
		}
		metrics.RecordExpired(q.Name, len(toDelete))
	}
	if len(toRedrive) > 0 {
		if _, err := e.repo.MoveMessages(ctx, toRedrive, q.RedrivePolicy.DeadLetterQueue); err != nil {
			// A redrive target that doesn't exist (or any other store
			// failure moving these rows) is logged and surfaced as a
			// generic internal error; it must not leak queue config
			// details to the caller.
			e.logger.Error("redrive move failed", "queue", q.Name, "dead_letter_queue", q.RedrivePolicy.DeadLetterQueue, "error", err)
			return nil, apperr.Internal(fmt.Errorf("redrive messages from %q: %w", q.Name, err))
		}
		metrics.RecordRedrive(q.Name, q.RedrivePolicy.DeadLetterQueue, len(toRedrive))
	}

	return reply, nil
}

// Delete removes a single message by id.
func (e *MessageEngine) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := e.repo.DeleteMessage(ctx, id)
	if err != nil {
		return apperr.Internal(fmt.Errorf("delete message %s: %w", id, err))
	}
	if !ok {
		return apperr.NewNotFound(fmt.Sprintf("message %s not found", id))
	}
	return nil
}
