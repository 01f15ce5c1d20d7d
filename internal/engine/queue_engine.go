// Package engine implements the queue and message lifecycle operations
// that sit between the HTTP handlers and the repository, cache, and
// wait/notify registry.
package engine

import (
	"context"
	"fmt"

	"github.com/oriys/mqs/internal/apperr"
	"github.com/oriys/mqs/internal/cache"
	"github.com/oriys/mqs/internal/metrics"
	"github.com/oriys/mqs/internal/mqs"
	"github.com/oriys/mqs/internal/store"
)

// QueueEngine implements create/update/delete/list/describe on top of a
// repository. It does not use the queue cache: every operation here is
// a direct, consistent read or write, since cache staleness is only
// acceptable on the receive/publish hot paths.
type QueueEngine struct {
	repo store.Repository
}

// NewQueueEngine returns a QueueEngine backed by repo.
func NewQueueEngine(repo store.Repository) *QueueEngine {
	return &QueueEngine{repo: repo}
}

// ValidateConfig enforces queue config field constraints before any
// store operation runs.
func ValidateConfig(cfg mqs.QueueConfig) error {
	if cfg.RetentionTimeout < 0 {
		return apperr.NewValidation("retention_timeout must be >= 0")
	}
	if cfg.VisibilityTimeout < 0 {
		return apperr.NewValidation("visibility_timeout must be >= 0")
	}
	if cfg.MessageDelay < 0 {
		return apperr.NewValidation("message_delay must be >= 0")
	}
	if cfg.RedrivePolicy != nil {
		if cfg.RedrivePolicy.MaxReceives <= 0 {
			return apperr.NewValidation("redrive_policy.max_receives must be > 0")
		}
		if cfg.RedrivePolicy.DeadLetterQueue == "" {
			return apperr.NewValidation("redrive_policy.dead_letter_queue is required")
		}
	}
	return nil
}

// Create inserts a new queue. Returns apperr Conflict if the name is
// already taken.
func (e *QueueEngine) Create(ctx context.Context, name string, cfg mqs.QueueConfig) (*mqs.Queue, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	q, err := e.repo.InsertQueue(ctx, name, cfg)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("insert queue %q: %w", name, err))
	}
	if q == nil {
		return nil, apperr.NewConflict(fmt.Sprintf("queue %q already exists", name))
	}
	return q, nil
}

// Update overwrites an existing queue's config. Returns apperr NotFound
// if no such queue exists.
func (e *QueueEngine) Update(ctx context.Context, name string, cfg mqs.QueueConfig) (*mqs.Queue, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	q, err := e.repo.UpdateQueue(ctx, name, cfg)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("update queue %q: %w", name, err))
	}
	if q == nil {
		return nil, apperr.NewNotFound(fmt.Sprintf("queue %q not found", name))
	}
	return q, nil
}

// Delete removes a queue and (via ON DELETE CASCADE) its messages.
func (e *QueueEngine) Delete(ctx context.Context, name string) (*mqs.Queue, error) {
	q, err := e.repo.DeleteQueue(ctx, name)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("delete queue %q: %w", name, err))
	}
	if q == nil {
		return nil, apperr.NewNotFound(fmt.Sprintf("queue %q not found", name))
	}
	return q, nil
}

// Describe returns a queue's config plus its live message counts.
func (e *QueueEngine) Describe(ctx context.Context, name string) (*store.QueueDescription, error) {
	desc, err := e.repo.DescribeQueue(ctx, name)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("describe queue %q: %w", name, err))
	}
	if desc == nil {
		return nil, apperr.NewNotFound(fmt.Sprintf("queue %q not found", name))
	}
	return desc, nil
}

// List returns a page of queues and the total count across all queues.
func (e *QueueEngine) List(ctx context.Context, offset, limit *int64) ([]*mqs.Queue, int64, error) {
	queues, err := e.repo.ListQueues(ctx, offset, limit)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Errorf("list queues: %w", err))
	}
	total, err := e.repo.CountQueues(ctx)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Errorf("count queues: %w", err))
	}
	return queues, total, nil
}

// resolveQueue resolves name through the cache, the shared hot-path
// entry point publish and receive both use, and publishes the cache's
// hit/miss totals to the metrics gauges.
func resolveQueue(ctx context.Context, repo store.Repository, qc *cache.QueueCache, name string) (*mqs.Queue, error) {
	q, err := qc.Lookup(ctx, name, func(ctx context.Context, name string) (*mqs.Queue, error) {
		return repo.FindQueue(ctx, name)
	})
	metrics.RecordCacheStats(qc.Stats())
	return q, err
}
