package engine

import (
	"context"
	"testing"

	"github.com/oriys/mqs/internal/apperr"
	"github.com/oriys/mqs/internal/mqs"
	"github.com/oriys/mqs/internal/store"
)

func TestQueueEngineCreateRejectsDuplicate(t *testing.T) {
	repo := store.NewFakeStore()
	e := NewQueueEngine(repo)
	ctx := context.Background()
	cfg := mqs.QueueConfig{VisibilityTimeout: 30, RetentionTimeout: 3600}

	if _, err := e.Create(ctx, "q1", cfg); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := e.Create(ctx, "q1", cfg)
	if apperr.As(err).Kind != apperr.Conflict {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestQueueEngineUpdateMissingReturnsNotFound(t *testing.T) {
	repo := store.NewFakeStore()
	e := NewQueueEngine(repo)
	_, err := e.Update(context.Background(), "missing", mqs.QueueConfig{})
	if apperr.As(err).Kind != apperr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestQueueEngineValidatesRedrivePolicy(t *testing.T) {
	repo := store.NewFakeStore()
	e := NewQueueEngine(repo)
	cfg := mqs.QueueConfig{RedrivePolicy: &mqs.RedrivePolicy{MaxReceives: 0, DeadLetterQueue: "dlq"}}
	_, err := e.Create(context.Background(), "q1", cfg)
	if apperr.As(err).Kind != apperr.Validation {
		t.Fatalf("expected Validation, got %v", err)
	}
}

func TestQueueEngineDescribeMissingReturnsNotFound(t *testing.T) {
	repo := store.NewFakeStore()
	e := NewQueueEngine(repo)
	_, err := e.Describe(context.Background(), "missing")
	if apperr.As(err).Kind != apperr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
