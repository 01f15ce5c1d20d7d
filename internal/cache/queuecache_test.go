package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oriys/mqs/internal/mqs"
)

func TestQueueCacheHitAfterMiss(t *testing.T) {
	c := NewQueueCache()
	calls := 0
	fetch := func(_ context.Context, name string) (*mqs.Queue, error) {
		calls++
		return &mqs.Queue{Name: name}, nil
	}

	q1, err := c.Lookup(context.Background(), "q1", fetch)
	if err != nil || q1 == nil {
		t.Fatalf("unexpected miss result: %v %v", q1, err)
	}
	q2, err := c.Lookup(context.Background(), "q1", fetch)
	if err != nil || q2 == nil {
		t.Fatalf("unexpected hit result: %v %v", q2, err)
	}
	if calls != 1 {
		t.Fatalf("expected fetch called once, got %d", calls)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("expected 1 hit/1 miss, got hits=%d misses=%d", hits, misses)
	}
}

func TestQueueCacheReturnsDefensiveCopy(t *testing.T) {
	c := NewQueueCache()
	fetch := func(_ context.Context, name string) (*mqs.Queue, error) {
		return &mqs.Queue{Name: name, MessageDeduplication: false}, nil
	}

	q1, _ := c.Lookup(context.Background(), "q1", fetch)
	q1.MessageDeduplication = true

	q2, _ := c.Lookup(context.Background(), "q1", fetch)
	if q2.MessageDeduplication {
		t.Fatal("mutating a returned queue must not affect the cached copy")
	}
}

func TestQueueCacheDoesNotCacheMiss(t *testing.T) {
	c := NewQueueCache()
	calls := 0
	fetch := func(_ context.Context, name string) (*mqs.Queue, error) {
		calls++
		return nil, nil
	}

	for i := 0; i < 3; i++ {
		q, err := c.Lookup(context.Background(), "missing", fetch)
		if err != nil || q != nil {
			t.Fatalf("expected nil, nil on miss, got %v, %v", q, err)
		}
	}
	if calls != 3 {
		t.Fatalf("expected fetch called on every lookup of a negative result, got %d", calls)
	}
}

func TestQueueCachePropagatesFetchError(t *testing.T) {
	c := NewQueueCache()
	wantErr := errors.New("store unavailable")
	fetch := func(_ context.Context, name string) (*mqs.Queue, error) {
		return nil, wantErr
	}

	_, err := c.Lookup(context.Background(), "q1", fetch)
	if err != wantErr {
		t.Fatalf("expected fetch error to propagate, got %v", err)
	}
}

func TestQueueCacheExpiresAfterTTL(t *testing.T) {
	c := NewQueueCache()
	c.entries["q1"] = entry{queue: &mqs.Queue{Name: "q1"}, insertedAt: time.Now().Add(-TTL - time.Second)}

	calls := 0
	fetch := func(_ context.Context, name string) (*mqs.Queue, error) {
		calls++
		return &mqs.Queue{Name: name}, nil
	}

	if _, err := c.Lookup(context.Background(), "q1", fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected expired entry to be treated as a miss, got %d calls", calls)
	}
}
