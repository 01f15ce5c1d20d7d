package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/mqs/internal/mqs"
)

func TestFakeStoreQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewFakeStore()

	cfg := mqs.QueueConfig{VisibilityTimeout: 30, RetentionTimeout: 3600}
	q, err := s.InsertQueue(ctx, "orders", cfg)
	if err != nil || q == nil {
		t.Fatalf("insert queue: %v %v", q, err)
	}

	if dup, err := s.InsertQueue(ctx, "orders", cfg); err != nil || dup != nil {
		t.Fatalf("expected nil,nil on duplicate insert, got %v %v", dup, err)
	}

	found, err := s.FindQueue(ctx, "orders")
	if err != nil || found == nil || found.Name != "orders" {
		t.Fatalf("find queue: %v %v", found, err)
	}

	cfg.VisibilityTimeout = 60
	updated, err := s.UpdateQueue(ctx, "orders", cfg)
	if err != nil || updated.VisibilityTimeout != 60*time.Second {
		t.Fatalf("update queue: %v %v", updated, err)
	}

	deleted, err := s.DeleteQueue(ctx, "orders")
	if err != nil || deleted == nil {
		t.Fatalf("delete queue: %v %v", deleted, err)
	}
	if missing, err := s.FindQueue(ctx, "orders"); err != nil || missing != nil {
		t.Fatalf("expected queue gone after delete, got %v %v", missing, err)
	}
}

func TestFakeStoreMessageDeduplication(t *testing.T) {
	ctx := context.Background()
	s := NewFakeStore()
	input := mqs.MessageInput{Payload: []byte("hello"), ContentType: "text/plain"}

	ok, err := s.InsertMessage(ctx, "q", true, 0, input)
	if err != nil || !ok {
		t.Fatalf("first insert should succeed: %v %v", ok, err)
	}
	ok, err = s.InsertMessage(ctx, "q", true, 0, input)
	if err != nil || ok {
		t.Fatalf("duplicate insert should report false,nil: %v %v", ok, err)
	}
}

func TestFakeStoreFetchForReceiveRespectsVisibility(t *testing.T) {
	ctx := context.Background()
	s := NewFakeStore()
	q := &mqs.Queue{Name: "q", VisibilityTimeout: time.Minute}

	if _, err := s.InsertMessage(ctx, "q", false, 0, mqs.MessageInput{Payload: []byte("a")}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.InsertMessage(ctx, "q", false, time.Hour, mqs.MessageInput{Payload: []byte("b")}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	msgs, err := s.FetchForReceive(ctx, q, 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(msgs) != 1 || string(msgs[0].Payload) != "a" {
		t.Fatalf("expected only the immediately-visible message, got %+v", msgs)
	}

	// A second fetch before the visibility timeout elapses must not
	// redeliver the message just leased.
	again, err := s.FetchForReceive(ctx, q, 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no redelivery within the visibility window, got %+v", again)
	}
}

func TestFakeStoreMoveMessages(t *testing.T) {
	ctx := context.Background()
	s := NewFakeStore()
	q := &mqs.Queue{Name: "q"}

	if _, err := s.InsertMessage(ctx, "q", false, 0, mqs.MessageInput{Payload: []byte("a")}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	leased, err := s.FetchForReceive(ctx, q, 1)
	if err != nil || len(leased) != 1 {
		t.Fatalf("fetch: %v %v", leased, err)
	}

	moved, err := s.MoveMessages(ctx, []uuid.UUID{leased[0].ID}, "dlq")
	if err != nil || moved != 1 {
		t.Fatalf("move: %v %v", moved, err)
	}

	desc, err := func() (*QueueDescription, error) {
		if _, err := s.InsertQueue(ctx, "dlq", mqs.QueueConfig{}); err != nil {
			return nil, err
		}
		return s.DescribeQueue(ctx, "dlq")
	}()
	if err != nil || desc == nil || desc.TotalMessages != 1 {
		t.Fatalf("describe dlq: %+v %v", desc, err)
	}
}
