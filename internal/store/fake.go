package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/mqs/internal/mqs"
)

// FakeStore is an in-memory Repository used by engine-level tests that
// have no business exercising a real Postgres connection.
type FakeStore struct {
	mu       sync.Mutex
	queues   map[string]*mqs.Queue
	messages map[uuid.UUID]*mqs.Message
	nextID   int64
}

// NewFakeStore returns an empty, ready-to-use FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		queues:   make(map[string]*mqs.Queue),
		messages: make(map[uuid.UUID]*mqs.Message),
	}
}

func (f *FakeStore) FindQueue(_ context.Context, name string) (*mqs.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[name]
	if !ok {
		return nil, nil
	}
	return q.Clone(), nil
}

func (f *FakeStore) InsertQueue(_ context.Context, name string, cfg mqs.QueueConfig) (*mqs.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.queues[name]; exists {
		return nil, nil
	}
	f.nextID++
	now := time.Now()
	q := &mqs.Queue{
		ID:                   f.nextID,
		Name:                 name,
		RedrivePolicy:        cfg.RedrivePolicy,
		RetentionTimeout:     time.Duration(cfg.RetentionTimeout) * time.Second,
		VisibilityTimeout:    time.Duration(cfg.VisibilityTimeout) * time.Second,
		MessageDelay:         time.Duration(cfg.MessageDelay) * time.Second,
		MessageDeduplication: cfg.MessageDeduplication,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	f.queues[name] = q
	return q.Clone(), nil
}

func (f *FakeStore) UpdateQueue(_ context.Context, name string, cfg mqs.QueueConfig) (*mqs.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[name]
	if !ok {
		return nil, nil
	}
	q.RedrivePolicy = cfg.RedrivePolicy
	q.RetentionTimeout = time.Duration(cfg.RetentionTimeout) * time.Second
	q.VisibilityTimeout = time.Duration(cfg.VisibilityTimeout) * time.Second
	q.MessageDelay = time.Duration(cfg.MessageDelay) * time.Second
	q.MessageDeduplication = cfg.MessageDeduplication
	q.UpdatedAt = time.Now()
	return q.Clone(), nil
}

func (f *FakeStore) DeleteQueue(_ context.Context, name string) (*mqs.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[name]
	if !ok {
		return nil, nil
	}
	delete(f.queues, name)
	for id, m := range f.messages {
		if m.Queue == name {
			delete(f.messages, id)
		}
	}
	return q.Clone(), nil
}

func (f *FakeStore) ListQueues(_ context.Context, offset, limit *int64) ([]*mqs.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]*mqs.Queue, 0, len(f.queues))
	for _, q := range f.queues {
		all = append(all, q)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := int64(0)
	if offset != nil {
		start = *offset
	}
	end := int64(len(all))
	if limit != nil && start+*limit < end {
		end = start + *limit
	}
	if start > int64(len(all)) {
		start = int64(len(all))
	}
	if end < start {
		end = start
	}

	queues := make([]*mqs.Queue, 0, end-start)
	for _, q := range all[start:end] {
		queues = append(queues, q.Clone())
	}
	return queues, nil
}

func (f *FakeStore) CountQueues(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.queues)), nil
}

func (f *FakeStore) DescribeQueue(_ context.Context, name string) (*QueueDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[name]
	if !ok {
		return nil, nil
	}

	desc := &QueueDescription{Queue: q.Clone()}
	var oldest time.Time
	now := time.Now()
	for _, m := range f.messages {
		if m.Queue != name {
			continue
		}
		desc.TotalMessages++
		if !m.VisibleSince.After(now) {
			desc.VisibleMessages++
		}
		if oldest.IsZero() || m.CreatedAt.Before(oldest) {
			oldest = m.CreatedAt
		}
	}
	if !oldest.IsZero() {
		desc.OldestMessageAgeSeconds = int64(now.Sub(oldest).Seconds())
	}
	return desc, nil
}

func (f *FakeStore) InsertMessage(_ context.Context, queue string, dedup bool, messageDelay time.Duration, input mqs.MessageInput) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var hash *string
	if dedup {
		h := string(input.Payload)
		hash = &h
		for _, m := range f.messages {
			if m.Queue == queue && m.Hash != nil && *m.Hash == h {
				return false, nil
			}
		}
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = mqs.DefaultContentType
	}

	id := uuid.New()
	now := time.Now()
	f.messages[id] = &mqs.Message{
		ID:              id,
		Payload:         append([]byte(nil), input.Payload...),
		ContentType:     contentType,
		ContentEncoding: input.ContentEncoding,
		Hash:            hash,
		Queue:           queue,
		Receives:        0,
		VisibleSince:    now.Add(messageDelay),
		CreatedAt:       now,
		TraceID:         input.TraceID,
	}
	return true, nil
}

func (f *FakeStore) FetchForReceive(_ context.Context, queue *mqs.Queue, count int) ([]*mqs.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var candidates []*mqs.Message
	now := time.Now()
	for _, m := range f.messages {
		if m.Queue == queue.Name && !m.VisibleSince.After(now) {
			candidates = append(candidates, m)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].VisibleSince.Before(candidates[j].VisibleSince)
	})
	if len(candidates) > count {
		candidates = candidates[:count]
	}

	leased := make([]*mqs.Message, 0, len(candidates))
	for _, m := range candidates {
		m.VisibleSince = now.Add(queue.VisibilityTimeout)
		m.Receives++
		cp := *m
		leased = append(leased, &cp)
	}
	return leased, nil
}

func (f *FakeStore) MoveMessages(_ context.Context, ids []uuid.UUID, newQueue string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var moved int64
	for _, id := range ids {
		if m, ok := f.messages[id]; ok {
			m.Queue = newQueue
			m.Receives = 0
			moved++
		}
	}
	return moved, nil
}

func (f *FakeStore) DeleteMessage(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[id]; !ok {
		return false, nil
	}
	delete(f.messages, id)
	return true, nil
}

func (f *FakeStore) DeleteMessages(_ context.Context, ids []uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		if _, ok := f.messages[id]; ok {
			delete(f.messages, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *FakeStore) Ping(_ context.Context) error { return nil }
func (f *FakeStore) Close()                       {}

var _ Repository = (*FakeStore)(nil)
