package queue

import (
	"context"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

const redisChannelPrefix = "mqs:notify:"

// RedisFanout mirrors Signal calls onto a Redis PUBLISH channel per
// queue, and Listen forwards that channel's messages to the local
// registry. It wraps a *Registry rather than replacing it: the
// single-process wait/notify contract is unchanged. A process's local
// waiters are only reached by other processes' publishes for queues
// Listen has been called on.
type RedisFanout struct {
	registry *Registry
	client   *redis.Client
	logger   *slog.Logger
	cancel   context.CancelFunc
}

// NewRedisFanout wraps registry and client. It subscribes to nothing
// itself, and neither does Signal: a queue's channel is only subscribed
// to by Listen.
func NewRedisFanout(registry *Registry, client *redis.Client, logger *slog.Logger) *RedisFanout {
	return &RedisFanout{registry: registry, client: client, logger: logger}
}

// Signal publishes to the queue's Redis channel in addition to waking a
// local waiter via the wrapped Registry. Publish errors are logged, not
// returned: a notify failure must never fail the publish request that
// triggered it (the long-poll receiver still gets picked up on its own
// timeout boundary).
func (f *RedisFanout) Signal(ctx context.Context, queue string) {
	f.registry.Signal(queue)
	if err := f.client.Publish(ctx, redisChannelPrefix+queue, "1").Err(); err != nil {
		f.logger.Warn("redis notify publish failed", "queue", queue, "error", err)
	}
}

// Listen subscribes to a queue's channel and forwards every message to
// the local registry until ctx is cancelled. The message engine's
// Receive does not call it; it parks on the local registry only.
func (f *RedisFanout) Listen(ctx context.Context, queue string) {
	sub := f.client.Subscribe(ctx, redisChannelPrefix+queue)
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg != nil {
					f.registry.Signal(queue)
				}
			}
		}
	}()
}
