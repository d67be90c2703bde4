package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus over Redis pub/sub. Each subscription runs its own
// receive goroutine, so slow handlers on one topic never delay another.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger

	mu     sync.Mutex
	subs   []*redis.PubSub
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus creates a bus over the given Redis client.
func NewRedisBus(client *redis.Client, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisBus{client: client, logger: logger, ctx: ctx, cancel: cancel}
}

// Publish sends payload to all current subscribers of topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for topic and starts its receive loop.
func (b *RedisBus) Subscribe(topic string, handler Handler) error {
	ps := b.client.Subscribe(b.ctx, topic)
	// Wait for the subscription to be confirmed so messages published right
	// after Subscribe returns are not lost.
	if _, err := ps.Receive(b.ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, ps)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ch := ps.Channel()
		for {
			select {
			case <-b.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.dispatch(topic, handler, []byte(msg.Payload))
			}
		}
	}()

	b.logger.Info("subscribed", "topic", topic)
	return nil
}

func (b *RedisBus) dispatch(topic string, handler Handler, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked", "topic", topic, "panic", r)
		}
	}()
	if err := handler(b.ctx, payload); err != nil {
		b.logger.Warn("handler failed", "topic", topic, "error", err)
	}
}

// Close stops all subscription loops.
func (b *RedisBus) Close() error {
	b.cancel()
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	for _, ps := range subs {
		_ = ps.Close()
	}
	b.wg.Wait()
	return nil
}
