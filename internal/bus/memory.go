package bus

import (
	"context"
	"sync"
)

// MemoryBus is a synchronous in-process Bus for tests. Publish invokes every
// handler inline and records all published messages for assertions.
type MemoryBus struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	messages map[string][][]byte
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus creates an empty in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]Handler),
		messages: make(map[string][][]byte),
	}
}

// Publish records the message and delivers it to subscribers synchronously.
func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	stored := make([]byte, len(payload))
	copy(stored, payload)
	b.messages[topic] = append(b.messages[topic], stored)
	handlers := append([]Handler(nil), b.handlers[topic]...)
	b.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a handler for topic.
func (b *MemoryBus) Subscribe(topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

// Messages returns all payloads published to topic (test helper).
func (b *MemoryBus) Messages(topic string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.messages[topic]...)
}
