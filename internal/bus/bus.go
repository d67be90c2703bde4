// Package bus provides publish/subscribe transport for engine events.
package bus

import "context"

// Handler consumes one message. Returning an error only logs it: delivery is
// at-least-once, so handlers must be idempotent rather than rely on retries.
type Handler func(ctx context.Context, payload []byte) error

// Bus is the pub/sub interface used by processors and the correlator.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, handler Handler) error
}
