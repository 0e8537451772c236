// Package bus provides the realtime fan-out channel used to push ride
// offers and status updates at connected drivers and riders. Delivery
// is at-most-once: subscribers that are not connected at publish time
// never see the message.
package bus

import "context"

// Handler consumes a message delivered on a subscribed channel.
type Handler func(channel string, payload []byte)

// Bus is a lightweight publish/subscribe fabric. Publish reports how
// many subscribers received the message, which the dispatcher uses to
// count reachable drivers.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
	Subscribe(ctx context.Context, channel string, handler Handler) (Unsubscribe, error)
	Close() error
}

// Unsubscribe detaches a subscription. Safe to call more than once.
type Unsubscribe func()

// PatternBus extends Bus with glob-pattern subscriptions. A trailing
// "*" matches any channel suffix, e.g. "ride:*".
type PatternBus interface {
	Bus
	PSubscribe(ctx context.Context, pattern string, handler Handler) (Unsubscribe, error)
}
