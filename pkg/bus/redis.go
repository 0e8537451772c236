package bus

import (
	"context"
	"sync"

	"github.com/richxcame/ride-dispatch/pkg/logger"
	"github.com/richxcame/ride-dispatch/pkg/redis"
	"go.uber.org/zap"
)

// RedisBus backs the Bus on Redis pub/sub so offers reach drivers
// connected to any instance. PUBLISH's receiver count feeds straight
// through as the delivery count.
type RedisBus struct {
	client *redis.Client

	mu     sync.Mutex
	cancel []context.CancelFunc
}

// NewRedisBus creates a Redis-backed bus.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// Publish sends the payload on the channel and returns the number of
// subscribers Redis delivered it to.
func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	return b.client.PublishMessage(ctx, channel, payload)
}

// Subscribe opens a Redis subscription and pumps messages into the
// handler until unsubscribed.
func (b *RedisBus) Subscribe(ctx context.Context, channel string, handler Handler) (Unsubscribe, error) {
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := b.client.SubscribeChannel(subCtx, channel)

	// Wait for the subscription to be active so publishes immediately
	// after Subscribe returns are not lost.
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, err
	}

	b.mu.Lock()
	b.cancel = append(b.cancel, cancel)
	b.mu.Unlock()

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Channel, []byte(msg.Payload))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			if err := pubsub.Close(); err != nil {
				logger.Warn("failed to close subscription",
					zap.String("channel", channel),
					zap.Error(err),
				)
			}
		})
	}, nil
}

// PSubscribe opens a Redis pattern subscription (PSUBSCRIBE).
func (b *RedisBus) PSubscribe(ctx context.Context, pattern string, handler Handler) (Unsubscribe, error) {
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := b.client.PSubscribe(subCtx, pattern)

	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, err
	}

	b.mu.Lock()
	b.cancel = append(b.cancel, cancel)
	b.mu.Unlock()

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Channel, []byte(msg.Payload))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			if err := pubsub.Close(); err != nil {
				logger.Warn("failed to close pattern subscription",
					zap.String("pattern", pattern),
					zap.Error(err),
				)
			}
		})
	}, nil
}

// Close cancels all subscriptions. The underlying Redis client is
// shared and stays open.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cancel := range b.cancel {
		cancel()
	}
	b.cancel = nil
	return nil
}
