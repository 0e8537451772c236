package bus

import (
	"context"
	"strings"
	"sync"
)

// MemoryBus is the in-process Bus used when Redis is disabled and in
// tests. Handlers run synchronously on the publishing goroutine.
type MemoryBus struct {
	mu       sync.RWMutex
	subs     map[string]map[int64]Handler
	patterns map[string]map[int64]Handler
	nextID   int64
	closed   bool
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:     make(map[string]map[int64]Handler),
		patterns: make(map[string]map[int64]Handler),
	}
}

// Publish delivers the payload to every current subscriber of the
// channel and returns how many received it.
func (b *MemoryBus) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[channel]))
	for _, h := range b.subs[channel] {
		handlers = append(handlers, h)
	}
	for pattern, subs := range b.patterns {
		if matchPattern(pattern, channel) {
			for _, h := range subs {
				handlers = append(handlers, h)
			}
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(channel, payload)
	}
	return int64(len(handlers)), nil
}

// Subscribe registers a handler for the channel.
func (b *MemoryBus) Subscribe(ctx context.Context, channel string, handler Handler) (Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int64]Handler)
	}
	b.nextID++
	id := b.nextID
	b.subs[channel][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[channel], id)
			if len(b.subs[channel]) == 0 {
				delete(b.subs, channel)
			}
		})
	}, nil
}

// PSubscribe registers a handler for every channel matching the
// pattern. Only a trailing "*" wildcard is supported.
func (b *MemoryBus) PSubscribe(ctx context.Context, pattern string, handler Handler) (Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.patterns[pattern] == nil {
		b.patterns[pattern] = make(map[int64]Handler)
	}
	b.nextID++
	id := b.nextID
	b.patterns[pattern][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.patterns[pattern], id)
			if len(b.patterns[pattern]) == 0 {
				delete(b.patterns, pattern)
			}
		})
	}, nil
}

func matchPattern(pattern, channel string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(channel, prefix)
	}
	return pattern == channel
}

// Close drops all subscriptions.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string]map[int64]Handler)
	b.patterns = make(map[string]map[int64]Handler)
	b.closed = true
	return nil
}
