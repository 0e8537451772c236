package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_PublishCountsReceivers(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	n, err := b.Publish(ctx, "driver:abc", []byte("offer"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	var got [][]byte
	_, err = b.Subscribe(ctx, "driver:abc", func(channel string, payload []byte) {
		got = append(got, payload)
	})
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, "driver:abc", func(channel string, payload []byte) {})
	require.NoError(t, err)

	n, err = b.Publish(ctx, "driver:abc", []byte("offer"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("offer"), got[0])
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	delivered := 0
	unsub, err := b.Subscribe(ctx, "ride:1", func(channel string, payload []byte) {
		delivered++
	})
	require.NoError(t, err)

	_, err = b.Publish(ctx, "ride:1", []byte("x"))
	require.NoError(t, err)

	unsub()
	unsub() // idempotent

	n, err := b.Publish(ctx, "ride:1", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 1, delivered)
}

func TestMemoryBus_PSubscribeMatchesPrefix(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	var channels []string
	_, err := b.PSubscribe(ctx, "driver:*", func(channel string, payload []byte) {
		channels = append(channels, channel)
	})
	require.NoError(t, err)

	n, err := b.Publish(ctx, "driver:abc", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = b.Publish(ctx, "ride:abc", []byte("x"))
	require.NoError(t, err)

	assert.Equal(t, []string{"driver:abc"}, channels)
}

func TestMemoryBus_PatternAndChannelBothCount(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	_, err := b.Subscribe(ctx, "available-drivers", func(string, []byte) {})
	require.NoError(t, err)
	_, err = b.PSubscribe(ctx, "available-drivers*", func(string, []byte) {})
	require.NoError(t, err)

	n, err := b.Publish(ctx, "available-drivers", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// The vehicle-suffixed channel only hits the pattern.
	n, err = b.Publish(ctx, "available-drivers:cab", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryBus_ExactPatternWithoutWildcard(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	_, err := b.PSubscribe(ctx, "ride:fixed", func(string, []byte) {})
	require.NoError(t, err)

	n, err := b.Publish(ctx, "ride:fixed", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = b.Publish(ctx, "ride:fixed:extra", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMemoryBus_CloseDropsSubscriptions(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	_, err := b.Subscribe(ctx, "ride:1", func(string, []byte) {})
	require.NoError(t, err)
	_, err = b.PSubscribe(ctx, "ride:*", func(string, []byte) {})
	require.NoError(t, err)

	require.NoError(t, b.Close())

	n, err := b.Publish(ctx, "ride:1", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMemoryBus_CancelledContext(t *testing.T) {
	b := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Publish(ctx, "ride:1", []byte("x"))
	assert.Error(t, err)
	_, err = b.Subscribe(ctx, "ride:1", func(string, []byte) {})
	assert.Error(t, err)
}
