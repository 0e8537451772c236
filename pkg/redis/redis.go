package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/ride-dispatch/pkg/config"
)

// ErrKeyNotFound is returned when a key does not exist or has expired.
var ErrKeyNotFound = errors.New("redis: key not found")

// Client wraps the Redis client
type Client struct {
	*redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// NewFromClient wraps an existing go-redis client. Used by tests with redismock.
func NewFromClient(c *redis.Client) *Client {
	return &Client{Client: c}
}

// SetWithExpiration sets a key-value pair with expiration
func (c *Client) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.Set(ctx, key, value, expiration).Err()
}

// GetString gets a string value by key
func (c *Client) GetString(ctx context.Context, key string) (string, error) {
	value, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	return value, err
}

// Delete deletes a key
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.Del(ctx, keys...).Err()
}

// Exists checks if a key exists
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// SetAdd adds members to a set
func (c *Client) SetAdd(ctx context.Context, key string, members ...interface{}) error {
	return c.SAdd(ctx, key, members...).Err()
}

// SetRemove removes members from a set
func (c *Client) SetRemove(ctx context.Context, key string, members ...interface{}) error {
	return c.SRem(ctx, key, members...).Err()
}

// SetMembers returns all members of a set
func (c *Client) SetMembers(ctx context.Context, key string) ([]string, error) {
	return c.SMembers(ctx, key).Result()
}

// MoveSetMember moves a member between two sets in a single pipelined
// round trip so a driver is never indexed under two cells at once.
func (c *Client) MoveSetMember(ctx context.Context, fromKey, toKey, member string) error {
	pipe := c.TxPipeline()
	if fromKey != "" {
		pipe.SRem(ctx, fromKey, member)
	}
	pipe.SAdd(ctx, toKey, member)
	_, err := pipe.Exec(ctx)
	return err
}

// MultiGet fetches multiple keys in one round trip. Missing keys come
// back as empty strings in the same positions.
func (c *Client) MultiGet(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	result, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	values := make([]string, len(result))
	for i, v := range result {
		if s, ok := v.(string); ok {
			values[i] = s
		}
	}
	return values, nil
}

// PublishMessage publishes a message on a channel and returns the
// number of subscribers that received it.
func (c *Client) PublishMessage(ctx context.Context, channel string, payload interface{}) (int64, error) {
	return c.Publish(ctx, channel, payload).Result()
}

// SubscribeChannel subscribes to one or more channels
func (c *Client) SubscribeChannel(ctx context.Context, channels ...string) *redis.PubSub {
	return c.Subscribe(ctx, channels...)
}

// Expire sets an expiration on a key
func (c *Client) SetExpire(ctx context.Context, key string, expiration time.Duration) error {
	return c.Expire(ctx, key, expiration).Err()
}

// Close closes the Redis client
func (c *Client) Close() error {
	return c.Client.Close()
}
