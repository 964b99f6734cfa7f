// Package redis backs scratch slots with plain keys and cross-instance
// notifications with pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/lifecycle"
	"github.com/redis/go-redis/v9"

	"github.com/aretw0/inkwell/pkg/core"
)

// KeyPrefix namespaces every key and channel this package touches.
const KeyPrefix = "inkwell:"

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string // pub/sub channel name, without prefix
	Logger   *slog.Logger
}

// Client wraps a go-redis client and implements both core.ScratchStore and
// core.Notifier.
type Client struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

// Dial connects and pings the server.
func Dial(ctx context.Context, config Config) (*Client, error) {
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}
	if config.Channel == "" {
		config.Channel = "inkwell"
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", config.Addr, err)
	}

	return &Client{
		rdb:     rdb,
		channel: KeyPrefix + config.Channel,
		logger:  config.Logger.With("redis", config.Addr),
	}, nil
}

func (c *Client) Load(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, KeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get scratch: %w", err)
	}
	return val, nil
}

func (c *Client) Save(ctx context.Context, key, content string) error {
	if err := c.rdb.Set(ctx, KeyPrefix+key, content, 0).Err(); err != nil {
		return fmt.Errorf("failed to set scratch: %w", err)
	}
	return nil
}

// Publish sends msg to every subscriber of the channel, including this
// process; receivers drop their own echoes by instance id.
func (c *Client) Publish(ctx context.Context, msg core.SyncMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := c.rdb.Publish(ctx, c.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

// Subscribe returns decoded messages until ctx is cancelled. The subscription
// is confirmed before returning, so nothing published afterwards is missed.
func (c *Client) Subscribe(ctx context.Context) (<-chan core.SyncMessage, error) {
	pubsub := c.rdb.Subscribe(ctx, c.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", c.channel, err)
	}

	out := make(chan core.SyncMessage, 16)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		defer pubsub.Close()

		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case m, ok := <-in:
				if !ok {
					return nil
				}
				var msg core.SyncMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					c.logger.Warn("dropping malformed message", "channel", m.Channel, "error", err)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		c.logger.Error("subscriber panic", "error", err)
	}))

	return out, nil
}

// Close closes the underlying client.
func (c *Client) Close() error {
	return c.rdb.Close()
}

var (
	_ core.ScratchStore = (*Client)(nil)
	_ core.Notifier     = (*Client)(nil)
)
