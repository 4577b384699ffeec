package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBus is a Bus over Redis pub/sub, so every API instance sees writes made by the others.
type RedisBus struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// RedisOption configures a RedisBus
type RedisOption func(*RedisBus)

// WithPrefix namespaces channel names
func WithPrefix(prefix string) RedisOption {
	return func(b *RedisBus) { b.prefix = prefix }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) RedisOption {
	return func(b *RedisBus) { b.logger = logger }
}

// NewRedisBus wraps an existing client.
func NewRedisBus(client *redis.Client, opts ...RedisOption) *RedisBus {
	b := &RedisBus{client: client, prefix: "minglr:", logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends a signal on topic.
func (b *RedisBus) Publish(ctx context.Context, topic string) error {
	if err := b.client.Publish(ctx, b.prefix+topic, "1").Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed before returning.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan struct{}, error) {
	ps := b.client.Subscribe(ctx, b.prefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	out := make(chan struct{}, 1)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		defer func() {
			if err := ps.Close(); err != nil {
				b.logger.Debug("closing redis subscription", "topic", topic, "error", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
