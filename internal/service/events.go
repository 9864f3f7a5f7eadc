package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/cascade/internal/ir"
)

// EventSink receives deletion events after their transaction committed.
type EventSink interface {
	Publish(ctx context.Context, ev ir.Event) error
}

// eventBuffer holds events emitted during execution until commit.
type eventBuffer struct {
	events []ir.Event
}

func (b *eventBuffer) add(ev ir.Event) {
	b.events = append(b.events, ev)
}

// LogSink writes each event as a structured log line.
type LogSink struct {
	Logger *slog.Logger
}

// Publish implements EventSink.
func (s LogSink) Publish(_ context.Context, ev ir.Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("deleted", "request", ev.RequestID, "type", ev.Type, "ids", ev.IDs)
	return nil
}

// MultiSink publishes to every sink and joins their errors.
type MultiSink []EventSink

// Publish implements EventSink.
func (m MultiSink) Publish(ctx context.Context, ev ir.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DefaultRedisChannel is the channel RedisSink publishes to when none is set.
const DefaultRedisChannel = "cascade:deletes"

// RedisPublisher is the part of a go-redis client RedisSink uses.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink publishes events as JSON on a Redis pub/sub channel.
type RedisSink struct {
	client  RedisPublisher
	channel string
}

// NewRedisSink creates a sink on client. An empty channel uses
// DefaultRedisChannel.
func NewRedisSink(client RedisPublisher, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{client: client, channel: channel}
}

// Publish implements EventSink.
func (s *RedisSink) Publish(ctx context.Context, ev ir.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis sink: encode event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis sink: publish to %s: %w", s.channel, err)
	}
	return nil
}

// DialRedis connects to the server at a redis:// URL and checks it answers.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return client, nil
}
