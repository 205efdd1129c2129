package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel run events are published to
// when none is configured.
const DefaultRedisChannel = "osbench:runs"

// RedisConfig holds connection settings for the Redis/Valkey publisher.
type RedisConfig struct {
	Addr     string // host:port
	Password string // optional
	DB       int    // database number
	Channel  string // pub/sub channel; DefaultRedisChannel when empty
}

// RedisNotifier publishes run events to a Redis pub/sub channel so
// out-of-process collaborators (UIs, remediation workers) can follow run
// progress without polling the API.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier connects to Redis and verifies the connection.
func NewRedisNotifier(cfg RedisConfig) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	channel := cfg.Channel
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisNotifier{client: client, channel: channel}, nil
}

// Publish sends the event as JSON. Subscriber absence is fine; PUBLISH
// to a channel nobody listens on is a no-op.
func (n *RedisNotifier) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// Close closes the connection to Redis.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

var _ Notifier = (*RedisNotifier)(nil)
