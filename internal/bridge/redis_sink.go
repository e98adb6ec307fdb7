package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmacdonaldsmith/meshbroker/pkg/bridge"
)

// RedisConfig configures a Redis pub/sub sink
type RedisConfig struct {
	// Addrs of the Redis servers; one address selects a single node
	Addrs []string

	// Password, if needed
	Password string

	// DB number, single node and sentinel modes only
	DB int

	// MasterName selects sentinel mode
	MasterName string

	// ChannelPrefix is prepended to the topic to form the channel name
	ChannelPrefix string

	// DialTimeout bounds connecting and the initial ping
	DialTimeout time.Duration

	// OpTimeout bounds each publish
	OpTimeout time.Duration
}

// DefaultRedisConfig returns the default Redis sink configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addrs:         []string{"localhost:6379"},
		ChannelPrefix: "meshbroker:",
		DialTimeout:   5 * time.Second,
		OpTimeout:     500 * time.Millisecond,
	}
}

// RedisSink publishes forwarded messages on Redis channels named
// ChannelPrefix + topic.
type RedisSink struct {
	client redis.UniversalClient
	cfg    RedisConfig

	mu     sync.RWMutex
	closed bool
}

// NewRedisSink connects to Redis and pings it.
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	if len(cfg.Addrs) == 0 {
		cfg.Addrs = []string{"localhost:6379"}
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultRedisConfig().OpTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultRedisConfig().DialTimeout
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       cfg.Addrs,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MasterName:  cfg.MasterName,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisSink{client: client, cfg: cfg}, nil
}

// Channel returns the channel a topic is published on.
func (s *RedisSink) Channel(topic string) string {
	return s.cfg.ChannelPrefix + topic
}

// Name implements bridge.Sink.
func (s *RedisSink) Name() string { return "redis" }

// Send implements bridge.Sink. The message is published in the form
// produced by Marshal.
func (s *RedisSink) Send(ctx context.Context, msg bridge.Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	data, err := Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	if err := s.client.Publish(ctx, s.Channel(msg.Topic), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Close implements io.Closer.
func (s *RedisSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

var _ bridge.Sink = (*RedisSink)(nil)
