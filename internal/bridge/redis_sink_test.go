package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/meshbroker/pkg/bridge"
)

func TestRedisSink_Send(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	cfg := DefaultRedisConfig()
	cfg.Addrs = []string{s.Addr()}
	sink, err := NewRedisSink(cfg)
	require.NoError(t, err)
	defer sink.Close()
	assert.Equal(t, "redis", sink.Name())
	assert.Equal(t, "meshbroker:sensor/room1/temp", sink.Channel("sensor/room1/temp"))

	sub := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer sub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ps := sub.Subscribe(ctx, sink.Channel("sensor/room1/temp"))
	defer ps.Close()
	_, err = ps.Receive(ctx)
	require.NoError(t, err)

	want := bridge.Message{
		Origin:     "node-a",
		Topic:      "sensor/room1/temp",
		ID:         7,
		Priority:   9,
		Payload:    []byte("21.5"),
		Properties: map[string]any{"unit": "C"},
	}
	require.NoError(t, sink.Send(ctx, want))

	msg, err := ps.ReceiveMessage(ctx)
	require.NoError(t, err)
	got, err := Unmarshal([]byte(msg.Payload))
	require.NoError(t, err)
	assert.Equal(t, want.Origin, got.Origin)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Priority, got.Priority)
	assert.Equal(t, want.Payload, got.Payload)
	assert.Equal(t, "C", got.Properties["unit"])
}

func TestRedisSink_Closed(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	sink, err := NewRedisSink(RedisConfig{Addrs: []string{s.Addr()}})
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	err = sink.Send(context.Background(), bridge.Message{Topic: "a/b"})
	assert.ErrorIs(t, err, ErrSinkClosed)
}

func TestNewRedisSink_Unreachable(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	addr := s.Addr()
	s.Close()

	_, err = NewRedisSink(RedisConfig{Addrs: []string{addr}, DialTimeout: 200 * time.Millisecond})
	assert.Error(t, err)
}
