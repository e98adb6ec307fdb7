package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/meshbroker/internal/broker"
	"github.com/rmacdonaldsmith/meshbroker/internal/config"
	"github.com/rmacdonaldsmith/meshbroker/pkg/eventlog"
	"github.com/rmacdonaldsmith/meshbroker/pkg/httpclient"
	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, nodeID string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.NodeID = nodeID
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Bridge.Listen = "127.0.0.1:0"
	return &cfg
}

func startDaemon(t *testing.T, cfg *config.Config) *daemon {
	t.Helper()
	require.NoError(t, cfg.Validate())
	ctx := context.Background()
	d, err := newDaemon(ctx, cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, d.start(ctx))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, d.close(ctx))
	})
	return d
}

func TestDaemon_ServesHealthAndMetrics(t *testing.T) {
	d := startDaemon(t, testConfig(t, "daemon-1"))

	client, err := httpclient.NewClient(httpclient.Config{ServerURL: "http://" + d.http.Addr().String()})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = d.broker.Publish(ctx, "a/b", eventlog.NewRecord(nil, nil))
	require.NoError(t, err)

	health, err := client.GetHealth(ctx)
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.Equal(t, "daemon-1", health.NodeID)
	assert.Equal(t, 1, health.Destinations)

	text, err := client.GetMetrics(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, "meshbroker_messages_published_total 1")
}

func TestDaemon_BridgesBetweenNodes(t *testing.T) {
	coreCfg := testConfig(t, "core")
	coreCfg.Bridge.Enabled = true
	core := startDaemon(t, coreCfg)

	sr, err := miniredis.Run()
	require.NoError(t, err)
	defer sr.Close()

	cfg := testConfig(t, "edge")
	cfg.Bridge.Enabled = true
	cfg.Bridge.Peers = []string{"core=" + core.receiver.Addr().String()}
	cfg.Bridge.Redis.Enabled = true
	cfg.Bridge.Redis.Addrs = []string{sr.Addr()}
	policy := filepath.Join(t.TempDir(), "namespaces.yaml")
	require.NoError(t, os.WriteFile(policy, []byte("namespaces:\n  - namespace: /sensor\n    depth: 2\n"), 0o600))
	cfg.NamespaceFile = policy
	edge := startDaemon(t, cfg)

	assert.ElementsMatch(t, []string{"grpc:core", "redis"}, edge.forwarder.Sinks())
	assert.Equal(t, 1, edge.broker.Namespaces().Len())

	consumer := broker.NewRecordingConsumer("core-sub", 0)
	ctx := context.Background()
	_, err = core.broker.Subscribe(ctx, consumer, routingtable.NewSubscriptionContext("sensor/#"))
	require.NoError(t, err)

	res, err := edge.broker.Publish(ctx, "sensor/room1/temp", eventlog.NewRecord([]byte("22"), nil))
	require.NoError(t, err)
	assert.True(t, res.Bridged)

	got := consumer.Received()
	require.Len(t, got, 1)
	assert.Equal(t, "edge", got[0].Properties["bridge_origin"])
}

func TestDaemon_BadNamespaceFile(t *testing.T) {
	cfg := testConfig(t, "daemon-2")
	cfg.NamespaceFile = filepath.Join(t.TempDir(), "missing.yaml")

	d, err := newDaemon(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	require.Error(t, d.start(context.Background()))
	require.NoError(t, d.close(context.Background()))
}

func TestDaemon_UnreachableRedis(t *testing.T) {
	cfg := testConfig(t, "daemon-3")
	cfg.Bridge.Enabled = true
	cfg.Bridge.Redis.Enabled = true
	cfg.Bridge.Redis.Addrs = []string{"127.0.0.1:1"}
	cfg.Bridge.Redis.DialTimeout = 200 * time.Millisecond

	_, err := newDaemon(context.Background(), cfg, discardLogger())
	assert.Error(t, err)
}
