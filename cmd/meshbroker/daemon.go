package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rmacdonaldsmith/meshbroker/internal/bridge"
	"github.com/rmacdonaldsmith/meshbroker/internal/broker"
	"github.com/rmacdonaldsmith/meshbroker/internal/config"
	"github.com/rmacdonaldsmith/meshbroker/internal/discovery"
	"github.com/rmacdonaldsmith/meshbroker/internal/httpapi"
	"github.com/rmacdonaldsmith/meshbroker/internal/metrics"
	"github.com/rmacdonaldsmith/meshbroker/internal/namespace"
	"github.com/rmacdonaldsmith/meshbroker/internal/selector"
	bridgepkg "github.com/rmacdonaldsmith/meshbroker/pkg/bridge"
)

// daemon owns every long-lived component of a running broker.
type daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	broker    *broker.Broker
	forwarder *bridge.Forwarder
	receiver  *bridge.Receiver
	watcher   *namespace.Watcher
	http      *httpapi.Server
}

// newDaemon builds the components described by cfg without starting
// any of them. Sinks are connected here, so an unreachable NATS or
// Redis fails construction.
func newDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	d := &daemon{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New("meshbroker"),
	}

	engine := selector.NewEngine(nil)
	store := namespace.NewStore(engine, namespace.WithLogger(logger), namespace.WithMetrics(d.metrics))
	if cfg.NamespaceFile != "" {
		d.watcher = namespace.NewWatcher(store, cfg.NamespaceFile)
	} else {
		store.Load(cfg.Namespaces)
	}

	brokerCfg, err := cfg.BrokerConfig()
	if err != nil {
		return nil, err
	}
	opts := []broker.Option{
		broker.WithLogger(logger),
		broker.WithMetrics(d.metrics),
		broker.WithEngine(engine),
		broker.WithNamespaceStore(store),
	}

	if cfg.Bridge.Enabled {
		sinks, err := d.connectSinks(ctx)
		if err != nil {
			return nil, err
		}
		d.forwarder = bridge.NewForwarder(cfg.NodeID, store, sinks,
			bridge.WithForwarderLogger(logger),
			bridge.WithForwarderMetrics(d.metrics),
			bridge.WithSendTimeout(cfg.Bridge.SendTimeout))
		opts = append(opts, broker.WithForwarder(d.forwarder))
	}

	d.broker, err = broker.New(brokerCfg, opts...)
	if err != nil {
		d.closeForwarder()
		return nil, fmt.Errorf("failed to create broker: %w", err)
	}

	if cfg.Bridge.Enabled {
		d.receiver, err = bridge.NewReceiver(cfg.BridgeConfig(), d.broker, bridge.WithReceiverLogger(logger))
		if err != nil {
			d.closeForwarder()
			_ = d.broker.Close()
			return nil, err
		}
	}

	d.http = httpapi.NewServer(d.broker, httpapi.Config{Addr: cfg.HTTP.Addr},
		httpapi.WithLogger(logger),
		httpapi.WithMetricsHandler(d.metrics.Handler()))
	return d, nil
}

// connectSinks creates a gRPC sink per configured peer plus the NATS
// and Redis sinks when enabled.
func (d *daemon) connectSinks(ctx context.Context) ([]bridgepkg.Sink, error) {
	sinks, err := bridge.SinksFor(ctx, discovery.NewStaticDiscovery(d.cfg.Bridge.Peers))
	if err != nil {
		return nil, err
	}
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}

	if d.cfg.Bridge.NATS.Enabled {
		s, err := bridge.NewNATSSink(d.cfg.NATSConfig())
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if d.cfg.Bridge.Redis.Enabled {
		s, err := bridge.NewRedisSink(d.cfg.RedisConfig())
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// start starts the components in dependency order.
func (d *daemon) start(ctx context.Context) error {
	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to load namespace policy: %w", err)
		}
	}
	if err := d.broker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start broker: %w", err)
	}
	if d.receiver != nil {
		if err := d.receiver.Start(ctx); err != nil {
			return fmt.Errorf("failed to start bridge receiver: %w", err)
		}
	}
	if err := d.http.Start(); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}
	return nil
}

// close stops everything started by start, in reverse order.
func (d *daemon) close(ctx context.Context) error {
	var errs []error
	if err := d.http.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if d.receiver != nil {
		if err := d.receiver.Close(); err != nil {
			errs = append(errs, fmt.Errorf("bridge receiver: %w", err))
		}
	}
	if err := d.broker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("broker: %w", err))
	}
	if err := d.closeForwarder(); err != nil {
		errs = append(errs, fmt.Errorf("bridge sinks: %w", err))
	}
	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("namespace watcher: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (d *daemon) closeForwarder() error {
	if d.forwarder == nil {
		return nil
	}
	return d.forwarder.Close()
}
