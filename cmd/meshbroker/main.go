package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rmacdonaldsmith/meshbroker/internal/config"
)

const (
	// Application info
	appName    = "meshbroker"
	appVersion = "0.1.0"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to a YAML, JSON or TOML config file")
		showVersion = flag.Bool("version", false, "Show version and exit")
		checkConfig = flag.Bool("check", false, "Validate the configuration and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *checkConfig {
		fmt.Printf("Configuration OK (node %s)\n", cfg.NodeID)
		os.Exit(0)
	}

	logger := config.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("meshbroker exited", "error", err)
		os.Exit(1)
	}
}

// run starts the daemon and blocks until SIGINT or SIGTERM.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting meshbroker",
		"version", appVersion,
		"node_id", cfg.NodeID,
		"http", cfg.HTTP.Addr,
		"bridge", cfg.Bridge.Enabled)

	d, err := newDaemon(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := d.start(ctx); err != nil {
		_ = d.close(context.Background())
		return err
	}
	logger.Info("meshbroker started", "node_id", cfg.NodeID)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return d.close(shutdownCtx)
}
