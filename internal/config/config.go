// Package config loads the meshbroker daemon configuration.
//
// Configuration comes from an optional YAML, JSON or TOML file and from
// environment variables prefixed MESHBROKER_, with "." in a key replaced
// by "_" (MESHBROKER_BRIDGE_LISTEN overrides bridge.listen). Unset keys
// take the values of Default.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/rmacdonaldsmith/meshbroker/internal/bridge"
	"github.com/rmacdonaldsmith/meshbroker/internal/broker"
	"github.com/rmacdonaldsmith/meshbroker/internal/flowcontrol"
	"github.com/rmacdonaldsmith/meshbroker/internal/subscription"
	"github.com/rmacdonaldsmith/meshbroker/pkg/namespace"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "MESHBROKER"

var (
	// ErrInvalidLogLevel is returned for an unknown log level
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidLogFormat is returned for a log format other than text or json
	ErrInvalidLogFormat = errors.New("invalid log format")

	// ErrEmptyHTTPAddress is returned when the HTTP listen address is empty
	ErrEmptyHTTPAddress = errors.New("http address cannot be empty")
)

// Log configures the daemon's logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HTTP configures the /metrics and /healthz listener.
type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// Broker configures the broker core.
type Broker struct {
	Retention       int           `mapstructure:"retention"`
	CompactInterval time.Duration `mapstructure:"compact_interval"`
}

// Subscription configures per-group delivery limits.
type Subscription struct {
	Capacity      int    `mapstructure:"capacity"`
	Window        int    `mapstructure:"window"`
	ReleasePolicy string `mapstructure:"release_policy"`
}

// NATS configures the NATS bridge sink.
type NATS struct {
	Enabled        bool          `mapstructure:"enabled"`
	URLs           []string      `mapstructure:"urls"`
	Name           string        `mapstructure:"name"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
}

// Redis configures the Redis bridge sink.
type Redis struct {
	Enabled       bool          `mapstructure:"enabled"`
	Addrs         []string      `mapstructure:"addrs"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	MasterName    string        `mapstructure:"master_name"`
	ChannelPrefix string        `mapstructure:"channel_prefix"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	OpTimeout     time.Duration `mapstructure:"op_timeout"`
}

// Bridge configures forwarding to other brokers and systems.
type Bridge struct {
	Enabled        bool          `mapstructure:"enabled"`
	Listen         string        `mapstructure:"listen"`
	Peers          []string      `mapstructure:"peers"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	MaxMessageSize int           `mapstructure:"max_message_size"`
	NATS           NATS          `mapstructure:"nats"`
	Redis          Redis         `mapstructure:"redis"`
}

// Config is the daemon configuration.
type Config struct {
	NodeID       string       `mapstructure:"node_id"`
	Log          Log          `mapstructure:"log"`
	HTTP         HTTP         `mapstructure:"http"`
	Broker       Broker       `mapstructure:"broker"`
	Subscription Subscription `mapstructure:"subscription"`
	Bridge       Bridge       `mapstructure:"bridge"`

	// NamespaceFile, when set, is a policy file watched for changes. It
	// replaces Namespaces.
	NamespaceFile string             `mapstructure:"namespace_file"`
	Namespaces    []namespace.Record `mapstructure:"namespaces"`
}

// Default returns the configuration used for unset keys.
func Default() Config {
	nats := bridge.DefaultNATSConfig()
	redis := bridge.DefaultRedisConfig()
	return Config{
		NodeID: defaultNodeID(),
		Log:    Log{Level: "info", Format: "text"},
		HTTP:   HTTP{Addr: ":8080"},
		Broker: Broker{
			Retention:       0,
			CompactInterval: broker.DefaultCompactInterval,
		},
		Subscription: Subscription{
			Capacity:      flowcontrol.DefaultCapacity,
			Window:        subscription.NewConfig().Window,
			ReleasePolicy: flowcontrol.ReleaseOnHandoff.String(),
		},
		Bridge: Bridge{
			Listen:         ":9090",
			SendTimeout:    5 * time.Second,
			MaxMessageSize: 1024 * 1024,
			NATS: NATS{
				URLs:           nats.URLs,
				Name:           nats.Name,
				SubjectPrefix:  nats.SubjectPrefix,
				ConnectTimeout: nats.ConnectTimeout,
				ReconnectWait:  nats.ReconnectWait,
				MaxReconnects:  nats.MaxReconnects,
			},
			Redis: Redis{
				Addrs:         redis.Addrs,
				ChannelPrefix: redis.ChannelPrefix,
				DialTimeout:   redis.DialTimeout,
				OpTimeout:     redis.OpTimeout,
			},
		},
	}
}

// defaultNodeID derives a node ID from the hostname, falling back to a
// random one.
func defaultNodeID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "meshbroker-" + uuid.NewString()[:8]
	}
	return "meshbroker-" + hostname
}

// Load reads the configuration file at path, if any, and applies
// environment overrides. An empty path loads defaults and environment
// only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("node_id", d.NodeID)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("broker.retention", d.Broker.Retention)
	v.SetDefault("broker.compact_interval", d.Broker.CompactInterval)
	v.SetDefault("subscription.capacity", d.Subscription.Capacity)
	v.SetDefault("subscription.window", d.Subscription.Window)
	v.SetDefault("subscription.release_policy", d.Subscription.ReleasePolicy)
	v.SetDefault("bridge.enabled", d.Bridge.Enabled)
	v.SetDefault("bridge.listen", d.Bridge.Listen)
	v.SetDefault("bridge.peers", d.Bridge.Peers)
	v.SetDefault("bridge.send_timeout", d.Bridge.SendTimeout)
	v.SetDefault("bridge.max_message_size", d.Bridge.MaxMessageSize)
	v.SetDefault("bridge.nats.enabled", d.Bridge.NATS.Enabled)
	v.SetDefault("bridge.nats.urls", d.Bridge.NATS.URLs)
	v.SetDefault("bridge.nats.name", d.Bridge.NATS.Name)
	v.SetDefault("bridge.nats.subject_prefix", d.Bridge.NATS.SubjectPrefix)
	v.SetDefault("bridge.nats.connect_timeout", d.Bridge.NATS.ConnectTimeout)
	v.SetDefault("bridge.nats.reconnect_wait", d.Bridge.NATS.ReconnectWait)
	v.SetDefault("bridge.nats.max_reconnects", d.Bridge.NATS.MaxReconnects)
	v.SetDefault("bridge.redis.enabled", d.Bridge.Redis.Enabled)
	v.SetDefault("bridge.redis.addrs", d.Bridge.Redis.Addrs)
	v.SetDefault("bridge.redis.password", d.Bridge.Redis.Password)
	v.SetDefault("bridge.redis.db", d.Bridge.Redis.DB)
	v.SetDefault("bridge.redis.master_name", d.Bridge.Redis.MasterName)
	v.SetDefault("bridge.redis.channel_prefix", d.Bridge.Redis.ChannelPrefix)
	v.SetDefault("bridge.redis.dial_timeout", d.Bridge.Redis.DialTimeout)
	v.SetDefault("bridge.redis.op_timeout", d.Bridge.Redis.OpTimeout)
	v.SetDefault("namespace_file", d.NamespaceFile)
}

// Validate checks the configuration, including the component configs
// derived from it.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}
	if c.HTTP.Addr == "" {
		return ErrEmptyHTTPAddress
	}

	bc, err := c.BrokerConfig()
	if err != nil {
		return err
	}
	if err := bc.Validate(); err != nil {
		return err
	}
	if c.Bridge.Enabled {
		if err := c.BridgeConfig().Validate(); err != nil {
			return fmt.Errorf("bridge: %w", err)
		}
	}
	return nil
}

// BrokerConfig returns the broker configuration.
func (c *Config) BrokerConfig() (*broker.Config, error) {
	policy, err := flowcontrol.ParseReleasePolicy(c.Subscription.ReleasePolicy)
	if err != nil {
		return nil, err
	}
	sub := subscription.NewConfig().
		WithCapacity(c.Subscription.Capacity).
		WithWindow(c.Subscription.Window).
		WithReleasePolicy(policy)

	return broker.NewConfig(c.NodeID).
		WithRetention(c.Broker.Retention).
		WithCompactInterval(c.Broker.CompactInterval).
		WithSubscriptionConfig(sub), nil
}

// BridgeConfig returns the bridge receiver configuration.
func (c *Config) BridgeConfig() *bridge.Config {
	return &bridge.Config{
		NodeID:         c.NodeID,
		ListenAddress:  c.Bridge.Listen,
		SendTimeout:    c.Bridge.SendTimeout,
		MaxMessageSize: c.Bridge.MaxMessageSize,
	}
}

// NATSConfig returns the NATS sink configuration.
func (c *Config) NATSConfig() bridge.NATSConfig {
	n := c.Bridge.NATS
	return bridge.NATSConfig{
		URLs:           n.URLs,
		Name:           n.Name,
		SubjectPrefix:  n.SubjectPrefix,
		ConnectTimeout: n.ConnectTimeout,
		ReconnectWait:  n.ReconnectWait,
		MaxReconnects:  n.MaxReconnects,
	}
}

// RedisConfig returns the Redis sink configuration.
func (c *Config) RedisConfig() bridge.RedisConfig {
	r := c.Bridge.Redis
	return bridge.RedisConfig{
		Addrs:         r.Addrs,
		Password:      r.Password,
		DB:            r.DB,
		MasterName:    r.MasterName,
		ChannelPrefix: r.ChannelPrefix,
		DialTimeout:   r.DialTimeout,
		OpTimeout:     r.OpTimeout,
	}
}

// ParseLogLevel parses debug, info, warn or error, in any case.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
	}
}

// NewLogger builds the daemon logger described by l.
func NewLogger(l Log, w io.Writer) *slog.Logger {
	level, _ := ParseLogLevel(l.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
