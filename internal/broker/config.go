package broker

import (
	"errors"
	"fmt"
	"time"

	"github.com/rmacdonaldsmith/meshbroker/internal/subscription"
)

var (
	// ErrEmptyNodeID is returned when node ID is empty
	ErrEmptyNodeID = errors.New("node ID cannot be empty")

	// ErrInvalidRetention is returned when the per-destination retention is negative
	ErrInvalidRetention = errors.New("retention cannot be negative")

	// ErrInvalidCompactInterval is returned when the compaction interval is negative
	ErrInvalidCompactInterval = errors.New("compact interval cannot be negative")
)

// DefaultCompactInterval is how often destination logs are trimmed to
// their retention.
const DefaultCompactInterval = time.Minute

// Config represents configuration for a Broker
type Config struct {
	// NodeID uniquely identifies this broker; forwarded messages carry it
	NodeID string

	// Retention is how many records each destination log keeps; 0 keeps all
	Retention int

	// CompactInterval is how often logs are trimmed to Retention while
	// the broker runs. 0 selects DefaultCompactInterval.
	CompactInterval time.Duration

	// Subscription holds the delivery limits of every subscription group
	Subscription *subscription.Config
}

// NewConfig creates a new Broker configuration with safe defaults
func NewConfig(nodeID string) *Config {
	return &Config{
		NodeID:          nodeID,
		CompactInterval: DefaultCompactInterval,
		Subscription:    subscription.NewConfig(),
	}
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.CompactInterval == 0 {
		c.CompactInterval = DefaultCompactInterval
	}
	if c.Subscription == nil {
		c.Subscription = subscription.NewConfig()
	}
	c.Subscription.SetDefaults()
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return ErrEmptyNodeID
	}
	if c.Retention < 0 {
		return ErrInvalidRetention
	}
	if c.CompactInterval < 0 {
		return ErrInvalidCompactInterval
	}
	if c.Subscription != nil {
		if err := c.Subscription.Validate(); err != nil {
			return fmt.Errorf("invalid subscription config: %w", err)
		}
	}
	return nil
}

// WithRetention sets the per-destination retention
func (c *Config) WithRetention(n int) *Config {
	c.Retention = n
	return c
}

// WithCompactInterval sets the log compaction interval
func (c *Config) WithCompactInterval(d time.Duration) *Config {
	c.CompactInterval = d
	return c
}

// WithSubscriptionConfig sets the subscription group limits
func (c *Config) WithSubscriptionConfig(config *subscription.Config) *Config {
	c.Subscription = config
	return c
}
