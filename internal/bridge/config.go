package bridge

import (
	"errors"
	"time"
)

var (
	// ErrEmptyNodeID is returned when node ID is empty
	ErrEmptyNodeID = errors.New("node ID cannot be empty")

	// ErrEmptyListenAddress is returned when the receiver has no listen address
	ErrEmptyListenAddress = errors.New("listen address cannot be empty")

	// ErrSinkClosed is returned when sending on a closed sink
	ErrSinkClosed = errors.New("sink is closed")

	// ErrReceiverClosed is returned when starting a closed receiver
	ErrReceiverClosed = errors.New("receiver is closed")
)

// Config holds configuration for the bridge receiver and its sinks
type Config struct {
	NodeID         string
	ListenAddress  string
	SendTimeout    time.Duration
	MaxMessageSize int
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return ErrEmptyNodeID
	}
	if c.ListenAddress == "" {
		return ErrEmptyListenAddress
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.SendTimeout <= 0 {
		c.SendTimeout = 5 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 1024 * 1024 // 1MB
	}
}
