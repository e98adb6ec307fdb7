package subscription

import (
	"errors"

	"github.com/rmacdonaldsmith/meshbroker/internal/flowcontrol"
	"github.com/rmacdonaldsmith/meshbroker/internal/state"
)

var (
	// ErrInvalidCapacity is returned when the credit capacity is below one
	ErrInvalidCapacity = errors.New("credit capacity must be positive")

	// ErrInvalidWindow is returned when the at-rest window is below one
	ErrInvalidWindow = errors.New("at-rest window must be positive")
)

// Config holds the per-group delivery limits.
type Config struct {
	// Capacity is the credit pool size: the most unacknowledged
	// deliveries a group may have across all its members.
	Capacity int

	// Window is the most messages a group holds at rest before the
	// oldest is evicted.
	Window int

	// ReleasePolicy controls when auto acknowledged deliveries return credit.
	ReleasePolicy flowcontrol.ReleasePolicy
}

// NewConfig returns a configuration with default limits.
func NewConfig() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset limits.
func (c *Config) SetDefaults() {
	if c.Capacity == 0 {
		c.Capacity = flowcontrol.DefaultCapacity
	}
	if c.Window == 0 {
		c.Window = state.DefaultWindow
	}
}

// Validate returns an error for out of range limits.
func (c *Config) Validate() error {
	if c.Capacity < 1 {
		return ErrInvalidCapacity
	}
	if c.Window < 1 {
		return ErrInvalidWindow
	}
	return nil
}

// WithCapacity sets the credit capacity
func (c *Config) WithCapacity(n int) *Config {
	c.Capacity = n
	return c
}

// WithWindow sets the at-rest window
func (c *Config) WithWindow(n int) *Config {
	c.Window = n
	return c
}

// WithReleasePolicy sets the auto acknowledgement release policy
func (c *Config) WithReleasePolicy(p flowcontrol.ReleasePolicy) *Config {
	c.ReleasePolicy = p
	return c
}
