package broker

import (
	"errors"
	"testing"
	"time"

	"github.com/rmacdonaldsmith/meshbroker/internal/subscription"
)

// TestConfig_NewConfig tests creating new configuration with defaults
func TestConfig_NewConfig(t *testing.T) {
	config := NewConfig("node-1")

	if config.NodeID != "node-1" {
		t.Errorf("Expected NodeID 'node-1', got '%s'", config.NodeID)
	}
	if config.Retention != 0 {
		t.Errorf("Expected Retention 0, got %d", config.Retention)
	}
	if config.CompactInterval != DefaultCompactInterval {
		t.Errorf("Expected CompactInterval %v, got %v", DefaultCompactInterval, config.CompactInterval)
	}
	if config.Subscription == nil {
		t.Fatal("Expected Subscription config to be set")
	}
	if config.Subscription.Capacity != 1024 {
		t.Errorf("Expected default capacity 1024, got %d", config.Subscription.Capacity)
	}
}

// TestConfig_Validate tests configuration validation
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		errorType error
	}{
		{
			name:   "valid config",
			config: NewConfig("node-1"),
		},
		{
			name:      "empty node ID",
			config:    NewConfig(""),
			errorType: ErrEmptyNodeID,
		},
		{
			name:      "negative retention",
			config:    NewConfig("node-1").WithRetention(-1),
			errorType: ErrInvalidRetention,
		},
		{
			name:      "negative compact interval",
			config:    NewConfig("node-1").WithCompactInterval(-time.Second),
			errorType: ErrInvalidCompactInterval,
		},
		{
			name:      "invalid subscription config",
			config:    NewConfig("node-1").WithSubscriptionConfig(subscription.NewConfig().WithCapacity(-1)),
			errorType: subscription.ErrInvalidCapacity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errorType == nil {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.errorType) {
				t.Errorf("Expected error %v, got %v", tt.errorType, err)
			}
		})
	}
}

// TestConfig_SetDefaults tests that unset fields are filled
func TestConfig_SetDefaults(t *testing.T) {
	config := &Config{NodeID: "node-1"}
	config.SetDefaults()

	if config.CompactInterval != DefaultCompactInterval {
		t.Errorf("Expected CompactInterval %v, got %v", DefaultCompactInterval, config.CompactInterval)
	}
	if config.Subscription == nil || config.Subscription.Window == 0 {
		t.Error("Expected subscription defaults to be filled")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Expected defaulted config to validate, got %v", err)
	}
}
