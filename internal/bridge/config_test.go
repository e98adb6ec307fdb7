package bridge

import (
	"errors"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:   "valid config",
			config: Config{NodeID: "node-1", ListenAddress: ":7070"},
		},
		{
			name:    "empty node ID",
			config:  Config{ListenAddress: ":7070"},
			wantErr: ErrEmptyNodeID,
		},
		{
			name:    "empty listen address",
			config:  Config{NodeID: "node-1"},
			wantErr: ErrEmptyListenAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	if c.SendTimeout != 5*time.Second {
		t.Errorf("Expected default send timeout 5s, got %v", c.SendTimeout)
	}
	if c.MaxMessageSize != 1024*1024 {
		t.Errorf("Expected default max message size 1MB, got %d", c.MaxMessageSize)
	}

	c = Config{SendTimeout: time.Second, MaxMessageSize: 10}
	c.SetDefaults()
	if c.SendTimeout != time.Second || c.MaxMessageSize != 10 {
		t.Errorf("SetDefaults overwrote explicit values: %+v", c)
	}
}
