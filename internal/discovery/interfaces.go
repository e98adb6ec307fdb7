package discovery

import (
	"context"
)

// Peer is a remote broker that messages can be bridged to
type Peer interface {
	// ID returns unique identifier for this peer
	ID() string

	// Address returns the network address of the peer's bridge receiver
	Address() string
}

// Discovery defines the interface for bridge peer discovery mechanisms
type Discovery interface {
	// FindPeers discovers and returns available peers
	FindPeers(ctx context.Context) ([]Peer, error)
}
