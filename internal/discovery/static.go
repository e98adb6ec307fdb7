package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptySeed is returned for a seed entry without an address
var ErrEmptySeed = errors.New("seed address cannot be empty")

// StaticDiscovery implements Discovery using a static list of seed peers.
// A seed is either "host:port" or "id=host:port".
type StaticDiscovery struct {
	seeds []string
}

// staticPeer implements Peer for static seeds
type staticPeer struct {
	id      string
	address string
}

func (p *staticPeer) ID() string      { return p.id }
func (p *staticPeer) Address() string { return p.address }

// NewStaticDiscovery creates a new static discovery service with the given seeds
func NewStaticDiscovery(seeds []string) *StaticDiscovery {
	return &StaticDiscovery{
		seeds: seeds,
	}
}

// FindPeers returns peers from the static seed list. A seed without an
// explicit ID uses its address as ID.
func (s *StaticDiscovery) FindPeers(ctx context.Context) ([]Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	peers := make([]Peer, 0, len(s.seeds))
	for i, seed := range s.seeds {
		id, address, found := strings.Cut(strings.TrimSpace(seed), "=")
		if !found {
			address = id
		}
		if address == "" {
			return nil, fmt.Errorf("seed %d: %w", i, ErrEmptySeed)
		}
		if id == "" {
			id = address
		}
		peers = append(peers, &staticPeer{id: id, address: address})
	}
	return peers, nil
}
