package bridge

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rmacdonaldsmith/meshbroker/internal/discovery"
	"github.com/rmacdonaldsmith/meshbroker/pkg/bridge"
)

// GRPCSink forwards messages to a peer broker's Receiver.
type GRPCSink struct {
	name string
	conn *grpc.ClientConn

	mu     sync.Mutex
	closed bool
}

// NewGRPCSink creates a sink for the receiver at target. Without dial
// options the connection is insecure. The connection is made lazily on
// the first Send.
func NewGRPCSink(name, target string, opts ...grpc.DialOption) (*GRPCSink, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", target, err)
	}
	return &GRPCSink{name: name, conn: conn}, nil
}

// SinksFor creates a gRPC sink for every peer d finds. Sinks created
// before a failure are closed.
func SinksFor(ctx context.Context, d discovery.Discovery, opts ...grpc.DialOption) ([]bridge.Sink, error) {
	peers, err := d.FindPeers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find peers: %w", err)
	}
	sinks := make([]bridge.Sink, 0, len(peers))
	for _, p := range peers {
		s, err := NewGRPCSink("grpc:"+p.ID(), p.Address(), opts...)
		if err != nil {
			for _, made := range sinks {
				_ = made.Close()
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// Name implements bridge.Sink.
func (s *GRPCSink) Name() string { return s.name }

// Send implements bridge.Sink.
func (s *GRPCSink) Send(ctx context.Context, msg bridge.Message) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSinkClosed
	}

	req, err := ToStruct(msg)
	if err != nil {
		return err
	}
	return forward(ctx, s.conn, req)
}

// Close implements io.Closer.
func (s *GRPCSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

var _ bridge.Sink = (*GRPCSink)(nil)
