package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rmacdonaldsmith/meshbroker/pkg/bridge"
	"github.com/rmacdonaldsmith/meshbroker/pkg/eventlog"
)

// Receiver accepts records forwarded by other brokers over gRPC and
// publishes them locally. Received records carry bridge.OriginProperty
// and so are never forwarded again.
type Receiver struct {
	config    *Config
	publisher bridge.Publisher
	logger    *slog.Logger

	mu     sync.Mutex
	server *grpc.Server
	lis    net.Listener
	closed bool
	wg     sync.WaitGroup
}

// ReceiverOption configures a Receiver
type ReceiverOption func(*Receiver)

// WithReceiverLogger sets the logger
func WithReceiverLogger(logger *slog.Logger) ReceiverOption {
	return func(r *Receiver) {
		if logger != nil {
			r.logger = logger.With("component", "bridge-receiver")
		}
	}
}

// NewReceiver creates a receiver that publishes into publisher.
func NewReceiver(config *Config, publisher bridge.Publisher, opts ...ReceiverOption) (*Receiver, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if publisher == nil {
		return nil, errors.New("publisher cannot be nil")
	}
	cfg := *config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Receiver{
		config:    &cfg,
		publisher: publisher,
		logger:    slog.Default().With("component", "bridge-receiver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start listens on the configured address and serves in the background.
func (r *Receiver) Start(ctx context.Context) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", r.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.config.ListenAddress, err)
	}
	if err := r.Serve(lis); err != nil {
		lis.Close()
		return err
	}
	return nil
}

// Serve serves on lis in the background. The receiver owns lis from
// then on.
func (r *Receiver) Serve(lis net.Listener) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrReceiverClosed
	}
	if r.server != nil {
		return errors.New("receiver already serving")
	}

	r.server = grpc.NewServer(grpc.MaxRecvMsgSize(r.config.MaxMessageSize))
	r.server.RegisterService(&serviceDesc, r)
	r.lis = lis

	r.wg.Add(1)
	go func(srv *grpc.Server) {
		defer r.wg.Done()
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			r.logger.Error("bridge receiver stopped", "error", err)
		}
	}(r.server)

	r.logger.Info("bridge receiver listening", "address", lis.Addr().String())
	return nil
}

// Addr returns the address being served, or nil before Serve.
func (r *Receiver) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lis == nil {
		return nil
	}
	return r.lis.Addr()
}

// Forward handles one forwarded message.
func (r *Receiver) Forward(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	msg, err := FromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if msg.Origin == "" {
		return nil, status.Error(codes.InvalidArgument, "missing origin")
	}
	if msg.Origin == r.config.NodeID {
		return nil, status.Errorf(codes.FailedPrecondition, "message originated at this node %s", msg.Origin)
	}

	record := eventlog.NewRecord(msg.Payload, msg.Properties).
		WithPriority(msg.Priority).
		WithProperty(bridge.OriginProperty, msg.Origin)

	result, err := r.publisher.Publish(ctx, msg.Topic, record)
	if err != nil {
		r.logger.Warn("failed to publish forwarded message",
			"origin", msg.Origin,
			"topic", msg.Topic,
			"error", err)
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	r.logger.Debug("forwarded message published",
		"origin", msg.Origin,
		"origin_id", msg.ID,
		"topic", msg.Topic,
		"id", result.ID)
	return &emptypb.Empty{}, nil
}

// Close stops serving and waits for in-flight calls to finish.
func (r *Receiver) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	srv := r.server
	r.mu.Unlock()

	if srv != nil {
		srv.GracefulStop()
	}
	r.wg.Wait()
	return nil
}

var _ bridgeServer = (*Receiver)(nil)
