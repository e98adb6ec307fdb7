package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rmacdonaldsmith/meshbroker/internal/metrics"
	"github.com/rmacdonaldsmith/meshbroker/pkg/bridge"
	"github.com/rmacdonaldsmith/meshbroker/pkg/eventlog"
	"github.com/rmacdonaldsmith/meshbroker/pkg/namespace"
)

// Skip reasons reported to metrics.
const (
	SkipLoop     = "loop"
	SkipNoPolicy = "no_policy"
	SkipDepth    = "depth"
	SkipSelector = "selector"
	SkipNoSinks  = "no_sinks"
)

// Forwarder sends published records to sinks when the namespace policy
// allows it.
//
// A record is forwarded when it did not arrive over the bridge, a
// namespace record governs its destination, the destination is within
// that record's depth, and the record's selector, if any, accepts it.
type Forwarder struct {
	nodeID     string
	namespaces namespace.Lookup
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu    sync.RWMutex
	sinks []bridge.Sink
}

// ForwarderOption configures a Forwarder
type ForwarderOption func(*Forwarder)

// WithForwarderLogger sets the logger
func WithForwarderLogger(logger *slog.Logger) ForwarderOption {
	return func(f *Forwarder) {
		if logger != nil {
			f.logger = logger.With("component", "bridge-forwarder")
		}
	}
}

// WithForwarderMetrics sets the metrics sink
func WithForwarderMetrics(m *metrics.Metrics) ForwarderOption {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

// WithSendTimeout bounds each sink send. Zero leaves the caller's
// context as the only bound.
func WithSendTimeout(d time.Duration) ForwarderOption {
	return func(f *Forwarder) {
		f.timeout = d
	}
}

// NewForwarder creates a forwarder for the broker nodeID.
func NewForwarder(nodeID string, namespaces namespace.Lookup, sinks []bridge.Sink, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		nodeID:     nodeID,
		namespaces: namespaces,
		sinks:      append([]bridge.Sink{}, sinks...),
		logger:     slog.Default().With("component", "bridge-forwarder"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AddSink adds a sink. It is used for every record forwarded afterwards.
func (f *Forwarder) AddSink(s bridge.Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, s)
}

// Sinks returns the names of the configured sinks.
func (f *Forwarder) Sinks() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return names
}

// Forward implements bridge.Forwarder. Every sink is tried; the errors
// of those that fail are joined.
func (f *Forwarder) Forward(ctx context.Context, record *eventlog.Record) (bool, error) {
	msg, reason := f.admit(record)
	if reason != "" {
		f.metrics.BridgeSkip(reason)
		f.logger.Debug("record not forwarded",
			"destination", record.Destination(),
			"id", record.ID(),
			"reason", reason)
		return false, nil
	}

	f.mu.RLock()
	sinks := append([]bridge.Sink{}, f.sinks...)
	f.mu.RUnlock()
	if len(sinks) == 0 {
		f.metrics.BridgeSkip(SkipNoSinks)
		return false, nil
	}

	var errs []error
	sent := false
	for _, s := range sinks {
		if err := f.send(ctx, s, msg); err != nil {
			f.metrics.BridgeFailed(s.Name())
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
			continue
		}
		f.metrics.BridgeForwarded(s.Name())
		sent = true
	}
	return sent, errors.Join(errs...)
}

// admit applies the namespace policy. It returns the message to send,
// or the reason the record stays local.
func (f *Forwarder) admit(record *eventlog.Record) (bridge.Message, string) {
	if _, ok := record.Get(bridge.OriginProperty); ok {
		return bridge.Message{}, SkipLoop
	}
	if f.namespaces == nil {
		return bridge.Message{}, SkipNoPolicy
	}
	policy, ok := f.namespaces.FindMatch(record.Destination())
	if !ok {
		return bridge.Message{}, SkipNoPolicy
	}
	if !policy.AllowsDepth(record.Destination()) {
		return bridge.Message{}, SkipDepth
	}
	if !policy.Selects(record) {
		return bridge.Message{}, SkipSelector
	}

	msg := bridge.Message{
		Origin:     f.nodeID,
		Topic:      record.Destination(),
		ID:         record.ID(),
		Priority:   record.Priority(),
		Payload:    record.Payload(),
		Properties: record.Properties(),
		Timestamp:  record.Timestamp(),
	}
	if policy.ForcePriority() {
		if msg.Properties == nil {
			msg.Properties = make(map[string]any, 1)
		}
		msg.Priority = namespace.ForcedPriority
		msg.Properties[namespace.PriorityProperty] = namespace.ForcedPriority
	}
	return msg, ""
}

func (f *Forwarder) send(ctx context.Context, s bridge.Sink, msg bridge.Message) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	return s.Send(ctx, msg)
}

// Close closes every sink.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	sinks := f.sinks
	f.sinks = nil
	f.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

var _ bridge.Forwarder = (*Forwarder)(nil)
