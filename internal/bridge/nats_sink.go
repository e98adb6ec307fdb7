package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rmacdonaldsmith/meshbroker/pkg/bridge"
)

// ErrPublishTimeout is returned when a publish does not complete in time
var ErrPublishTimeout = errors.New("publish timeout")

// NATSConfig configures a NATS sink
type NATSConfig struct {
	// URLs of the NATS servers, e.g. nats://localhost:4222
	URLs []string

	// Name identifies the connection to the server
	Name string

	// SubjectPrefix is prepended to every subject, separated by "."
	SubjectPrefix string

	// ConnectTimeout bounds the initial connection
	ConnectTimeout time.Duration

	// ReconnectWait is the pause between reconnect attempts
	ReconnectWait time.Duration

	// MaxReconnects is the reconnect limit; -1 reconnects forever
	MaxReconnects int
}

// DefaultNATSConfig returns the default NATS sink configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URLs:           []string{nats.DefaultURL},
		Name:           "meshbroker-bridge",
		SubjectPrefix:  "meshbroker",
		ConnectTimeout: 5 * time.Second,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
	}
}

// NATSSink publishes forwarded messages to NATS subjects derived from
// their topic: "/" separated levels become "." separated tokens.
type NATSSink struct {
	conn   *nats.Conn
	prefix string

	mu     sync.RWMutex
	closed bool
}

// NewNATSSink connects to NATS.
func NewNATSSink(cfg NATSConfig) (*NATSSink, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
	}
	url := nats.DefaultURL
	if len(cfg.URLs) > 0 {
		url = strings.Join(cfg.URLs, ",")
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSSink{conn: nc, prefix: cfg.SubjectPrefix}, nil
}

// Subject maps a topic to a NATS subject under prefix. Empty levels
// become "_" and dots inside a level become "_", so each topic level
// is exactly one subject token.
func Subject(prefix, topic string) string {
	levels := strings.Split(strings.Trim(topic, "/"), "/")
	tokens := make([]string, 0, len(levels)+1)
	if prefix != "" {
		tokens = append(tokens, prefix)
	}
	for _, level := range levels {
		level = strings.NewReplacer(".", "_", " ", "_").Replace(level)
		if level == "" {
			level = "_"
		}
		tokens = append(tokens, level)
	}
	return strings.Join(tokens, ".")
}

// Name implements bridge.Sink.
func (s *NATSSink) Name() string { return "nats" }

// Send implements bridge.Sink. The message is published in the form
// produced by Marshal and flushed before Send returns.
func (s *NATSSink) Send(ctx context.Context, msg bridge.Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	data, err := Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.conn.Publish(Subject(s.prefix, msg.Topic), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrPublishTimeout
		}
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

// Close implements io.Closer.
func (s *NATSSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.conn.Close()
	return nil
}

var _ bridge.Sink = (*NATSSink)(nil)
