package bridge

import (
	"context"
	"io"
	"time"

	"github.com/rmacdonaldsmith/meshbroker/pkg/broker"
	"github.com/rmacdonaldsmith/meshbroker/pkg/eventlog"
)

// OriginProperty names the property holding the ID of the broker a
// forwarded record came from.
const OriginProperty = "bridge_origin"

// Message is a record as it travels between brokers.
type Message struct {
	// Origin is the ID of the forwarding broker
	Origin string

	// Topic is the destination the record was published to
	Topic string

	// ID is the message ID assigned by the origin broker
	ID uint64

	// Priority is the forwarded priority, 0 to 9
	Priority int

	// Payload is the message body
	Payload []byte

	// Properties are the message properties
	Properties map[string]any

	// Timestamp is when the record was published at the origin
	Timestamp time.Time
}

// Sink sends forwarded messages to one remote system.
type Sink interface {
	io.Closer

	// Name identifies the sink in logs and metrics
	Name() string

	// Send forwards one message.
	Send(ctx context.Context, msg Message) error
}

// Forwarder decides whether a published record leaves the broker and
// forwards it when it does.
type Forwarder interface {
	// Forward reports whether the record was forwarded. An error means
	// at least one sink failed; the others may still have succeeded.
	Forward(ctx context.Context, record *eventlog.Record) (bool, error)
}

// Publisher accepts records arriving from another broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, record *eventlog.Record) (broker.PublishResult, error)
}
