package broker

import (
	"sync"

	"github.com/rmacdonaldsmith/meshbroker/internal/subscription"
	"github.com/rmacdonaldsmith/meshbroker/pkg/broker"
	"github.com/rmacdonaldsmith/meshbroker/pkg/eventlog"
)

// DefaultBufferSize is the channel capacity of a ChannelConsumer.
const DefaultBufferSize = 100

// consumerAdapter presents a broker.Consumer to a subscription group.
type consumerAdapter struct {
	consumer broker.Consumer
	handleID string
}

func (a *consumerAdapter) ID() string { return a.consumer.ID() }

func (a *consumerAdapter) Deliver(msg subscription.Message) bool {
	d := broker.Delivery{
		ID:             msg.ID,
		Destination:    msg.Destination,
		Priority:       msg.Priority,
		Redelivered:    msg.Redelivered,
		SubscriptionID: a.handleID,
	}
	if rec, ok := msg.Body.(*eventlog.Record); ok {
		d.Offset = rec.Offset()
		d.Payload = rec.Payload()
		d.Properties = rec.Properties()
		d.Timestamp = rec.Timestamp()
	}
	return a.consumer.Deliver(d)
}

// messageFor wraps a stored record for offering to groups.
func messageFor(rec *eventlog.Record) subscription.Message {
	return subscription.Message{
		ID:          rec.ID(),
		Destination: rec.Destination(),
		Priority:    rec.Priority(),
		Properties:  rec,
		Body:        rec,
	}
}

// ChannelConsumer is a consumer that queues deliveries on a buffered
// channel. When the buffer is full Deliver refuses the message and the
// subscription keeps it for later.
type ChannelConsumer struct {
	id string
	ch chan broker.Delivery

	mu       sync.Mutex
	received []broker.Delivery
	record   bool
}

// NewChannelConsumer creates a consumer with a buffer of size deliveries.
// A size below one uses DefaultBufferSize.
func NewChannelConsumer(id string, size int) *ChannelConsumer {
	if size < 1 {
		size = DefaultBufferSize
	}
	return &ChannelConsumer{id: id, ch: make(chan broker.Delivery, size)}
}

// NewRecordingConsumer creates a ChannelConsumer that also keeps every
// delivery it accepted, for inspection with Received.
func NewRecordingConsumer(id string, size int) *ChannelConsumer {
	c := NewChannelConsumer(id, size)
	c.record = true
	return c
}

// ID implements broker.Consumer.
func (c *ChannelConsumer) ID() string {
	return c.id
}

// Deliver implements broker.Consumer.
func (c *ChannelConsumer) Deliver(d broker.Delivery) bool {
	select {
	case c.ch <- d:
	default:
		return false
	}
	if c.record {
		c.mu.Lock()
		c.received = append(c.received, d)
		c.mu.Unlock()
	}
	return true
}

// Deliveries returns the channel deliveries are queued on.
func (c *ChannelConsumer) Deliveries() <-chan broker.Delivery {
	return c.ch
}

// Received returns a copy of every delivery accepted so far. It is
// empty unless the consumer was created with NewRecordingConsumer.
func (c *ChannelConsumer) Received() []broker.Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]broker.Delivery{}, c.received...)
}

// ReceivedIDs returns the message IDs of Received in delivery order.
func (c *ChannelConsumer) ReceivedIDs() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint64, len(c.received))
	for i, d := range c.received {
		ids[i] = d.ID
	}
	return ids
}

// Verify that ChannelConsumer implements broker.Consumer at compile time
var _ broker.Consumer = (*ChannelConsumer)(nil)
