package broker

import (
	"context"
	"io"
	"time"

	"github.com/rmacdonaldsmith/meshbroker/pkg/eventlog"
	"github.com/rmacdonaldsmith/meshbroker/pkg/namespace"
	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

// Delivery is one message handed to a consumer.
type Delivery struct {
	// ID is the broker-wide message ID used to acknowledge the delivery
	ID uint64

	// Destination is the name the message was published to
	Destination string

	// Offset is the position of the message in the destination log
	Offset int64

	// Priority is the delivery priority, 0 to 9
	Priority int

	// Payload is the message body
	Payload []byte

	// Properties are the message properties selectors evaluate
	Properties map[string]any

	// Timestamp is when the message was published
	Timestamp time.Time

	// Redelivered is set when the message was handed out before
	Redelivered bool

	// SubscriptionID identifies the subscription the delivery is for
	SubscriptionID string
}

// Consumer receives deliveries for its subscriptions.
type Consumer interface {
	// ID identifies the consumer. Within one shared group a second
	// consumer with the same ID replaces the first.
	ID() string

	// Deliver hands over one message. It must not block. It may ack or
	// reject through the broker, but must not publish to the destination
	// the delivery came from. Returning false means the consumer cannot
	// take the message now; it goes back to the subscription and is
	// redelivered later.
	Deliver(d Delivery) bool
}

// Handle is a live subscription.
type Handle struct {
	// ID is unique per Subscribe call
	ID string

	// ConsumerID is the ID of the consumer that subscribed
	ConsumerID string

	// Context is the subscription context the handle was created with
	Context routingtable.SubscriptionContext

	// GroupKey identifies the group serving the subscription. Shared
	// subscriptions with the same share name and selector share it.
	GroupKey string

	// Created is when the subscription was made
	Created time.Time
}

// Shared reports whether the handle is a member of a shared group.
func (h *Handle) Shared() bool {
	return h != nil && h.Context.IsShared()
}

// PublishResult describes what happened to a published message.
type PublishResult struct {
	// ID is the broker-wide message ID
	ID uint64

	// Destination is the destination the message was appended to
	Destination string

	// Offset is the position in the destination log
	Offset int64

	// Created is set when the publish created the destination
	Created bool

	// Routed is the number of subscriptions the message was offered to
	Routed int

	// Filtered is the number of subscriptions whose filter matched but
	// whose selector did not select the message
	Filtered int

	// Bridged is set when the namespace policy forwarded the message
	Bridged bool
}

// HealthStatus represents the overall health of a broker.
type HealthStatus struct {
	// Healthy indicates if the broker is functioning properly
	Healthy bool

	// EventLogHealthy indicates if the destination logs are operational
	EventLogHealthy bool

	// RoutingTableHealthy indicates if the routing table is operational
	RoutingTableHealthy bool

	// BridgeHealthy indicates if bridging is operational or not configured
	BridgeHealthy bool

	// Destinations is the number of known destinations
	Destinations int

	// Subscriptions is the number of live handles
	Subscriptions int

	// SharedGroups is the number of shared groups, including empty ones
	SharedGroups int

	// NamespacePolicies is the number of namespace policy entries in force
	NamespacePolicies int

	// Message provides additional health information
	Message string
}

// Broker routes published messages to subscriptions.
type Broker interface {
	io.Closer

	// Start makes the broker accept subscriptions and publishes.
	Start(ctx context.Context) error

	// Stop stops accepting work. Subscriptions are kept and Start may be
	// called again.
	Stop(ctx context.Context) error

	// Subscribe creates a subscription for consumer. A shared context
	// joins (or creates) the shared group for its share name and
	// selector; any other context gets a subscription of its own. A
	// selector that does not compile fails the call and changes nothing.
	Subscribe(ctx context.Context, consumer Consumer, sctx routingtable.SubscriptionContext) (*Handle, error)

	// Unsubscribe removes a subscription. A shared member leaves its
	// group and its unacknowledged messages go back to the group; the
	// group itself is kept until RemoveShare.
	Unsubscribe(ctx context.Context, h *Handle) error

	// RemoveShare tears down every shared group with the given share name
	// and returns how many were removed.
	RemoveShare(ctx context.Context, shareName string) (int, error)

	// Publish appends a record to topic and routes it.
	Publish(ctx context.Context, topic string, record *eventlog.Record) (PublishResult, error)

	// Ack acknowledges one delivery.
	Ack(ctx context.Context, h *Handle, id uint64) error

	// AckRange acknowledges every outstanding delivery with from <= id <= to.
	AckRange(ctx context.Context, h *Handle, from, to uint64) (int, error)

	// Reject returns a delivery for redelivery.
	Reject(ctx context.Context, h *Handle, id uint64) error

	// Flush completes deliveries whose credit is held until flush.
	Flush(ctx context.Context, h *Handle) (int, error)

	// CreateDestination makes a destination known before anything is published to it.
	CreateDestination(ctx context.Context, name string) error

	// DeleteDestination forgets a destination and its log.
	DeleteDestination(ctx context.Context, name string) error

	// ReloadNamespaces replaces the namespace bridging policy. Entries
	// that fail to build are dropped and reported; the rest take effect.
	ReloadNamespaces(records []namespace.Record) []error

	// GetHealth returns the overall health status of the broker.
	GetHealth(ctx context.Context) (HealthStatus, error)

	// GetEventLog returns the broker's destination logs.
	GetEventLog() eventlog.EventLog

	// GetRoutingTable returns the broker's routing table.
	GetRoutingTable() routingtable.RoutingTable
}
