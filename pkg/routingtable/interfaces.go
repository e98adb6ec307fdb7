package routingtable

import (
	"context"
	"io"

	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

// Subscriber represents an entity that receives messages for a filter.
type Subscriber interface {
	// ID returns unique identifier for this subscriber
	ID() string

	// Type returns the type of subscriber (direct or shared group)
	Type() SubscriberType
}

// SubscriberType represents different types of subscribers
type SubscriberType int

const (
	// LocalClient represents a direct subscription from a local session
	LocalClient SubscriberType = iota

	// SharedGroup represents a shared subscription group whose members compete for messages
	SharedGroup
)

func (t SubscriberType) String() string {
	switch t {
	case LocalClient:
		return "local"
	case SharedGroup:
		return "shared"
	default:
		return "unknown"
	}
}

// Subscription is an installed filter with its subscriber and optional selector.
type Subscription struct {
	// Context is the filter and options the subscription was created with
	Context SubscriptionContext

	// Subscriber is the entity that wants to receive messages for this filter
	Subscriber Subscriber

	// Selector optionally filters messages by content. Nil selects everything.
	Selector selector.Selector
}

// NewSubscription creates a subscription without a selector.
func NewSubscription(ctx SubscriptionContext, subscriber Subscriber) Subscription {
	return Subscription{Context: ctx, Subscriber: subscriber}
}

// Filter returns the subscription's topic filter.
func (s Subscription) Filter() string {
	return s.Context.Filter
}

// Accepts reports whether the subscription's selector selects the message.
func (s Subscription) Accepts(resolver selector.IdentifierResolver) bool {
	if s.Selector == nil {
		return true
	}
	return s.Selector.Evaluate(resolver)
}

// Destination is an addressable topic or queue known to the broker.
type Destination interface {
	// Name returns the fully qualified destination name
	Name() string
}

// NamedDestination is a Destination that carries nothing but its name.
type NamedDestination string

// Name implements Destination.
func (d NamedDestination) Name() string { return string(d) }

// DestinationSet is the live view of all known destinations that match one
// subscription's filter. Every member satisfies the filter; Add re-tests the
// filter and rejects destinations that do not.
type DestinationSet interface {
	// Context returns the subscription context the set filters by
	Context() SubscriptionContext

	// Interest reports whether a destination name matches the set's filter
	Interest(name string) bool

	// Add inserts the destination if its name matches. Reports whether it was added.
	Add(d Destination) bool

	// AddAll adds every matching destination. Reports whether any was added.
	AddAll(ds []Destination) bool

	// Remove deletes the named destination. Reports whether it was present.
	Remove(name string) bool

	// RemoveAll deletes every named destination. Reports whether any was present.
	RemoveAll(names []string) bool

	// RemoveIf deletes every destination the predicate selects and returns the count.
	RemoveIf(pred func(Destination) bool) int

	// Contains reports whether the named destination is in the set
	Contains(name string) bool

	// Get returns the named destination
	Get(name string) (Destination, bool)

	// Size returns the number of destinations in the set
	Size() int

	// IsEmpty reports whether the set is empty
	IsEmpty() bool

	// Destinations returns a snapshot of the set
	Destinations() []Destination

	// Range calls fn for each destination until fn returns false
	Range(fn func(Destination) bool)

	// Clear empties the set
	Clear()
}

// RoutingTable manages filter-to-subscriber mappings for message routing
// and keeps each subscription's DestinationSet current as destinations are
// created and deleted.
type RoutingTable interface {
	io.Closer

	// Subscribe installs a subscription. Subscribing the same subscriber to
	// the same filter again replaces the earlier subscription.
	Subscribe(ctx context.Context, sub Subscription) error

	// Unsubscribe removes the subscription of a subscriber to a filter.
	Unsubscribe(ctx context.Context, filter string, subscriberID string) error

	// GetSubscribers returns all subscribers whose filter matches the destination.
	// Selectors are not applied.
	GetSubscribers(ctx context.Context, destination string) ([]Subscriber, error)

	// Route returns the subscriptions whose filter matches the destination
	// and whose selector selects the message.
	Route(ctx context.Context, destination string, resolver selector.IdentifierResolver) ([]Subscription, error)

	// GetAllSubscriptions returns all current subscriptions.
	GetAllSubscriptions(ctx context.Context) ([]Subscription, error)

	// Rebuild replaces every subscription with the given set.
	Rebuild(ctx context.Context, subscriptions []Subscription) error

	// GetFilterCount returns the number of unique filters being tracked.
	GetFilterCount(ctx context.Context) (int, error)

	// GetSubscriberCount returns the total number of subscriptions.
	GetSubscriberCount(ctx context.Context) (int, error)

	// OnCreate records a new destination and adds it to every matching DestinationSet.
	OnCreate(ctx context.Context, d Destination) error

	// OnDelete forgets a destination and removes it from every DestinationSet.
	OnDelete(ctx context.Context, name string) error

	// GetDestinationSet returns the live destination set of a subscription.
	GetDestinationSet(ctx context.Context, filter string, subscriberID string) (DestinationSet, error)

	// GetDestinationCount returns the number of known destinations.
	GetDestinationCount(ctx context.Context) (int, error)
}
