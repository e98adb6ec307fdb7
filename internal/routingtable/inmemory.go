package routingtable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

var (
	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("routing table is closed")

	// ErrNilSubscriber is returned when subscribing without a subscriber
	ErrNilSubscriber = errors.New("subscriber cannot be nil")

	// ErrEmptyFilter is returned when subscribing to an empty filter
	ErrEmptyFilter = errors.New("filter cannot be empty")

	// ErrInvalidDestination is returned for a nil or unnamed destination
	ErrInvalidDestination = errors.New("destination must have a name")

	// ErrSubscriptionNotFound is returned when no subscription matches a filter and subscriber
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// route is one installed subscription and its live destination set.
type route struct {
	sub routingtable.Subscription
	set *DestinationSet
}

// InMemoryRoutingTable implements routingtable.RoutingTable.
//
// Routes are held under one read-write lock; publish lookups only take the
// read lock. Each route's DestinationSet carries its own lock, and the
// destination registry is a concurrent map, so destination lifecycle events
// do not serialize publishes.
type InMemoryRoutingTable struct {
	mu     sync.RWMutex
	routes map[string]map[string]*route // filter -> subscriber ID -> route
	closed bool

	destinations sync.Map // name -> routingtable.Destination

	logger *slog.Logger
}

// Option configures an InMemoryRoutingTable.
type Option func(*InMemoryRoutingTable)

// WithLogger sets the logger used for subscription lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *InMemoryRoutingTable) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// NewInMemoryRoutingTable creates an empty routing table.
func NewInMemoryRoutingTable(opts ...Option) *InMemoryRoutingTable {
	rt := &InMemoryRoutingTable{
		routes: make(map[string]map[string]*route),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.logger = rt.logger.With("component", "routingtable")
	return rt
}

// Subscribe implements routingtable.RoutingTable.
func (rt *InMemoryRoutingTable) Subscribe(ctx context.Context, sub routingtable.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sub.Subscriber == nil {
		return ErrNilSubscriber
	}
	if sub.Context.Filter == "" {
		return ErrEmptyFilter
	}

	// Lifecycle events hold the read lock, so the seed snapshot cannot miss one
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return ErrClosed
	}
	set := NewDestinationSet(sub.Context, rt.snapshotDestinations())

	bySubscriber, ok := rt.routes[sub.Context.Filter]
	if !ok {
		bySubscriber = make(map[string]*route)
		rt.routes[sub.Context.Filter] = bySubscriber
	}
	bySubscriber[sub.Subscriber.ID()] = &route{sub: sub, set: set}

	rt.logger.Debug("subscription installed",
		"filter", sub.Context.Filter,
		"subscriber", sub.Subscriber.ID(),
		"type", sub.Subscriber.Type().String(),
		"destinations", set.Size())
	return nil
}

// Unsubscribe implements routingtable.RoutingTable. Removing a subscription
// that does not exist is not an error.
func (rt *InMemoryRoutingTable) Unsubscribe(ctx context.Context, filter string, subscriberID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return ErrClosed
	}

	bySubscriber, ok := rt.routes[filter]
	if !ok {
		return nil
	}
	if r, ok := bySubscriber[subscriberID]; ok {
		r.set.Clear()
		delete(bySubscriber, subscriberID)
	}
	if len(bySubscriber) == 0 {
		delete(rt.routes, filter)
	}

	rt.logger.Debug("subscription removed", "filter", filter, "subscriber", subscriberID)
	return nil
}

// GetSubscribers implements routingtable.RoutingTable.
func (rt *InMemoryRoutingTable) GetSubscribers(ctx context.Context, destination string) ([]routingtable.Subscriber, error) {
	routes, err := rt.match(ctx, destination)
	if err != nil {
		return nil, err
	}
	out := make([]routingtable.Subscriber, 0, len(routes))
	for _, r := range routes {
		out = append(out, r.sub.Subscriber)
	}
	return out, nil
}

// Route implements routingtable.RoutingTable. Selectors run outside the
// table lock.
func (rt *InMemoryRoutingTable) Route(ctx context.Context, destination string, resolver selector.IdentifierResolver) ([]routingtable.Subscription, error) {
	selected, _, err := rt.RouteMatched(ctx, destination, resolver)
	return selected, err
}

// RouteMatched is Route that also returns how many subscriptions matched
// the destination before selectors ran.
func (rt *InMemoryRoutingTable) RouteMatched(ctx context.Context, destination string, resolver selector.IdentifierResolver) ([]routingtable.Subscription, int, error) {
	routes, err := rt.match(ctx, destination)
	if err != nil {
		return nil, 0, err
	}
	out := make([]routingtable.Subscription, 0, len(routes))
	for _, r := range routes {
		if r.sub.Accepts(resolver) {
			out = append(out, r.sub)
		}
	}
	return out, len(routes), nil
}

// match returns the routes whose filter matches the destination, ordered
// by filter then subscriber ID.
func (rt *InMemoryRoutingTable) match(ctx context.Context, destination string) ([]*route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rt.mu.RLock()
	if rt.closed {
		rt.mu.RUnlock()
		return nil, ErrClosed
	}
	var matched []*route
	for _, bySubscriber := range rt.routes {
		if len(bySubscriber) == 0 {
			continue
		}
		// Every route under one filter shares the same wildcard rule
		var first routingtable.SubscriptionContext
		for _, r := range bySubscriber {
			first = r.sub.Context
			break
		}
		if !MatchesContext(first, destination) {
			continue
		}
		for _, r := range bySubscriber {
			matched = append(matched, r)
		}
	}
	rt.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		fi, fj := matched[i].sub.Context.Filter, matched[j].sub.Context.Filter
		if fi != fj {
			return fi < fj
		}
		return matched[i].sub.Subscriber.ID() < matched[j].sub.Subscriber.ID()
	})
	return matched, nil
}

// GetAllSubscriptions implements routingtable.RoutingTable.
func (rt *InMemoryRoutingTable) GetAllSubscriptions(ctx context.Context) ([]routingtable.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if rt.closed {
		return nil, ErrClosed
	}

	var out []routingtable.Subscription
	for _, bySubscriber := range rt.routes {
		for _, r := range bySubscriber {
			out = append(out, r.sub)
		}
	}
	return out, nil
}

// Rebuild implements routingtable.RoutingTable. Nothing is replaced if any
// of the new subscriptions is invalid.
func (rt *InMemoryRoutingTable) Rebuild(ctx context.Context, subscriptions []routingtable.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return ErrClosed
	}

	destinations := rt.snapshotDestinations()
	routes := make(map[string]map[string]*route)
	for i, sub := range subscriptions {
		if sub.Subscriber == nil {
			return fmt.Errorf("subscription %d: %w", i, ErrNilSubscriber)
		}
		if sub.Context.Filter == "" {
			return fmt.Errorf("subscription %d: %w", i, ErrEmptyFilter)
		}
		bySubscriber, ok := routes[sub.Context.Filter]
		if !ok {
			bySubscriber = make(map[string]*route)
			routes[sub.Context.Filter] = bySubscriber
		}
		bySubscriber[sub.Subscriber.ID()] = &route{sub: sub, set: NewDestinationSet(sub.Context, destinations)}
	}
	rt.routes = routes

	rt.logger.Info("routing table rebuilt", "filters", len(routes), "subscriptions", len(subscriptions))
	return nil
}

// GetFilterCount implements routingtable.RoutingTable.
func (rt *InMemoryRoutingTable) GetFilterCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if rt.closed {
		return 0, ErrClosed
	}
	return len(rt.routes), nil
}

// GetSubscriberCount implements routingtable.RoutingTable.
func (rt *InMemoryRoutingTable) GetSubscriberCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if rt.closed {
		return 0, ErrClosed
	}
	count := 0
	for _, bySubscriber := range rt.routes {
		count += len(bySubscriber)
	}
	return count, nil
}

// OnCreate implements routingtable.RoutingTable.
func (rt *InMemoryRoutingTable) OnCreate(ctx context.Context, d routingtable.Destination) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d == nil || d.Name() == "" {
		return ErrInvalidDestination
	}

	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if rt.closed {
		return ErrClosed
	}

	rt.destinations.Store(d.Name(), d)
	for _, bySubscriber := range rt.routes {
		for _, r := range bySubscriber {
			r.set.Add(d)
		}
	}
	return nil
}

// OnDelete implements routingtable.RoutingTable.
func (rt *InMemoryRoutingTable) OnDelete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if rt.closed {
		return ErrClosed
	}

	rt.destinations.Delete(name)
	for _, bySubscriber := range rt.routes {
		for _, r := range bySubscriber {
			r.set.Remove(name)
		}
	}
	return nil
}

// GetDestinationSet implements routingtable.RoutingTable.
func (rt *InMemoryRoutingTable) GetDestinationSet(ctx context.Context, filter string, subscriberID string) (routingtable.DestinationSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if rt.closed {
		return nil, ErrClosed
	}
	r, ok := rt.routes[filter][subscriberID]
	if !ok {
		return nil, fmt.Errorf("%w: %s for %s", ErrSubscriptionNotFound, filter, subscriberID)
	}
	return r.set, nil
}

// GetDestinationCount implements routingtable.RoutingTable.
func (rt *InMemoryRoutingTable) GetDestinationCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if rt.isClosed() {
		return 0, ErrClosed
	}
	count := 0
	rt.destinations.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count, nil
}

// Close implements io.Closer. It is safe to call more than once.
func (rt *InMemoryRoutingTable) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return nil
	}
	rt.closed = true
	for _, bySubscriber := range rt.routes {
		for _, r := range bySubscriber {
			r.set.Clear()
		}
	}
	rt.routes = make(map[string]map[string]*route)
	return nil
}

func (rt *InMemoryRoutingTable) isClosed() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.closed
}

func (rt *InMemoryRoutingTable) snapshotDestinations() []routingtable.Destination {
	var out []routingtable.Destination
	rt.destinations.Range(func(_, v any) bool {
		out = append(out, v.(routingtable.Destination))
		return true
	})
	return out
}

// Compile-time interface check
var _ routingtable.RoutingTable = (*InMemoryRoutingTable)(nil)
