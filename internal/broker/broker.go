// Package broker wires the routing core together: the selector engine,
// the routing table with its destination sets, the destination logs,
// subscription groups with credit flow control, and the namespace policy
// that decides what is bridged.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rmacdonaldsmith/meshbroker/internal/eventlog"
	"github.com/rmacdonaldsmith/meshbroker/internal/metrics"
	"github.com/rmacdonaldsmith/meshbroker/internal/namespace"
	"github.com/rmacdonaldsmith/meshbroker/internal/routingtable"
	"github.com/rmacdonaldsmith/meshbroker/internal/selector"
	"github.com/rmacdonaldsmith/meshbroker/internal/subscription"
	"github.com/rmacdonaldsmith/meshbroker/pkg/bridge"
	"github.com/rmacdonaldsmith/meshbroker/pkg/broker"
	eventlogpkg "github.com/rmacdonaldsmith/meshbroker/pkg/eventlog"
	namespacepkg "github.com/rmacdonaldsmith/meshbroker/pkg/namespace"
	routingtablepkg "github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

var (
	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("broker is closed")

	// ErrNotStarted is returned when subscribing or publishing before Start
	ErrNotStarted = errors.New("broker is not started")

	// ErrUnknownSubscription is returned for a handle the broker does not hold
	ErrUnknownSubscription = errors.New("unknown subscription")

	// ErrNilConsumer is returned when subscribing without a consumer
	ErrNilConsumer = errors.New("consumer cannot be nil")

	// ErrInvalidTopic is returned when publishing to an empty or wildcard topic
	ErrInvalidTopic = errors.New("topic must be a non-empty name without wildcards")

	// ErrNilRecord is returned when publishing a nil record
	ErrNilRecord = errors.New("record cannot be nil")
)

// subscriptionEntry is what the broker holds for one handle.
type subscriptionEntry struct {
	handle *broker.Handle
	group  *subscription.Group
	member *subscription.Member
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the broker logger, shared with its components.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorded by the broker and its components.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broker) { b.metrics = m }
}

// WithEngine sets the selector engine. By default the broker creates one
// with the built-in functions.
func WithEngine(engine *selector.Engine) Option {
	return func(b *Broker) { b.engine = engine }
}

// WithNamespaceStore sets the namespace policy store, so the same store
// can be shared with a forwarder and a file watcher.
func WithNamespaceStore(store *namespace.Store) Option {
	return func(b *Broker) { b.namespaces = store }
}

// WithForwarder sets where published messages are offered for bridging.
func WithForwarder(f bridge.Forwarder) Option {
	return func(b *Broker) { b.forwarder = f }
}

// Broker implements the broker.Broker interface.
//
// Publishing persists the message in its destination log before it is
// routed, so every delivered or bridged message has an ID and offset.
// Publishes to one destination are appended, routed and offered under
// that destination's lock, so subscribers see them in log order.
type Broker struct {
	// mu guards the lifecycle. Publishes and subscription changes hold it
	// for reading.
	mu     sync.RWMutex
	config Config

	engine     *selector.Engine
	routes     *routingtable.InMemoryRoutingTable
	log        *eventlog.InMemoryEventLog
	groups     *subscription.Manager
	namespaces *namespace.Store
	forwarder  bridge.Forwarder

	logger  *slog.Logger
	metrics *metrics.Metrics

	handlesMu sync.RWMutex
	handles   map[string]*subscriptionEntry

	// direct maps a direct or browser handle ID to its group
	direct sync.Map

	// destMu is taken before any topic lock, never after
	destMu       sync.Mutex
	destinations map[string]struct{}
	topicLocks   sync.Map

	started  bool
	closed   bool
	isClosed atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a broker. It is not started.
func New(config *Config, opts ...Option) (*Broker, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	cfg := *config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	b := &Broker{
		config:       cfg,
		logger:       slog.Default(),
		handles:      make(map[string]*subscriptionEntry),
		destinations: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "broker", "node", cfg.NodeID)

	if b.engine == nil {
		b.engine = selector.NewEngine(nil)
	}
	if b.namespaces == nil {
		b.namespaces = namespace.NewStore(b.engine, namespace.WithLogger(b.logger), namespace.WithMetrics(b.metrics))
	}
	b.routes = routingtable.NewInMemoryRoutingTable(routingtable.WithLogger(b.logger))
	b.log = eventlog.NewInMemoryEventLog(eventlog.WithRetention(cfg.Retention))
	b.groups = subscription.NewManager(b.engine, cfg.Subscription,
		subscription.WithLogger(b.logger), subscription.WithMetrics(b.metrics))

	return b, nil
}

// Start implements broker.Broker. Logs are compacted in the background
// until Stop.
func (b *Broker) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.started {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.compactLoop(loopCtx, b.done)

	b.started = true
	b.logger.Info("broker started")
	return nil
}

// Stop implements broker.Broker.
func (b *Broker) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = false
	b.cancel()
	done := b.done
	b.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.logger.Info("broker stopped")
	return nil
}

// Close implements io.Closer. Every subscription is removed. Close is
// idempotent.
func (b *Broker) Close() error {
	if err := b.Stop(context.Background()); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.isClosed.Store(true)

	b.handlesMu.Lock()
	clear(b.handles)
	b.handlesMu.Unlock()
	b.direct.Range(func(key, value any) bool {
		value.(*subscription.Group).Remove()
		b.direct.Delete(key)
		return true
	})

	return errors.Join(
		b.groups.Close(),
		b.routes.Close(),
		b.log.Close(),
	)
}

func (b *Broker) compactLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(b.config.CompactInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.log.Compact(ctx); err != nil && !errors.Is(err, context.Canceled) {
				b.logger.Warn("log compaction failed", "error", err)
			}
		}
	}
}

// checkRunning must be called with b.mu held.
func (b *Broker) checkRunning() error {
	if b.closed {
		return ErrClosed
	}
	if !b.started {
		return ErrNotStarted
	}
	return nil
}

// Subscribe implements broker.Broker.
func (b *Broker) Subscribe(ctx context.Context, consumer broker.Consumer, sctx routingtablepkg.SubscriptionContext) (*broker.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, ErrNilConsumer
	}
	if sctx.Filter == "" {
		return nil, routingtable.ErrEmptyFilter
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkRunning(); err != nil {
		return nil, err
	}

	h := &broker.Handle{
		ID:         uuid.NewString(),
		ConsumerID: consumer.ID(),
		Context:    sctx,
		Created:    time.Now(),
	}
	adapter := &consumerAdapter{consumer: consumer, handleID: h.ID}

	var (
		entry *subscriptionEntry
		err   error
	)
	if sctx.IsShared() {
		entry, err = b.joinShared(ctx, adapter, h)
	} else {
		entry, err = b.subscribeDirect(ctx, adapter, h)
	}
	if err != nil {
		return nil, err
	}

	b.handlesMu.Lock()
	b.handles[h.ID] = entry
	b.handlesMu.Unlock()
	b.logger.Debug("subscribed", "subscription", h.ID, "consumer", h.ConsumerID,
		"filter", sctx.Filter, "share", sctx.ShareName, "group", h.GroupKey)
	return h, nil
}

func (b *Broker) joinShared(ctx context.Context, consumer *consumerAdapter, h *broker.Handle) (*subscriptionEntry, error) {
	sctx := h.Context
	member, created, err := b.groups.Join(consumer, sctx)
	if err != nil {
		return nil, err
	}
	g := member.Group()
	h.GroupKey = g.Key()

	if created {
		groupCtx := routingtablepkg.SubscriptionContext{
			Filter:    sctx.Filter,
			ShareName: sctx.ShareName,
			Selector:  sctx.Selector,
		}
		sub := routingtablepkg.Subscription{
			Context:    groupCtx,
			Subscriber: routingtablepkg.NewGroupSubscriber(g.Key(), g.ShareName()),
			Selector:   g.Selector(),
		}
		if err := b.routes.Subscribe(ctx, sub); err != nil {
			b.groups.RemoveGroup(g.Filter(), g.Key())
			return nil, fmt.Errorf("failed to install shared group route: %w", err)
		}
	}
	// A concurrent RemoveShare may have torn the group down before its
	// route went in.
	if g.Removed() {
		if created {
			_ = b.routes.Unsubscribe(ctx, g.Filter(), g.Key())
		}
		return nil, subscription.ErrGroupRemoved
	}
	return &subscriptionEntry{handle: h, group: g, member: member}, nil
}

func (b *Broker) subscribeDirect(ctx context.Context, consumer *consumerAdapter, h *broker.Handle) (*subscriptionEntry, error) {
	sctx := h.Context
	sel, err := b.groups.Compile(sctx.Selector)
	if err != nil {
		return nil, err
	}

	kind := subscription.KindDirect
	subscriber := routingtablepkg.NewDirectSubscriber(h.ID)
	if sctx.Browser {
		kind = subscription.KindBrowser
		subscriber = routingtablepkg.NewBrowserSubscriber(h.ID)
	}
	g := subscription.NewGroup(h.ID, "", sctx.Filter, sel, b.config.Subscription,
		subscription.WithKind(kind),
		subscription.WithGroupLogger(b.logger),
		subscription.WithGroupMetrics(b.metrics))
	member, err := g.Join(consumer, sctx)
	if err != nil {
		return nil, err
	}
	h.GroupKey = g.Key()
	b.direct.Store(h.ID, g)

	sub := routingtablepkg.Subscription{
		Context:    sctx,
		Subscriber: subscriber,
		Selector:   sel,
	}
	if subscriber.Browser() {
		err = b.subscribeBrowser(ctx, g, sub)
	} else if err = b.routes.Subscribe(ctx, sub); err != nil {
		err = fmt.Errorf("failed to install route: %w", err)
	}
	if err != nil {
		_ = b.routes.Unsubscribe(ctx, sctx.Filter, g.Key())
		b.direct.Delete(h.ID)
		g.Remove()
		return nil, err
	}
	return &subscriptionEntry{handle: h, group: g, member: member}, nil
}

// subscribeBrowser installs a browser route and offers the group every
// retained message of the destinations it matches, oldest first. The
// matched destinations are locked from before the route goes in until
// the backlog is queued, so a message is either replayed or routed live,
// never both.
func (b *Broker) subscribeBrowser(ctx context.Context, g *subscription.Group, sub routingtablepkg.Subscription) error {
	b.destMu.Lock()
	var names []string
	for name := range b.destinations {
		if routingtable.MatchesContext(sub.Context, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		lock := b.topicLock(name)
		lock.Lock()
		defer lock.Unlock()
	}
	err := b.routes.Subscribe(ctx, sub)
	b.destMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to install route: %w", err)
	}
	return b.replay(ctx, g, names)
}

// replay offers g the retained messages of names in ID order.
func (b *Broker) replay(ctx context.Context, g *subscription.Group, names []string) error {
	var backlog []*eventlogpkg.Record
	for _, name := range names {
		end, err := b.log.EndOffset(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to read destination %s: %w", name, err)
		}
		records, err := b.log.Read(ctx, name, 0, int(end))
		if err != nil {
			return fmt.Errorf("failed to read destination %s: %w", name, err)
		}
		backlog = append(backlog, records...)
	}
	sort.Slice(backlog, func(i, j int) bool { return backlog[i].ID() < backlog[j].ID() })

	sel := g.Selector()
	for _, rec := range backlog {
		if sel != nil && !sel.Evaluate(rec) {
			b.metrics.SelectorRejection()
			continue
		}
		if err := g.Offer(messageFor(rec)); err != nil {
			return err
		}
	}
	return nil
}

// Unsubscribe implements broker.Broker.
func (b *Broker) Unsubscribe(ctx context.Context, h *broker.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h == nil {
		return ErrUnknownSubscription
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	b.handlesMu.Lock()
	entry, ok := b.handles[h.ID]
	delete(b.handles, h.ID)
	b.handlesMu.Unlock()
	if !ok {
		return ErrUnknownSubscription
	}

	if entry.handle.Shared() {
		if err := entry.member.Leave(); err != nil && !errors.Is(err, subscription.ErrGroupRemoved) {
			return err
		}
		return nil
	}

	if err := b.routes.Unsubscribe(ctx, entry.group.Filter(), entry.group.Key()); err != nil {
		return fmt.Errorf("failed to remove route: %w", err)
	}
	b.direct.Delete(entry.group.Key())
	entry.group.Remove()
	return nil
}

// RemoveShare implements broker.Broker.
func (b *Broker) RemoveShare(ctx context.Context, shareName string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrClosed
	}

	removed := b.groups.Remove(shareName)
	var errs []error
	for _, g := range removed {
		if err := b.routes.Unsubscribe(ctx, g.Filter(), g.Key()); err != nil {
			errs = append(errs, err)
		}
	}
	b.handlesMu.Lock()
	for id, entry := range b.handles {
		if entry.group.Removed() {
			delete(b.handles, id)
		}
	}
	b.handlesMu.Unlock()
	if len(removed) > 0 {
		b.logger.Info("shared groups removed", "share", shareName, "groups", len(removed))
	}
	return len(removed), errors.Join(errs...)
}

// Publish implements broker.Broker.
func (b *Broker) Publish(ctx context.Context, topic string, record *eventlogpkg.Record) (broker.PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return broker.PublishResult{}, err
	}
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return broker.PublishResult{}, ErrInvalidTopic
	}
	if record == nil {
		return broker.PublishResult{}, ErrNilRecord
	}

	res, stored, err := b.publishLocal(ctx, topic, record)
	if err != nil {
		return res, err
	}

	if b.forwarder != nil {
		bridged, err := b.forwarder.Forward(ctx, stored)
		if err != nil {
			// Local delivery succeeded; a failed forward does not fail the publish.
			b.logger.Warn("bridge forward failed", "topic", topic, "id", stored.ID(), "error", err)
		}
		res.Bridged = bridged
	}
	return res, nil
}

// publishLocal persists and routes a record. Forwarding happens after it
// returns so that a slow sink does not hold up Stop.
func (b *Broker) publishLocal(ctx context.Context, topic string, record *eventlogpkg.Record) (broker.PublishResult, *eventlogpkg.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkRunning(); err != nil {
		return broker.PublishResult{}, nil, err
	}
	start := time.Now()

	created, err := b.ensureDestination(ctx, topic)
	if err != nil {
		return broker.PublishResult{}, nil, err
	}

	lock := b.topicLock(topic)
	lock.Lock()
	defer lock.Unlock()

	// Persist before routing.
	stored, err := b.log.Append(ctx, topic, record)
	if err != nil {
		return broker.PublishResult{}, nil, fmt.Errorf("failed to persist message: %w", err)
	}
	res := broker.PublishResult{
		ID:          stored.ID(),
		Destination: topic,
		Offset:      stored.Offset(),
		Created:     created,
	}

	selected, matched, err := b.routes.RouteMatched(ctx, topic, stored)
	if err != nil {
		return res, nil, fmt.Errorf("failed to route message: %w", err)
	}
	res.Filtered = matched - len(selected)
	for range res.Filtered {
		b.metrics.SelectorRejection()
	}

	msg := messageFor(stored)
	for _, sub := range selected {
		g, ok := b.groupFor(sub)
		if !ok {
			continue
		}
		if err := g.Offer(msg); err != nil {
			if errors.Is(err, subscription.ErrGroupRemoved) {
				continue
			}
			return res, nil, fmt.Errorf("failed to offer message to %s: %w", g.Key(), err)
		}
		res.Routed++
	}
	b.metrics.MessagePublished(time.Since(start).Seconds())
	return res, stored, nil
}

// groupFor returns the group a routed subscription delivers to. It is
// missing when the subscription was removed after routing.
func (b *Broker) groupFor(sub routingtablepkg.Subscription) (*subscription.Group, bool) {
	if sub.Subscriber.Type() == routingtablepkg.SharedGroup {
		return b.groups.Group(sub.Filter(), sub.Subscriber.ID())
	}
	v, ok := b.direct.Load(sub.Subscriber.ID())
	if !ok {
		return nil, false
	}
	return v.(*subscription.Group), true
}

// topicLock returns the lock serializing publishes to name.
func (b *Broker) topicLock(name string) *sync.Mutex {
	if l, ok := b.topicLocks.Load(name); ok {
		return l.(*sync.Mutex)
	}
	l, _ := b.topicLocks.LoadOrStore(name, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// ensureDestination creates topic on first use and reports whether it did.
func (b *Broker) ensureDestination(ctx context.Context, name string) (bool, error) {
	b.destMu.Lock()
	defer b.destMu.Unlock()
	if _, ok := b.destinations[name]; ok {
		return false, nil
	}
	if err := b.routes.OnCreate(ctx, routingtablepkg.NamedDestination(name)); err != nil {
		return false, fmt.Errorf("failed to create destination: %w", err)
	}
	b.destinations[name] = struct{}{}
	b.metrics.DestinationCount(len(b.destinations))
	return true, nil
}

// CreateDestination implements broker.Broker. Creating a known
// destination is not an error.
func (b *Broker) CreateDestination(ctx context.Context, name string) error {
	if name == "" || strings.ContainsAny(name, "+#") {
		return ErrInvalidTopic
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	_, err := b.ensureDestination(ctx, name)
	return err
}

// DeleteDestination implements broker.Broker. Messages already queued
// for subscriptions stay queued.
func (b *Broker) DeleteDestination(ctx context.Context, name string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	b.destMu.Lock()
	defer b.destMu.Unlock()
	if err := b.routes.OnDelete(ctx, name); err != nil {
		return fmt.Errorf("failed to delete destination: %w", err)
	}
	if err := b.log.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to delete destination log: %w", err)
	}
	delete(b.destinations, name)
	b.metrics.DestinationCount(len(b.destinations))
	return nil
}

func (b *Broker) lookup(h *broker.Handle) (*subscriptionEntry, error) {
	if h == nil {
		return nil, ErrUnknownSubscription
	}
	if b.isClosed.Load() {
		return nil, ErrClosed
	}
	b.handlesMu.RLock()
	defer b.handlesMu.RUnlock()
	entry, ok := b.handles[h.ID]
	if !ok {
		return nil, ErrUnknownSubscription
	}
	return entry, nil
}

// Ack implements broker.Broker.
func (b *Broker) Ack(ctx context.Context, h *broker.Handle, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry, err := b.lookup(h)
	if err != nil {
		return err
	}
	return entry.member.Ack(id)
}

// AckRange implements broker.Broker.
func (b *Broker) AckRange(ctx context.Context, h *broker.Handle, from, to uint64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	entry, err := b.lookup(h)
	if err != nil {
		return 0, err
	}
	return entry.member.AckRange(from, to)
}

// Reject implements broker.Broker.
func (b *Broker) Reject(ctx context.Context, h *broker.Handle, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry, err := b.lookup(h)
	if err != nil {
		return err
	}
	return entry.member.Reject(id)
}

// Flush implements broker.Broker.
func (b *Broker) Flush(ctx context.Context, h *broker.Handle) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	entry, err := b.lookup(h)
	if err != nil {
		return 0, err
	}
	return entry.member.Flush()
}

// Stats returns a snapshot of the group serving h.
func (b *Broker) Stats(h *broker.Handle) (subscription.Stats, error) {
	entry, err := b.lookup(h)
	if err != nil {
		return subscription.Stats{}, err
	}
	return entry.group.Stats(), nil
}

// Ready returns a channel closed when the group serving h next gets
// credit back.
func (b *Broker) Ready(h *broker.Handle) (<-chan struct{}, error) {
	entry, err := b.lookup(h)
	if err != nil {
		return nil, err
	}
	return entry.group.Ready(), nil
}

// ReloadNamespaces implements broker.Broker.
func (b *Broker) ReloadNamespaces(records []namespacepkg.Record) []error {
	return b.namespaces.Load(records)
}

// Namespaces returns the namespace policy store.
func (b *Broker) Namespaces() *namespace.Store {
	return b.namespaces
}

// Engine returns the selector engine subscriptions are compiled with.
func (b *Broker) Engine() *selector.Engine {
	return b.engine
}

// NodeID returns this broker's identifier.
func (b *Broker) NodeID() string {
	return b.config.NodeID
}

// GetEventLog implements broker.Broker.
func (b *Broker) GetEventLog() eventlogpkg.EventLog {
	return b.log
}

// GetRoutingTable implements broker.Broker.
func (b *Broker) GetRoutingTable() routingtablepkg.RoutingTable {
	return b.routes
}

// GetHealth implements broker.Broker.
func (b *Broker) GetHealth(ctx context.Context) (broker.HealthStatus, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.handlesMu.RLock()
	subscriptions := len(b.handles)
	b.handlesMu.RUnlock()

	status := broker.HealthStatus{
		Subscriptions:     subscriptions,
		SharedGroups:      b.groups.Len(),
		NamespacePolicies: b.namespaces.Len(),
		BridgeHealthy:     true,
	}
	if b.closed {
		status.Message = "broker is closed"
		return status, nil
	}

	_, logErr := b.log.GetStatistics(ctx)
	status.EventLogHealthy = logErr == nil
	n, routeErr := b.routes.GetDestinationCount(ctx)
	status.RoutingTableHealthy = routeErr == nil
	status.Destinations = n

	status.Healthy = b.started && status.EventLogHealthy && status.RoutingTableHealthy
	switch {
	case !b.started:
		status.Message = "broker is not started"
	case !status.Healthy:
		status.Message = fmt.Sprintf("degraded: event log: %v, routing table: %v", logErr, routeErr)
	default:
		status.Message = "ok"
	}
	return status, nil
}

// Verify that Broker implements the broker.Broker interface at compile time
var _ broker.Broker = (*Broker)(nil)
