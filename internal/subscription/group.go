// Package subscription distributes messages to the consumers of a
// subscription under credit-based flow control.
//
// A Group owns one message cursor and one credit pool. Each consumer is
// attached as a Member with its own acknowledgement controller drawing on
// the group's pool. Messages are handed round robin to whichever member
// next has credit, and no message is handed to two members at once. A
// direct subscription is a Group with a single member; a shared
// subscription is a Group that any number of members join and leave.
package subscription

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/rmacdonaldsmith/meshbroker/internal/flowcontrol"
	"github.com/rmacdonaldsmith/meshbroker/internal/metrics"
	"github.com/rmacdonaldsmith/meshbroker/internal/state"
	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

var (
	// ErrGroupRemoved is returned by every operation on a removed group
	ErrGroupRemoved = errors.New("subscription group removed")

	// ErrMemberNotFound is returned for a member that is not in the group
	ErrMemberNotFound = errors.New("member not found")

	// ErrNilConsumer is returned when joining without a consumer
	ErrNilConsumer = errors.New("consumer cannot be nil")
)

// Group kinds, used as the delivery metrics label.
const (
	KindDirect  = "direct"
	KindShared  = "shared"
	KindBrowser = "browser"
)

// Message is one message offered to a group.
type Message struct {
	// ID is the broker-wide message identifier
	ID uint64

	// Destination is the name the message was published to
	Destination string

	// Priority orders delivery; see state.MaxPriority
	Priority int

	// Properties is what selectors evaluate
	Properties selector.IdentifierResolver

	// Body is carried to the consumer untouched
	Body any

	// Redelivered is set when the message was handed out before
	Redelivered bool
}

// Consumer receives messages from a group.
type Consumer interface {
	// ID identifies the consumer within a group.
	ID() string

	// Deliver hands over one message. It must not block; returning false
	// means the consumer cannot take the message now and it is put back.
	// Deliver is called without the group lock held, so it may ack or
	// reject through its Member.
	Deliver(msg Message) bool
}

// Stats is a point-in-time view of a group.
type Stats struct {
	Key               string
	ShareName         string
	Filter            string
	Members           int
	Pending           int
	InFlight          int
	CreditOutstanding int
	CreditCapacity    int
}

type pending struct {
	msg         Message
	redelivered bool
}

// handoff is a message allocated to a member and waiting to be passed
// to its consumer.
type handoff struct {
	member      *Member
	id          uint64
	msg         Message
	outstanding bool
}

// Group is one subscription's cursor, credit pool and members.
type Group struct {
	key       string
	shareName string
	filter    string
	kind      string
	selector  selector.Selector
	config    Config

	state  *state.BoundedStateManager
	credit *flowcontrol.FixedCreditManager

	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	messages map[uint64]*pending
	members  []*Member
	byID     map[string]*Member
	cursor   int
	removed  bool

	// outbox holds handoffs in allocation order. Only the goroutine that
	// set delivering calls consumers, so they see messages in that order.
	outbox     []handoff
	delivering bool
	refused    map[*Member]bool
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithKind sets the group kind reported in metrics.
func WithKind(kind string) GroupOption {
	return func(g *Group) { g.kind = kind }
}

// WithGroupLogger sets the group logger.
func WithGroupLogger(logger *slog.Logger) GroupOption {
	return func(g *Group) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGroupMetrics sets the metrics the group records to.
func WithGroupMetrics(m *metrics.Metrics) GroupOption {
	return func(g *Group) { g.metrics = m }
}

// NewGroup creates an empty group. sel may be nil. A nil config uses
// the defaults.
func NewGroup(key, shareName, filter string, sel selector.Selector, cfg *Config, opts ...GroupOption) *Group {
	if cfg == nil {
		cfg = NewConfig()
	}
	c := *cfg
	c.SetDefaults()

	g := &Group{
		key:       key,
		shareName: shareName,
		filter:    filter,
		kind:      KindShared,
		selector:  sel,
		config:    c,
		state:     state.NewBoundedStateManager(key, c.Window),
		credit:    flowcontrol.NewFixedCreditManager(c.Capacity),
		logger:    slog.Default(),
		messages:  make(map[uint64]*pending),
		byID:      make(map[string]*Member),
		refused:   make(map[*Member]bool),
		cursor:    -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("group", key)
	return g
}

// Key returns the group key.
func (g *Group) Key() string { return g.key }

// ShareName returns the share name, empty for direct groups.
func (g *Group) ShareName() string { return g.shareName }

// Filter returns the topic filter the group consumes.
func (g *Group) Filter() string { return g.filter }

// Kind returns the group kind.
func (g *Group) Kind() string { return g.kind }

// Selector returns the group's compiled selector, or nil.
func (g *Group) Selector() selector.Selector { return g.selector }

// Credit returns the group's credit pool.
func (g *Group) Credit() flowcontrol.CreditManager { return g.credit }

// Ready returns a channel closed the next time credit is returned to
// the pool, or an already closed channel if credit is free.
func (g *Group) Ready() <-chan struct{} { return g.credit.Ready() }

// Removed reports whether the group has been torn down.
func (g *Group) Removed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removed
}

// Join attaches consumer as a member. A consumer already in the group
// under the same ID is replaced; its outstanding messages are put back.
func (g *Group) Join(consumer Consumer, sctx routingtable.SubscriptionContext) (*Member, error) {
	if consumer == nil {
		return nil, ErrNilConsumer
	}
	var m *Member
	err := g.update(func() error {
		if g.removed {
			return ErrGroupRemoved
		}
		if old, ok := g.byID[consumer.ID()]; ok {
			g.leaveLocked(old)
		}
		m = g.joinLocked(consumer, sctx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (g *Group) joinLocked(consumer Consumer, sctx routingtable.SubscriptionContext) *Member {

	mode := flowcontrol.ModeFor(sctx.QoS)
	m := &Member{
		id:       consumer.ID(),
		group:    g,
		consumer: consumer,
		context:  sctx,
		ctrl:     flowcontrol.NewController(mode, g.credit, sctx.ReceiveMaximum, g.config.ReleasePolicy),
		proxy:    state.NewProxyStateManager(g.state),
	}
	g.members = append(g.members, m)
	g.byID[m.id] = m
	g.metrics.MemberJoined()
	g.metrics.SubscriptionDelta(1)
	g.logger.Debug("member joined", "member", m.id, "mode", mode, "members", len(g.members))
	return m
}

// Leave detaches a member. Its outstanding messages return to the
// group's cursor marked redelivered. The group stays active with no
// members until Remove.
func (g *Group) Leave(m *Member) error {
	return g.update(func() error {
		if g.removed {
			return ErrGroupRemoved
		}
		if g.byID[m.id] != m {
			return fmt.Errorf("%w: %s", ErrMemberNotFound, m.id)
		}
		g.leaveLocked(m)
		return nil
	})
}

func (g *Group) leaveLocked(m *Member) {
	delete(g.byID, m.id)
	for i, x := range g.members {
		if x == m {
			g.members = append(g.members[:i], g.members[i+1:]...)
			break
		}
	}
	if len(g.members) > 0 {
		g.cursor %= len(g.members)
	} else {
		g.cursor = -1
	}

	m.ctrl.Cancel()
	delete(g.refused, m)
	g.outbox = slices.DeleteFunc(g.outbox, func(h handoff) bool { return h.member == m })
	rolled := m.proxy.RollbackInFlight()
	for _, id := range rolled {
		if p, ok := g.messages[id]; ok {
			p.redelivered = true
		}
	}
	g.metrics.Redelivery(len(rolled))
	g.metrics.MemberLeft()
	g.metrics.SubscriptionDelta(-1)
	g.logger.Debug("member left", "member", m.id, "requeued", len(rolled), "members", len(g.members))
}

// Offer queues a message and delivers what credit allows. The message
// is assumed to have passed the group's selector already.
func (g *Group) Offer(msg Message) error {
	return g.update(func() error {
		if g.removed {
			return ErrGroupRemoved
		}
		if _, held := g.messages[msg.ID]; held {
			return nil
		}
		g.messages[msg.ID] = &pending{msg: msg, redelivered: msg.Redelivered}
		evicted := g.state.Register(msg.ID, msg.Priority)
		for _, id := range evicted {
			delete(g.messages, id)
		}
		if len(evicted) > 0 {
			g.metrics.Eviction(len(evicted))
			g.logger.Warn("at-rest window full, evicted oldest messages", "evicted", len(evicted), "window", g.config.Window)
		}
		return nil
	})
}

// Drain delivers as many queued messages as credit allows and returns
// the number delivered. It returns 0 when another goroutine is already
// delivering; that goroutine picks up what was queued.
func (g *Group) Drain() int {
	g.mu.Lock()
	if g.removed {
		g.mu.Unlock()
		return 0
	}
	g.drainLocked()
	g.mu.Unlock()
	return g.flush()
}

// update runs fn under the group lock. On success it allocates what
// credit allows, then passes the allocations to consumers after the
// lock is released.
func (g *Group) update(fn func() error) error {
	g.mu.Lock()
	err := fn()
	if err == nil && !g.removed {
		g.drainLocked()
	}
	g.mu.Unlock()
	g.flush()
	return err
}

// drainLocked allocates queued messages to members until the cursor is
// empty or nobody can take the next one.
func (g *Group) drainLocked() {
	for len(g.members) > 0 {
		id, ok := g.state.Next()
		if !ok {
			return
		}
		p, ok := g.messages[id]
		if !ok {
			g.state.Remove(id)
			continue
		}
		if !g.allocateLocked(id, p) {
			return
		}
	}
}

// allocateLocked hands id to the next member that can take it and
// queues the handoff. It makes at most one pass over the members and
// reports false when none could.
func (g *Group) allocateLocked(id uint64, p *pending) bool {
	starved := true
	for n := len(g.members); n > 0; n-- {
		g.cursor = (g.cursor + 1) % len(g.members)
		m := g.members[g.cursor]
		if !m.ctrl.CanSend() {
			continue
		}
		starved = false
		if g.refused[m] {
			continue
		}
		if !m.proxy.Allocate(id) {
			return false
		}
		outstanding, err := m.ctrl.Sent(id)
		if err != nil {
			m.proxy.Rollback(id)
			g.metrics.NoCredit()
			continue
		}

		msg := p.msg
		msg.Redelivered = p.redelivered
		g.outbox = append(g.outbox, handoff{member: m, id: id, msg: msg, outstanding: outstanding})
		return true
	}
	if starved {
		g.metrics.NoCredit()
	}
	return false
}

// flush passes queued handoffs to their consumers in order and returns
// how many were accepted. Consumers are called without the lock held.
func (g *Group) flush() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.delivering {
		return 0
	}
	g.delivering = true
	delivered := 0
	for len(g.outbox) > 0 {
		h := g.outbox[0]
		g.outbox = g.outbox[1:]

		g.mu.Unlock()
		ok := h.member.consumer.Deliver(h.msg)
		g.mu.Lock()

		if g.settleLocked(h, ok) {
			delivered++
		}
	}
	g.outbox = nil
	g.delivering = false
	clear(g.refused)
	return delivered
}

// settleLocked records the outcome of one handoff. A refused message
// goes back to the cursor along with every handoff queued behind it, and
// the refusing member is skipped until the current flush ends.
func (g *Group) settleLocked(h handoff, ok bool) bool {
	if g.removed || g.byID[h.member.id] != h.member {
		// The member left and its allocations were already put back.
		return false
	}
	m := h.member
	if ok {
		m.delivered.Add(1)
		g.metrics.MessageDelivered(g.kind)
		if !h.outstanding {
			g.commitLocked(m, h.id)
		}
		return true
	}

	g.unallocateLocked(h)
	for _, queued := range g.outbox {
		g.unallocateLocked(queued)
	}
	g.outbox = g.outbox[:0]
	g.refused[m] = true
	g.drainLocked()
	return false
}

func (g *Group) unallocateLocked(h handoff) {
	if h.outstanding {
		_ = h.member.ctrl.Reject(h.id)
	}
	h.member.proxy.Rollback(h.id)
}

// Ack acknowledges one message delivered to m.
func (g *Group) Ack(m *Member, id uint64) error {
	return g.update(func() error {
		if err := g.checkMemberLocked(m); err != nil {
			return err
		}
		if err := m.ctrl.Ack(id); err != nil {
			return err
		}
		g.commitLocked(m, id)
		return nil
	})
}

// AckRange acknowledges every message delivered to m with from <= id <= to
// and returns how many were acknowledged.
func (g *Group) AckRange(m *Member, from, to uint64) (int, error) {
	var n int
	err := g.update(func() error {
		if err := g.checkMemberLocked(m); err != nil {
			return err
		}
		ids := m.ctrl.AckRange(from, to)
		for _, id := range ids {
			g.commitLocked(m, id)
		}
		n = len(ids)
		return nil
	})
	return n, err
}

// Reject returns one message delivered to m to the cursor for redelivery.
func (g *Group) Reject(m *Member, id uint64) error {
	return g.update(func() error {
		if err := g.checkMemberLocked(m); err != nil {
			return err
		}
		if err := m.ctrl.Reject(id); err != nil {
			return err
		}
		if m.proxy.Rollback(id) {
			if p, ok := g.messages[id]; ok {
				p.redelivered = true
			}
			g.metrics.Redelivery(1)
		}
		return nil
	})
}

// Flush completes m's deliveries held by the flush release policy and
// returns how many were completed.
func (g *Group) Flush(m *Member) (int, error) {
	var n int
	err := g.update(func() error {
		if err := g.checkMemberLocked(m); err != nil {
			return err
		}
		ids := m.ctrl.Flush()
		for _, id := range ids {
			g.commitLocked(m, id)
		}
		n = len(ids)
		return nil
	})
	return n, err
}

func (g *Group) commitLocked(m *Member, id uint64) {
	m.proxy.Commit(id)
	delete(g.messages, id)
}

func (g *Group) checkMemberLocked(m *Member) error {
	if g.removed {
		return ErrGroupRemoved
	}
	if m == nil || g.byID[m.id] != m {
		return ErrMemberNotFound
	}
	return nil
}

// Remove tears the group down. Queued and outstanding messages are
// dropped, credit is returned, and every later call on the group or its
// members returns ErrGroupRemoved. Remove is idempotent.
func (g *Group) Remove() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.removed {
		return
	}
	g.removed = true
	for _, m := range g.members {
		m.ctrl.Cancel()
		m.proxy.Clear()
		g.metrics.SubscriptionDelta(-1)
	}
	g.members = nil
	g.outbox = nil
	clear(g.byID)
	clear(g.refused)
	clear(g.messages)
	g.state.Clear()
	g.logger.Info("subscription group removed")
}

// Members returns the member IDs in round-robin order.
func (g *Group) Members() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, len(g.members))
	for i, m := range g.members {
		ids[i] = m.id
	}
	return ids
}

// Stats returns a snapshot of the group.
func (g *Group) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Key:               g.key,
		ShareName:         g.shareName,
		Filter:            g.filter,
		Members:           len(g.members),
		Pending:           g.state.Pending(),
		InFlight:          g.state.InFlight(),
		CreditOutstanding: g.credit.Outstanding(),
		CreditCapacity:    g.credit.Capacity(),
	}
}
