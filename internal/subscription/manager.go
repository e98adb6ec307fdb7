package subscription

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rmacdonaldsmith/meshbroker/internal/metrics"
	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

var (
	// ErrContentFilter is returned when a shared join's selector cannot be compiled
	ErrContentFilter = errors.New("content filter rejected")

	// ErrNotShared is returned when joining with a context that is not a shared subscription
	ErrNotShared = errors.New("subscription is not shared")

	// ErrManagerClosed is returned after Close
	ErrManagerClosed = errors.New("subscription manager closed")
)

// GroupKey returns the key of the shared group for shareName and an
// optional compiled selector. Different selector text always yields a
// different key, so groups never share credit or cursor state across
// selectors.
func GroupKey(shareName string, sel selector.Selector) string {
	var key string
	if sel != nil {
		key = shareName + "_selector_" + strconv.FormatUint(sel.Hash(), 10)
	} else {
		key = shareName + "_normal"
	}
	return strings.NewReplacer("/", "", `\`, "").Replace(key)
}

// Manager keeps the shared groups of a broker, one registry per topic
// filter, keyed by GroupKey within it.
type Manager struct {
	compiler selector.Compiler
	config   Config
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	groups map[string]map[string]*Group // filter -> key -> group
	closed bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger, also used by its groups.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorded by the manager and its groups.
func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager returns an empty manager. compiler compiles join selectors;
// a nil cfg uses the defaults.
func NewManager(compiler selector.Compiler, cfg *Config, opts ...ManagerOption) *Manager {
	if cfg == nil {
		cfg = NewConfig()
	}
	m := &Manager{
		compiler: compiler,
		config:   *cfg,
		logger:   slog.Default(),
		groups:   make(map[string]map[string]*Group),
	}
	m.config.SetDefaults()
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "subscription")
	return m
}

// Compile compiles selector text, wrapping failures in ErrContentFilter.
// Blank text compiles to a nil selector.
func (m *Manager) Compile(text string) (selector.Selector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if m.compiler == nil {
		return nil, fmt.Errorf("%w: no selector compiler configured", ErrContentFilter)
	}
	sel, err := m.compiler.Compile(text)
	if err != nil {
		m.metrics.SelectorParseError()
		return nil, fmt.Errorf("%w: %w", ErrContentFilter, err)
	}
	return sel, nil
}

// Join attaches consumer to the shared group for sctx, creating the
// group on first join. created reports whether the group is new. If the
// selector does not compile the join fails with ErrContentFilter and no
// group is created or changed.
func (m *Manager) Join(consumer Consumer, sctx routingtable.SubscriptionContext) (member *Member, created bool, err error) {
	if !sctx.IsShared() {
		return nil, false, ErrNotShared
	}
	if consumer == nil {
		return nil, false, ErrNilConsumer
	}
	sel, err := m.Compile(sctx.Selector)
	if err != nil {
		return nil, false, err
	}
	key := GroupKey(sctx.ShareName, sel)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, false, ErrManagerClosed
	}
	byKey := m.groups[sctx.Filter]
	g, ok := byKey[key]
	if !ok {
		g = NewGroup(key, sctx.ShareName, sctx.Filter, sel, &m.config,
			WithKind(KindShared), WithGroupLogger(m.logger), WithGroupMetrics(m.metrics))
		if byKey == nil {
			byKey = make(map[string]*Group)
			m.groups[sctx.Filter] = byKey
		}
		byKey[key] = g
		m.metrics.GroupCreated()
		m.logger.Info("shared group created", "group", key, "share", sctx.ShareName, "filter", sctx.Filter)
	}
	m.mu.Unlock()

	// Joining may hand the new member queued messages, so it runs
	// outside the manager lock.
	member, err = g.Join(consumer, sctx)
	if err != nil {
		return nil, false, err
	}
	return member, !ok, nil
}

// Leave detaches a member from its group.
func (m *Manager) Leave(member *Member) error {
	return member.group.Leave(member)
}

// Group returns the group for filter and key.
func (m *Manager) Group(filter, key string) (*Group, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[filter][key]
	return g, ok
}

// Groups returns every active group ordered by filter, then key.
func (m *Manager) Groups() []*Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Group
	for _, byKey := range m.groups {
		for _, g := range byKey {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].filter != out[j].filter {
			return out[i].filter < out[j].filter
		}
		return out[i].key < out[j].key
	})
	return out
}

// Len returns the number of active groups.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, byKey := range m.groups {
		n += len(byKey)
	}
	return n
}

// Remove tears down every group with the given share name, whatever its
// filter or selector, and returns them.
func (m *Manager) Remove(shareName string) []*Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []*Group
	for filter, byKey := range m.groups {
		for key, g := range byKey {
			if g.shareName != shareName {
				continue
			}
			delete(byKey, key)
			removed = append(removed, g)
		}
		if len(byKey) == 0 {
			delete(m.groups, filter)
		}
	}
	for _, g := range removed {
		g.Remove()
		m.metrics.GroupRemoved()
	}
	return removed
}

// RemoveGroup tears down one group.
func (m *Manager) RemoveGroup(filter, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[filter][key]
	if !ok {
		return false
	}
	delete(m.groups[filter], key)
	if len(m.groups[filter]) == 0 {
		delete(m.groups, filter)
	}
	g.Remove()
	m.metrics.GroupRemoved()
	return true
}

// Close removes every group. Later joins return ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, byKey := range m.groups {
		for _, g := range byKey {
			g.Remove()
			m.metrics.GroupRemoved()
		}
	}
	clear(m.groups)
	return nil
}
