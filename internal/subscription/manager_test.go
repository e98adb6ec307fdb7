package subscription

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/meshbroker/internal/metrics"
	"github.com/rmacdonaldsmith/meshbroker/internal/selector"
	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
	pkgselector "github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

func newTestManager(t *testing.T, m *metrics.Metrics) *Manager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := NewManager(selector.NewEngine(nil), NewConfig().WithCapacity(8), WithLogger(logger), WithMetrics(m))
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestGroupKey(t *testing.T) {
	sel, err := selector.NewEngine(nil).Compile("value > 20")
	require.NoError(t, err)

	assert.Equal(t, "grp_normal", GroupKey("grp", nil))
	assert.Equal(t, "grp_selector_"+itoa(sel.Hash()), GroupKey("grp", sel))
	assert.Equal(t, "abc_normal", GroupKey(`a/b\c`, nil))
}

func TestManager_SameShareSameGroup(t *testing.T) {
	mgr := newTestManager(t, nil)
	a, b := newConsumer("a"), newConsumer("b")

	ma, created, err := mgr.Join(a, shared("grp"))
	require.NoError(t, err)
	assert.True(t, created)
	mb, created, err := mgr.Join(b, shared("grp"))
	require.NoError(t, err)
	assert.False(t, created)
	require.Same(t, ma.Group(), mb.Group())

	g := ma.Group()
	for id := uint64(1); id <= 10; id++ {
		require.NoError(t, g.Offer(msg(id)))
	}

	seen := make(map[uint64]string)
	for _, c := range []*testConsumer{a, b} {
		for _, id := range c.ids() {
			if prev, dup := seen[id]; dup {
				t.Fatalf("message %d delivered to %s and %s", id, prev, c.id)
			}
			seen[id] = c.id
		}
	}
	assert.Len(t, seen, 8, "capacity 8 bounds the first round")
}

func TestManager_DistinctSelectorDistinctGroup(t *testing.T) {
	m := metrics.New("test")
	mgr := newTestManager(t, m)

	ma, _, err := mgr.Join(newConsumer("a"), shared("grp"))
	require.NoError(t, err)
	mb, _, err := mgr.Join(newConsumer("b"), shared("grp"))
	require.NoError(t, err)
	mc, created, err := mgr.Join(newConsumer("c"), shared("grp").WithSelector("value > 20"))
	require.NoError(t, err)
	assert.True(t, created)

	assert.Same(t, ma.Group(), mb.Group())
	assert.NotSame(t, ma.Group(), mc.Group())
	assert.NotSame(t, ma.Group().Credit(), mc.Group().Credit())
	assert.NotNil(t, mc.Group().Selector())
	assert.Equal(t, 2, mgr.Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SharedGroups))

	// Exhaust the normal group's credit; the selector group is unaffected
	for id := uint64(1); id <= 20; id++ {
		require.NoError(t, ma.Group().Offer(msg(id)))
	}
	assert.Equal(t, 8, ma.Group().Stats().CreditOutstanding)
	assert.Equal(t, 0, mc.Group().Stats().CreditOutstanding)
	require.NoError(t, mc.Group().Offer(msg(100)))
	assert.Equal(t, 1, mc.Group().Stats().CreditOutstanding)
}

func TestManager_SameShareDifferentFilter(t *testing.T) {
	mgr := newTestManager(t, nil)
	ma, _, err := mgr.Join(newConsumer("a"), routingtable.NewSubscriptionContext("$share/grp/a/#"))
	require.NoError(t, err)
	mb, _, err := mgr.Join(newConsumer("b"), routingtable.NewSubscriptionContext("$share/grp/b/#"))
	require.NoError(t, err)

	assert.NotSame(t, ma.Group(), mb.Group())
	assert.Equal(t, ma.Group().Key(), mb.Group().Key())

	g, ok := mgr.Group("a/#", "grp_normal")
	require.True(t, ok)
	assert.Same(t, ma.Group(), g)
}

func TestManager_ContentFilterRejectsJoin(t *testing.T) {
	m := metrics.New("test")
	mgr := newTestManager(t, m)
	ma, _, err := mgr.Join(newConsumer("a"), shared("grp"))
	require.NoError(t, err)

	_, _, err = mgr.Join(newConsumer("b"), shared("grp").WithSelector("value >"))
	require.ErrorIs(t, err, ErrContentFilter)
	var perr *pkgselector.ParseError
	assert.True(t, errors.As(err, &perr))

	assert.Equal(t, 1, mgr.Len(), "no group created for the rejected join")
	assert.Equal(t, []string{"a"}, ma.Group().Members())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SelectorErrors))
}

func TestManager_RejectsUnshared(t *testing.T) {
	mgr := newTestManager(t, nil)

	_, _, err := mgr.Join(newConsumer("a"), routingtable.NewSubscriptionContext("orders/+"))
	assert.ErrorIs(t, err, ErrNotShared)

	_, _, err = mgr.Join(newConsumer("a"), shared("grp").AsBrowser())
	assert.ErrorIs(t, err, ErrNotShared, "browsers never join share groups")
}

func TestManager_Remove(t *testing.T) {
	mgr := newTestManager(t, nil)
	ma, _, err := mgr.Join(newConsumer("a"), shared("grp"))
	require.NoError(t, err)
	_, _, err = mgr.Join(newConsumer("b"), shared("grp").WithSelector("x = 1"))
	require.NoError(t, err)
	_, _, err = mgr.Join(newConsumer("c"), shared("other"))
	require.NoError(t, err)

	removed := mgr.Remove("grp")
	assert.Len(t, removed, 2)
	assert.Equal(t, 1, mgr.Len())
	assert.True(t, ma.Group().Removed())
	assert.ErrorIs(t, mgr.Leave(ma), ErrGroupRemoved)

	// A new join after teardown creates a fresh group
	ma2, created, err := mgr.Join(newConsumer("a"), shared("grp"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotSame(t, ma.Group(), ma2.Group())

	assert.True(t, mgr.RemoveGroup("orders/+", "other_normal"))
	assert.False(t, mgr.RemoveGroup("orders/+", "other_normal"))
}

func TestManager_Close(t *testing.T) {
	mgr := newTestManager(t, nil)
	ma, _, err := mgr.Join(newConsumer("a"), shared("grp"))
	require.NoError(t, err)

	require.NoError(t, mgr.Close())
	require.NoError(t, mgr.Close())
	assert.True(t, ma.Group().Removed())
	assert.Empty(t, mgr.Groups())

	_, _, err = mgr.Join(newConsumer("b"), shared("grp"))
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestManager_NilConsumerCreatesNothing(t *testing.T) {
	mgr := newTestManager(t, nil)

	_, created, err := mgr.Join(nil, shared("grp"))
	assert.ErrorIs(t, err, ErrNilConsumer)
	assert.False(t, created)
	assert.Zero(t, mgr.Len())
}

// TestManager_JoinDeliversOutsideLock tests that a member receiving queued
// messages on join may look its group up again from inside Deliver.
func TestManager_JoinDeliversOutsideLock(t *testing.T) {
	mgr := newTestManager(t, nil)
	first, _, err := mgr.Join(newConsumer("a"), shared("grp"))
	require.NoError(t, err)
	g := first.Group()
	require.NoError(t, first.Leave())
	require.NoError(t, g.Offer(msg(1)))

	c := &lookupConsumer{testConsumer: newConsumer("b"), mgr: mgr, filter: g.Filter(), key: g.Key()}
	_, created, err := mgr.Join(c, shared("grp"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []uint64{1}, c.ids())
	assert.True(t, c.found)
}

type lookupConsumer struct {
	*testConsumer
	mgr         *Manager
	filter, key string
	found       bool
}

func (c *lookupConsumer) Deliver(msg Message) bool {
	_, c.found = c.mgr.Group(c.filter, c.key)
	return c.testConsumer.Deliver(msg)
}
