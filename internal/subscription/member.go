package subscription

import (
	"sync/atomic"

	"github.com/rmacdonaldsmith/meshbroker/internal/flowcontrol"
	"github.com/rmacdonaldsmith/meshbroker/internal/state"
	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

// Member is one consumer attached to a Group.
type Member struct {
	id        string
	group     *Group
	consumer  Consumer
	context   routingtable.SubscriptionContext
	ctrl      flowcontrol.Controller
	proxy     *state.ProxyStateManager
	delivered atomic.Uint64
}

// ID returns the consumer ID.
func (m *Member) ID() string { return m.id }

// Group returns the group the member joined.
func (m *Member) Group() *Group { return m.group }

// Context returns the subscription context the member joined with.
func (m *Member) Context() routingtable.SubscriptionContext { return m.context }

// Mode returns the member's acknowledgement mode.
func (m *Member) Mode() flowcontrol.Mode { return m.ctrl.Mode() }

// Outstanding returns the ids delivered to the member and not yet
// acknowledged, in ascending order.
func (m *Member) Outstanding() []uint64 { return m.ctrl.Outstanding() }

// Delivered returns how many messages the member has been handed.
func (m *Member) Delivered() uint64 { return m.delivered.Load() }

// Ack acknowledges one message.
func (m *Member) Ack(id uint64) error { return m.group.Ack(m, id) }

// AckRange acknowledges every outstanding message in [from, to].
func (m *Member) AckRange(from, to uint64) (int, error) { return m.group.AckRange(m, from, to) }

// Reject puts one message back for redelivery.
func (m *Member) Reject(id uint64) error { return m.group.Reject(m, id) }

// Flush completes deliveries held for flush.
func (m *Member) Flush() (int, error) { return m.group.Flush(m) }

// Leave detaches the member from its group.
func (m *Member) Leave() error { return m.group.Leave(m) }
