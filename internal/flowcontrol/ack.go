package flowcontrol

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

// Mode selects how deliveries are acknowledged.
type Mode int

const (
	// ModeAuto treats a delivery as acknowledged when it is handed off.
	ModeAuto Mode = iota
	// ModeIndividual waits for an explicit ack of each message or range.
	ModeIndividual
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeIndividual:
		return "individual"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ModeFor returns the acknowledgement mode for a negotiated QoS.
// At-most-once is auto acknowledged; anything stronger is individual.
func ModeFor(qos routingtable.QoS) Mode {
	if qos == routingtable.AtMostOnce {
		return ModeAuto
	}
	return ModeIndividual
}

// ReleasePolicy controls when ModeAuto returns credit.
type ReleasePolicy int

const (
	// ReleaseOnHandoff returns credit as soon as a message is handed off.
	ReleaseOnHandoff ReleasePolicy = iota
	// ReleaseOnFlush holds credit until Flush.
	ReleaseOnFlush
)

// String returns the policy name as used in configuration
func (p ReleasePolicy) String() string {
	if p == ReleaseOnFlush {
		return "flush"
	}
	return "handoff"
}

// ParseReleasePolicy parses "handoff" or "flush". An empty string is handoff.
func ParseReleasePolicy(s string) (ReleasePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "handoff":
		return ReleaseOnHandoff, nil
	case "flush":
		return ReleaseOnFlush, nil
	default:
		return ReleaseOnHandoff, fmt.Errorf("unknown ack release policy %q", s)
	}
}

// Controller tracks the deliveries of one consumer and takes credit for
// them from a shared pool. Ids are broker message identifiers.
type Controller interface {
	// Mode returns the acknowledgement mode.
	Mode() Mode

	// CanSend reports whether a delivery would currently be admitted.
	CanSend() bool

	// Sent records a delivery, taking credit. It returns ErrNoCredit when
	// the consumer or the pool is full. It reports whether the message
	// stays outstanding; false means it is already acknowledged.
	Sent(id uint64) (outstanding bool, err error)

	// Ack acknowledges one message.
	Ack(id uint64) error

	// AckRange acknowledges every outstanding message with from <= id <= to
	// and returns the acknowledged ids in ascending order.
	AckRange(from, to uint64) []uint64

	// Reject drops one outstanding message without acknowledging it so
	// that it can be redelivered.
	Reject(id uint64) error

	// Flush completes deliveries held by ReleaseOnFlush and returns their ids.
	Flush() []uint64

	// Cancel drops every outstanding message, returning credit, and
	// returns their ids in ascending order.
	Cancel() []uint64

	// Outstanding returns the outstanding ids in ascending order.
	Outstanding() []uint64
}

// NewController returns a controller for mode drawing on credit.
// receiveMaximum bounds the consumer's own outstanding count; zero or
// less means only the pool bounds it.
func NewController(mode Mode, credit CreditManager, receiveMaximum int, policy ReleasePolicy) Controller {
	if mode == ModeAuto {
		return NewAutoController(credit, policy)
	}
	return NewIndividualController(credit, receiveMaximum)
}

// tracker is the outstanding-id bookkeeping shared by both controllers.
type tracker struct {
	mu          sync.Mutex
	credit      CreditManager
	outstanding map[uint64]struct{}
}

func newTracker(credit CreditManager) tracker {
	return tracker{credit: credit, outstanding: make(map[uint64]struct{})}
}

func (t *tracker) ack(id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.outstanding[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMessage, id)
	}
	delete(t.outstanding, id)
	t.credit.Release(1)
	return nil
}

func (t *tracker) ackRange(from, to uint64) []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []uint64
	for id := range t.outstanding {
		if id >= from && id <= to {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		delete(t.outstanding, id)
	}
	t.credit.Release(len(ids))
	slices.Sort(ids)
	return ids
}

func (t *tracker) drain() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.sortedLocked()
	clear(t.outstanding)
	t.credit.Release(len(ids))
	return ids
}

func (t *tracker) sorted() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sortedLocked()
}

func (t *tracker) sortedLocked() []uint64 {
	ids := make([]uint64, 0, len(t.outstanding))
	for id := range t.outstanding {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// AutoController acknowledges on handoff. Under ReleaseOnHandoff credit
// is taken and returned immediately, so the pool still bounds deliveries
// in progress. Under ReleaseOnFlush deliveries stay outstanding until
// Flush.
type AutoController struct {
	tracker
	policy ReleasePolicy
}

// NewAutoController returns an auto acknowledging controller.
func NewAutoController(credit CreditManager, policy ReleasePolicy) *AutoController {
	return &AutoController{tracker: newTracker(credit), policy: policy}
}

// Mode implements Controller.
func (c *AutoController) Mode() Mode { return ModeAuto }

// CanSend implements Controller.
func (c *AutoController) CanSend() bool { return c.credit.Available() > 0 }

// Sent implements Controller.
func (c *AutoController) Sent(id uint64) (bool, error) {
	if err := c.credit.Acquire(); err != nil {
		return false, err
	}
	if c.policy == ReleaseOnHandoff {
		c.credit.Release(1)
		return false, nil
	}
	c.mu.Lock()
	c.outstanding[id] = struct{}{}
	c.mu.Unlock()
	return true, nil
}

// Ack implements Controller. Only deliveries held for flush can be acked.
func (c *AutoController) Ack(id uint64) error { return c.ack(id) }

// AckRange implements Controller.
func (c *AutoController) AckRange(from, to uint64) []uint64 { return c.ackRange(from, to) }

// Reject implements Controller.
func (c *AutoController) Reject(id uint64) error { return c.ack(id) }

// Flush implements Controller.
func (c *AutoController) Flush() []uint64 { return c.drain() }

// Cancel implements Controller.
func (c *AutoController) Cancel() []uint64 { return c.drain() }

// Outstanding implements Controller.
func (c *AutoController) Outstanding() []uint64 { return c.sorted() }

// IndividualController holds credit for each delivery until that
// message, or a range covering it, is acknowledged.
type IndividualController struct {
	tracker
	receiveMaximum int
}

// NewIndividualController returns an individually acknowledging controller.
func NewIndividualController(credit CreditManager, receiveMaximum int) *IndividualController {
	return &IndividualController{tracker: newTracker(credit), receiveMaximum: receiveMaximum}
}

// Mode implements Controller.
func (c *IndividualController) Mode() Mode { return ModeIndividual }

// CanSend implements Controller.
func (c *IndividualController) CanSend() bool {
	c.mu.Lock()
	full := c.receiveMaximum > 0 && len(c.outstanding) >= c.receiveMaximum
	c.mu.Unlock()
	return !full && c.credit.Available() > 0
}

// Sent implements Controller.
func (c *IndividualController) Sent(id uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receiveMaximum > 0 && len(c.outstanding) >= c.receiveMaximum {
		return false, ErrNoCredit
	}
	if _, dup := c.outstanding[id]; dup {
		return true, nil
	}
	if err := c.credit.Acquire(); err != nil {
		return false, err
	}
	c.outstanding[id] = struct{}{}
	return true, nil
}

// Ack implements Controller.
func (c *IndividualController) Ack(id uint64) error { return c.ack(id) }

// AckRange implements Controller.
func (c *IndividualController) AckRange(from, to uint64) []uint64 { return c.ackRange(from, to) }

// Reject implements Controller.
func (c *IndividualController) Reject(id uint64) error { return c.ack(id) }

// Flush implements Controller. Individual deliveries are never flushed.
func (c *IndividualController) Flush() []uint64 { return nil }

// Cancel implements Controller.
func (c *IndividualController) Cancel() []uint64 { return c.drain() }

// Outstanding implements Controller.
func (c *IndividualController) Outstanding() []uint64 { return c.sorted() }

var (
	_ Controller = (*AutoController)(nil)
	_ Controller = (*IndividualController)(nil)
)
