// Package flowcontrol implements credit-based flow control: a credit pool
// bounding the number of unacknowledged deliveries, and acknowledgement
// controllers that take and return credit on behalf of one consumer.
package flowcontrol

import (
	"errors"
	"sync"
)

// DefaultCapacity is the credit capacity of a shared group.
const DefaultCapacity = 1024

var (
	// ErrNoCredit is returned when no credit is available. It is a signal,
	// not a failure: the caller retries after Ready fires or after an ack.
	ErrNoCredit = errors.New("no credit available")

	// ErrUnknownMessage is returned when acknowledging a message that is not outstanding
	ErrUnknownMessage = errors.New("message is not outstanding")

	// ErrInvalidCapacity is returned for a capacity below one
	ErrInvalidCapacity = errors.New("capacity must be positive")
)

// CreditManager bounds the number of outstanding deliveries.
type CreditManager interface {
	// Acquire takes one credit, or returns ErrNoCredit without blocking.
	Acquire() error

	// Release returns n credits.
	Release(n int)

	// Available returns the free credit.
	Available() int

	// Outstanding returns the credit in use.
	Outstanding() int

	// Capacity returns the maximum outstanding credit.
	Capacity() int

	// Ready returns a channel closed the next time credit is released.
	Ready() <-chan struct{}
}

// FixedCreditManager is a CreditManager with a fixed capacity.
// It is safe for concurrent use.
type FixedCreditManager struct {
	mu       sync.Mutex
	capacity int
	used     int
	ready    chan struct{}
}

// NewFixedCreditManager returns a credit pool of the given capacity.
// A capacity below one uses DefaultCapacity.
func NewFixedCreditManager(capacity int) *FixedCreditManager {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &FixedCreditManager{capacity: capacity}
}

// Acquire implements CreditManager.
func (c *FixedCreditManager) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.used >= c.capacity {
		return ErrNoCredit
	}
	c.used++
	return nil
}

// Release implements CreditManager. Releasing more than is outstanding
// leaves the pool full.
func (c *FixedCreditManager) Release(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.used -= n
	if c.used < 0 {
		c.used = 0
	}
	if c.ready != nil {
		close(c.ready)
		c.ready = nil
	}
}

// Available implements CreditManager.
func (c *FixedCreditManager) Available() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity - c.used
}

// Outstanding implements CreditManager.
func (c *FixedCreditManager) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Capacity implements CreditManager.
func (c *FixedCreditManager) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Ready implements CreditManager. If credit is available the returned
// channel is already closed.
func (c *FixedCreditManager) Ready() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.used < c.capacity {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	if c.ready == nil {
		c.ready = make(chan struct{})
	}
	return c.ready
}

var _ CreditManager = (*FixedCreditManager)(nil)
