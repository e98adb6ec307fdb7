// Package state tracks which broker messages a subscription has yet to
// deliver (at rest) and which are delivered but unacknowledged (in flight).
//
// At-rest messages are handed out highest priority first and, within a
// priority, lowest id first. A rolled back message keeps its priority, so
// it is redelivered ahead of anything newer.
package state

import (
	"fmt"
	"slices"
	"sync"
)

// MaxPriority is the highest message priority. Priorities are clamped to
// the range 0..MaxPriority.
const MaxPriority = 9

// DefaultPriority is used for messages that carry no priority.
const DefaultPriority = 4

// Manager is the per-subscription message state.
type Manager interface {
	// Register adds a message at rest. It returns any ids evicted to make
	// room. Registering a held id is a no-op.
	Register(id uint64, priority int) (evicted []uint64)

	// Allocate moves a message from at rest to in flight.
	Allocate(id uint64) bool

	// Commit forgets an in-flight message.
	Commit(id uint64) bool

	// Rollback returns an in-flight message to rest.
	Rollback(id uint64) bool

	// RollbackInFlight returns every in-flight message to rest.
	RollbackInFlight() []uint64

	// Next returns the next at-rest id without allocating it.
	Next() (uint64, bool)

	// Has reports whether id is at rest or in flight.
	Has(id uint64) bool

	// Remove forgets id wherever it is held.
	Remove(id uint64) bool

	// Pending returns the at-rest count.
	Pending() int

	// InFlight returns the in-flight count.
	InFlight() int

	// Size returns Pending plus InFlight.
	Size() int

	// Clear forgets everything.
	Clear()
}

func clampPriority(p int) int {
	return min(max(p, 0), MaxPriority)
}

// MemoryStateManager holds message state in memory.
// It is safe for concurrent use.
type MemoryStateManager struct {
	mu       sync.Mutex
	name     string
	atRest   [MaxPriority + 1][]uint64 // each sorted ascending
	priority map[uint64]int            // at-rest id -> priority
	inFlight map[uint64]int            // in-flight id -> priority
}

// NewMemoryStateManager returns an empty state manager.
func NewMemoryStateManager(name string) *MemoryStateManager {
	return &MemoryStateManager{
		name:     name,
		priority: make(map[uint64]int),
		inFlight: make(map[uint64]int),
	}
}

// Name returns the name the manager was created with.
func (m *MemoryStateManager) Name() string { return m.name }

// Register implements Manager. MemoryStateManager never evicts.
func (m *MemoryStateManager) Register(id uint64, priority int) []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registerLocked(id, clampPriority(priority))
	return nil
}

func (m *MemoryStateManager) registerLocked(id uint64, priority int) bool {
	if _, ok := m.priority[id]; ok {
		return false
	}
	if _, ok := m.inFlight[id]; ok {
		return false
	}
	m.insertLocked(id, priority)
	return true
}

func (m *MemoryStateManager) insertLocked(id uint64, priority int) {
	q := m.atRest[priority]
	i, _ := slices.BinarySearch(q, id)
	m.atRest[priority] = slices.Insert(q, i, id)
	m.priority[id] = priority
}

func (m *MemoryStateManager) removeAtRestLocked(id uint64) (int, bool) {
	p, ok := m.priority[id]
	if !ok {
		return 0, false
	}
	q := m.atRest[p]
	if i, found := slices.BinarySearch(q, id); found {
		m.atRest[p] = slices.Delete(q, i, i+1)
	}
	delete(m.priority, id)
	return p, true
}

// Allocate implements Manager.
func (m *MemoryStateManager) Allocate(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.removeAtRestLocked(id)
	if !ok {
		return false
	}
	m.inFlight[id] = p
	return true
}

// Commit implements Manager.
func (m *MemoryStateManager) Commit(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inFlight[id]; !ok {
		return false
	}
	delete(m.inFlight, id)
	return true
}

// Rollback implements Manager.
func (m *MemoryStateManager) Rollback(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollbackLocked(id)
}

func (m *MemoryStateManager) rollbackLocked(id uint64) bool {
	p, ok := m.inFlight[id]
	if !ok {
		return false
	}
	delete(m.inFlight, id)
	m.insertLocked(id, p)
	return true
}

// RollbackInFlight implements Manager.
func (m *MemoryStateManager) RollbackInFlight() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint64, 0, len(m.inFlight))
	for id := range m.inFlight {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		m.rollbackLocked(id)
	}
	return ids
}

// Next implements Manager.
func (m *MemoryStateManager) Next() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := MaxPriority; p >= 0; p-- {
		if q := m.atRest[p]; len(q) > 0 {
			return q[0], true
		}
	}
	return 0, false
}

// oldestLocked returns the lowest at-rest id of any priority.
func (m *MemoryStateManager) oldestLocked() (uint64, bool) {
	var (
		oldest uint64
		found  bool
	)
	for _, q := range m.atRest {
		if len(q) > 0 && (!found || q[0] < oldest) {
			oldest, found = q[0], true
		}
	}
	return oldest, found
}

// Has implements Manager.
func (m *MemoryStateManager) Has(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, rest := m.priority[id]
	_, flight := m.inFlight[id]
	return rest || flight
}

// IsInFlight reports whether id is in flight.
func (m *MemoryStateManager) IsInFlight(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inFlight[id]
	return ok
}

// Remove implements Manager.
func (m *MemoryStateManager) Remove(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.removeAtRestLocked(id); ok {
		return true
	}
	if _, ok := m.inFlight[id]; ok {
		delete(m.inFlight, id)
		return true
	}
	return false
}

// Pending implements Manager.
func (m *MemoryStateManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.priority)
}

// InFlight implements Manager.
func (m *MemoryStateManager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inFlight)
}

// Size implements Manager.
func (m *MemoryStateManager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.priority) + len(m.inFlight)
}

// Clear implements Manager.
func (m *MemoryStateManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := range m.atRest {
		m.atRest[p] = nil
	}
	clear(m.priority)
	clear(m.inFlight)
}

func (m *MemoryStateManager) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("%s at rest: %d in flight: %d", m.name, len(m.priority), len(m.inFlight))
}

var _ Manager = (*MemoryStateManager)(nil)
