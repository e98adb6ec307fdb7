package state

import (
	"slices"
	"sync"
)

// ProxyStateManager gives one consumer a view onto a shared Manager.
//
// Every consumer of a shared group reads the same at-rest cursor, so no
// message is handed to two of them. The proxy remembers which in-flight
// messages it allocated; Commit, Rollback and RollbackInFlight only
// touch those, so a consumer leaving returns its own deliveries and
// nobody else's.
type ProxyStateManager struct {
	target Manager

	mu    sync.Mutex
	owned map[uint64]struct{}
}

// NewProxyStateManager returns a proxy over target.
func NewProxyStateManager(target Manager) *ProxyStateManager {
	return &ProxyStateManager{target: target, owned: make(map[uint64]struct{})}
}

// Target returns the shared manager.
func (p *ProxyStateManager) Target() Manager { return p.target }

// Register implements Manager.
func (p *ProxyStateManager) Register(id uint64, priority int) []uint64 {
	return p.target.Register(id, priority)
}

// Allocate implements Manager.
func (p *ProxyStateManager) Allocate(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.target.Allocate(id) {
		return false
	}
	p.owned[id] = struct{}{}
	return true
}

// Commit implements Manager.
func (p *ProxyStateManager) Commit(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.owned[id]; !ok {
		return false
	}
	delete(p.owned, id)
	return p.target.Commit(id)
}

// Rollback implements Manager.
func (p *ProxyStateManager) Rollback(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.owned[id]; !ok {
		return false
	}
	delete(p.owned, id)
	return p.target.Rollback(id)
}

// RollbackInFlight implements Manager.
func (p *ProxyStateManager) RollbackInFlight() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]uint64, 0, len(p.owned))
	for id := range p.owned {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		p.target.Rollback(id)
	}
	clear(p.owned)
	return ids
}

// Next implements Manager.
func (p *ProxyStateManager) Next() (uint64, bool) { return p.target.Next() }

// Has implements Manager.
func (p *ProxyStateManager) Has(id uint64) bool { return p.target.Has(id) }

// Owns reports whether id is in flight through this proxy.
func (p *ProxyStateManager) Owns(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.owned[id]
	return ok
}

// Remove implements Manager.
func (p *ProxyStateManager) Remove(id uint64) bool {
	p.mu.Lock()
	delete(p.owned, id)
	p.mu.Unlock()
	return p.target.Remove(id)
}

// Pending implements Manager.
func (p *ProxyStateManager) Pending() int { return p.target.Pending() }

// InFlight returns the in-flight count of this proxy only.
func (p *ProxyStateManager) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.owned)
}

// Size implements Manager.
func (p *ProxyStateManager) Size() int { return p.target.Pending() + p.InFlight() }

// Clear forgets the proxy's own deliveries. The shared manager is untouched.
func (p *ProxyStateManager) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.owned)
}

var _ Manager = (*ProxyStateManager)(nil)
