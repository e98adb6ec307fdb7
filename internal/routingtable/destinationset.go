package routingtable

import (
	"sort"
	"sync"

	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

// DestinationSet is the live set of destinations matching one subscription
// context. Each set has its own lock so updates to unrelated subscriptions
// never contend.
type DestinationSet struct {
	ctx routingtable.SubscriptionContext

	mu       sync.RWMutex
	matching map[string]routingtable.Destination
}

// NewDestinationSet creates a set for ctx seeded with the candidates that match it.
func NewDestinationSet(ctx routingtable.SubscriptionContext, candidates []routingtable.Destination) *DestinationSet {
	s := &DestinationSet{
		ctx:      ctx,
		matching: make(map[string]routingtable.Destination),
	}
	s.AddAll(candidates)
	return s
}

// Context implements routingtable.DestinationSet.
func (s *DestinationSet) Context() routingtable.SubscriptionContext {
	return s.ctx
}

// Interest implements routingtable.DestinationSet.
func (s *DestinationSet) Interest(name string) bool {
	return MatchesContext(s.ctx, name)
}

// Add implements routingtable.DestinationSet.
func (s *DestinationSet) Add(d routingtable.Destination) bool {
	if d == nil || !s.Interest(d.Name()) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matching[d.Name()] = d
	return true
}

// AddAll implements routingtable.DestinationSet.
func (s *DestinationSet) AddAll(ds []routingtable.Destination) bool {
	added := false
	for _, d := range ds {
		if s.Add(d) {
			added = true
		}
	}
	return added
}

// Remove implements routingtable.DestinationSet.
func (s *DestinationSet) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matching[name]; !ok {
		return false
	}
	delete(s.matching, name)
	return true
}

// RemoveAll implements routingtable.DestinationSet.
func (s *DestinationSet) RemoveAll(names []string) bool {
	removed := false
	for _, n := range names {
		if s.Remove(n) {
			removed = true
		}
	}
	return removed
}

// RemoveIf implements routingtable.DestinationSet.
func (s *DestinationSet) RemoveIf(pred func(routingtable.Destination) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for name, d := range s.matching {
		if pred(d) {
			delete(s.matching, name)
			n++
		}
	}
	return n
}

// Contains implements routingtable.DestinationSet.
func (s *DestinationSet) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.matching[name]
	return ok
}

// Get implements routingtable.DestinationSet.
func (s *DestinationSet) Get(name string) (routingtable.Destination, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.matching[name]
	return d, ok
}

// Size implements routingtable.DestinationSet.
func (s *DestinationSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matching)
}

// IsEmpty implements routingtable.DestinationSet.
func (s *DestinationSet) IsEmpty() bool {
	return s.Size() == 0
}

// Destinations implements routingtable.DestinationSet. The snapshot is
// sorted by name.
func (s *DestinationSet) Destinations() []routingtable.Destination {
	s.mu.RLock()
	out := make([]routingtable.Destination, 0, len(s.matching))
	for _, d := range s.matching {
		out = append(out, d)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Range implements routingtable.DestinationSet. It iterates a snapshot, so
// fn may modify the set.
func (s *DestinationSet) Range(fn func(routingtable.Destination) bool) {
	for _, d := range s.Destinations() {
		if !fn(d) {
			return
		}
	}
}

// Clear implements routingtable.DestinationSet.
func (s *DestinationSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.matching)
}

// Compile-time interface check
var _ routingtable.DestinationSet = (*DestinationSet)(nil)
