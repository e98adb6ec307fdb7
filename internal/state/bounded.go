package state

// DefaultWindow is the at-rest limit of a BoundedStateManager.
const DefaultWindow = 65536

// BoundedStateManager is a MemoryStateManager that holds at most window
// messages at rest. Registering into a full window evicts the oldest
// at-rest message. In-flight messages do not count against the window.
type BoundedStateManager struct {
	*MemoryStateManager
	window int
}

// NewBoundedStateManager returns a bounded manager. A window below one
// uses DefaultWindow.
func NewBoundedStateManager(name string, window int) *BoundedStateManager {
	if window < 1 {
		window = DefaultWindow
	}
	return &BoundedStateManager{
		MemoryStateManager: NewMemoryStateManager(name),
		window:             window,
	}
}

// Window returns the at-rest limit.
func (b *BoundedStateManager) Window() int { return b.window }

// Register implements Manager.
func (b *BoundedStateManager) Register(id uint64, priority int) []uint64 {
	m := b.MemoryStateManager
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registerLocked(id, clampPriority(priority)) {
		return nil
	}
	var evicted []uint64
	for len(m.priority) > b.window {
		oldest, ok := m.oldestLocked()
		if !ok {
			break
		}
		m.removeAtRestLocked(oldest)
		evicted = append(evicted, oldest)
	}
	return evicted
}

var _ Manager = (*BoundedStateManager)(nil)
