package namespace

import (
	"sort"

	"github.com/rmacdonaldsmith/meshbroker/pkg/namespace"
)

type trieNode struct {
	children map[string]*trieNode
	filter   *Filter
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[string]*trieNode)}
}

// Filters is a trie of namespace filters keyed by exact path segment.
//
// A Filters value is built with Add and then only read. Readers never
// lock, so it must not be modified once published to other goroutines;
// reloads build a new Filters and swap it in through a Store.
type Filters struct {
	root *trieNode
	size int
}

// NewFilters returns an empty trie.
func NewFilters() *Filters {
	return &Filters{root: newTrieNode()}
}

// Add attaches f to the node for its namespace, replacing any filter
// already there. It reports whether a filter was replaced.
func (t *Filters) Add(f *Filter) bool {
	n := t.root
	for _, seg := range segments(f.namespace) {
		child, ok := n.children[seg]
		if !ok {
			child = newTrieNode()
			n.children[seg] = child
		}
		n = child
	}
	replaced := n.filter != nil
	if !replaced {
		t.size++
	}
	n.filter = f
	return replaced
}

// Match returns the filter of the deepest exact-segment ancestor of
// topic, including topic itself and the root.
func (t *Filters) Match(topic string) (*Filter, bool) {
	if t == nil {
		return nil, false
	}
	n := t.root
	best := n.filter
	for _, seg := range segments(Normalize(topic)) {
		child, ok := n.children[seg]
		if !ok {
			break
		}
		n = child
		if n.filter != nil {
			best = n.filter
		}
	}
	return best, best != nil
}

// FindMatch implements namespace.Lookup.
func (t *Filters) FindMatch(topic string) (namespace.Policy, bool) {
	f, ok := t.Match(topic)
	if !ok {
		return nil, false
	}
	return f, true
}

// Len returns the number of filters in the trie.
func (t *Filters) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

// Namespaces returns the namespaces in the trie in sorted order.
func (t *Filters) Namespaces() []string {
	if t == nil {
		return nil
	}
	var out []string
	var walk func(n *trieNode)
	walk = func(n *trieNode) {
		if n.filter != nil {
			out = append(out, n.filter.namespace)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t.root)
	sort.Strings(out)
	return out
}

var _ namespace.Lookup = (*Filters)(nil)
