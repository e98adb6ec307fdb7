// Package namespace implements the namespace policy trie used to decide
// which published messages are forwarded across a bridge.
package namespace

import (
	"strings"

	"github.com/rmacdonaldsmith/meshbroker/pkg/namespace"
	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

// Filter is one compiled namespace policy record.
type Filter struct {
	namespace     string
	depth         int
	forcePriority bool
	selector      selector.Selector
	record        namespace.Record
}

// NewFilter compiles a record. The selector, if any, is compiled with
// compiler; a malformed selector returns the *selector.ParseError.
func NewFilter(record namespace.Record, compiler selector.Compiler) (*Filter, error) {
	f := &Filter{
		namespace:     Normalize(record.Namespace),
		depth:         record.Depth,
		forcePriority: record.ForcePriority,
		record:        record,
	}
	if strings.TrimSpace(record.Filter) != "" {
		if compiler == nil {
			return nil, ErrNoCompiler
		}
		sel, err := compiler.Compile(record.Filter)
		if err != nil {
			return nil, err
		}
		f.selector = sel
	}
	return f, nil
}

// Namespace returns the normalized namespace path.
func (f *Filter) Namespace() string { return f.namespace }

// Depth returns the depth limit; zero means unlimited.
func (f *Filter) Depth() int { return f.depth }

// ForcePriority reports whether forwarded messages get the forced priority.
func (f *Filter) ForcePriority() bool { return f.forcePriority }

// Selector returns the compiled selector, or nil.
func (f *Filter) Selector() selector.Selector { return f.selector }

// Record returns the record the filter was built from.
func (f *Filter) Record() namespace.Record { return f.record }

// AllowsDepth reports whether topic has no more than Depth levels below
// the namespace. Topics outside the namespace are never allowed.
func (f *Filter) AllowsDepth(topic string) bool {
	below, ok := levelsBelow(f.namespace, Normalize(topic))
	if !ok {
		return false
	}
	return f.depth <= 0 || below <= f.depth
}

// Selects reports whether the selector accepts a message. A filter
// without a selector selects everything.
func (f *Filter) Selects(resolver selector.IdentifierResolver) bool {
	if f.selector == nil {
		return true
	}
	return f.selector.Evaluate(resolver)
}

// Normalize returns path with a leading "/" and no trailing "/".
// The root is "/".
func Normalize(path string) string {
	path = strings.TrimRight(path, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// segments splits a normalized path. The root has no segments.
func segments(path string) []string {
	if path == "/" {
		return nil
	}
	return strings.Split(path[1:], "/")
}

func levelsBelow(ns, topic string) (int, bool) {
	nsSegs := segments(ns)
	topicSegs := segments(topic)
	if len(topicSegs) < len(nsSegs) {
		return 0, false
	}
	for i, s := range nsSegs {
		if topicSegs[i] != s {
			return 0, false
		}
	}
	return len(topicSegs) - len(nsSegs), true
}

var _ namespace.Policy = (*Filter)(nil)
