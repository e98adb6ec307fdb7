package namespace

import (
	"fmt"

	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

// ForcedPriority is the priority stamped on messages forwarded under a
// record with ForcePriority set.
const ForcedPriority = 9

// PriorityProperty is the message property that carries the priority.
const PriorityProperty = "priority"

// Record is one entry of a namespace policy configuration.
type Record struct {
	// Namespace is the path the record governs. It is normalized to start
	// with "/" and not end with "/".
	Namespace string `mapstructure:"namespace" json:"namespace" yaml:"namespace"`

	// Depth is the maximum number of levels below Namespace a topic may
	// have and still be forwarded. Zero means unlimited.
	Depth int `mapstructure:"depth" json:"depth" yaml:"depth"`

	// Filter is optional selector text. Only messages it selects are forwarded.
	Filter string `mapstructure:"filter" json:"filter,omitempty" yaml:"filter,omitempty"`

	// ForcePriority stamps ForcedPriority on every forwarded message.
	ForcePriority bool `mapstructure:"force_priority" json:"force_priority,omitempty" yaml:"force_priority,omitempty"`
}

// String returns a compact description of the record
func (r Record) String() string {
	return fmt.Sprintf("Record{Namespace: %s, Depth: %d, Filter: %q, ForcePriority: %t}",
		r.Namespace, r.Depth, r.Filter, r.ForcePriority)
}

// Policy is the resolved policy governing one namespace.
type Policy interface {
	// Namespace returns the normalized namespace path
	Namespace() string

	// Depth returns the depth limit; zero means unlimited
	Depth() int

	// ForcePriority reports whether forwarded messages get ForcedPriority
	ForcePriority() bool

	// AllowsDepth reports whether topic is within the depth limit
	AllowsDepth(topic string) bool

	// Selects reports whether the policy's selector accepts a message.
	// A policy without a selector selects everything.
	Selects(resolver selector.IdentifierResolver) bool
}

// Lookup finds the policy governing a topic.
type Lookup interface {
	// FindMatch returns the policy of the deepest exact-segment ancestor
	// of topic, or false when no record governs it.
	FindMatch(topic string) (Policy, bool)

	// Len returns the number of records in the policy.
	Len() int
}
