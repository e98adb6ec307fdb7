package routingtable

import (
	"fmt"
	"strings"
)

// QoS is the delivery guarantee requested by a subscriber.
type QoS int

const (
	// AtMostOnce deliveries are never acknowledged by the consumer
	AtMostOnce QoS = iota

	// AtLeastOnce deliveries are acknowledged individually
	AtLeastOnce

	// ExactlyOnce deliveries are acknowledged individually
	ExactlyOnce
)

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "at-most-once"
	case AtLeastOnce:
		return "at-least-once"
	case ExactlyOnce:
		return "exactly-once"
	default:
		return fmt.Sprintf("qos(%d)", int(q))
	}
}

// SharePrefix introduces a shared subscription filter: $share/<name>/<filter>.
const SharePrefix = "$share/"

// SubscriptionContext describes what a session subscribed to and how it
// wants messages delivered.
type SubscriptionContext struct {
	// Filter is the topic filter, without any $share prefix
	Filter string

	// ShareName is the shared group name, empty for a direct subscription
	ShareName string

	// Selector is the optional selector text
	Selector string

	// Browser subscriptions receive copies and never consume
	Browser bool

	// Durable subscriptions survive the session that created them
	Durable bool

	// QoS selects the acknowledgement mode
	QoS QoS

	// ReceiveMaximum caps the member's own unacknowledged deliveries; 0 means no member cap
	ReceiveMaximum int
}

// NewSubscriptionContext creates a context for a filter. A filter of the
// form $share/<name>/<filter> becomes a shared subscription to <filter>.
func NewSubscriptionContext(filter string) SubscriptionContext {
	if share, topic, ok := ParseSharedFilter(filter); ok {
		return SubscriptionContext{Filter: topic, ShareName: share}
	}
	return SubscriptionContext{Filter: filter}
}

// ParseSharedFilter splits $share/<name>/<filter>. It reports false when
// filter is not a well formed shared filter.
func ParseSharedFilter(filter string) (shareName, topic string, ok bool) {
	rest, found := strings.CutPrefix(filter, SharePrefix)
	if !found {
		return "", "", false
	}
	shareName, topic, found = strings.Cut(rest, "/")
	if !found || shareName == "" || topic == "" || strings.ContainsAny(shareName, "+#") {
		return "", "", false
	}
	return shareName, topic, true
}

// ContainsWildcard reports whether the filter uses + or #.
func (c SubscriptionContext) ContainsWildcard() bool {
	return strings.ContainsAny(c.Filter, "+#")
}

// IsShared reports whether the subscription joins a shared group.
// Browser subscriptions never do.
func (c SubscriptionContext) IsShared() bool {
	return c.ShareName != "" && !c.Browser
}

// HasSelector reports whether a selector was given.
func (c SubscriptionContext) HasSelector() bool {
	return strings.TrimSpace(c.Selector) != ""
}

// WithSelector returns a copy with the selector text set.
func (c SubscriptionContext) WithSelector(text string) SubscriptionContext {
	c.Selector = text
	return c
}

// WithQoS returns a copy with the QoS set.
func (c SubscriptionContext) WithQoS(q QoS) SubscriptionContext {
	c.QoS = q
	return c
}

// WithReceiveMaximum returns a copy with the member receive maximum set.
func (c SubscriptionContext) WithReceiveMaximum(n int) SubscriptionContext {
	c.ReceiveMaximum = n
	return c
}

// WithShareName returns a copy that joins the named shared group.
func (c SubscriptionContext) WithShareName(name string) SubscriptionContext {
	c.ShareName = name
	return c
}

// AsBrowser returns a copy marked as a browser subscription.
func (c SubscriptionContext) AsBrowser() SubscriptionContext {
	c.Browser = true
	return c
}

// AsDurable returns a copy marked as durable.
func (c SubscriptionContext) AsDurable() SubscriptionContext {
	c.Durable = true
	return c
}

func (c SubscriptionContext) String() string {
	var b strings.Builder
	if c.ShareName != "" {
		b.WriteString(SharePrefix)
		b.WriteString(c.ShareName)
		b.WriteString("/")
	}
	b.WriteString(c.Filter)
	if c.HasSelector() {
		b.WriteString(" [")
		b.WriteString(c.Selector)
		b.WriteString("]")
	}
	return b.String()
}
