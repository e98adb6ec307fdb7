// Package metrics provides the Prometheus collectors for the broker.
//
// Collectors are registered on a private registry owned by each Metrics
// value. Components receive a *Metrics explicitly; every method is safe to
// call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "meshbroker"

// Metrics holds all broker collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Publish and delivery
	Published         prometheus.Counter
	Delivered         *prometheus.CounterVec
	SelectorRejected  prometheus.Counter
	SelectorErrors    prometheus.Counter
	CreditExhausted   prometheus.Counter
	Redelivered       prometheus.Counter
	Evicted           prometheus.Counter
	PublishLatency    prometheus.Histogram
	Destinations      prometheus.Gauge
	Subscriptions     prometheus.Gauge
	SharedGroups      prometheus.Gauge
	SharedGroupJoins  prometheus.Counter
	SharedGroupLeaves prometheus.Counter

	// Namespace policy
	NamespaceReloads prometheus.Counter
	NamespaceDropped prometheus.Counter
	NamespaceEntries prometheus.Gauge

	// Bridging
	BridgeForwards *prometheus.CounterVec
	BridgeErrors   *prometheus.CounterVec
	BridgeSkipped  *prometheus.CounterVec
}

// New creates collectors on a fresh registry. An empty namespace uses DefaultNamespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,

		Published: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Messages accepted by Publish",
		}),
		Delivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Messages handed to consumers, by subscription kind",
		}, []string{"kind"}),
		SelectorRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selector_rejected_total",
			Help:      "Topic matches dropped because the selector did not select the message",
		}),
		SelectorErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selector_parse_errors_total",
			Help:      "Subscriptions or namespace entries rejected for malformed selectors",
		}),
		CreditExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_exhausted_total",
			Help:      "Delivery attempts that found no free credit",
		}),
		Redelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_redelivered_total",
			Help:      "Messages re-queued after reject or member leave",
		}),
		Evicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_evicted_total",
			Help:      "Messages evicted from a full at-rest window",
		}),
		PublishLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent routing one published message",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		Destinations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "destinations",
			Help:      "Known destinations",
		}),
		Subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions",
			Help:      "Installed subscriptions, direct and shared members",
		}),
		SharedGroups: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shared_groups",
			Help:      "Active shared subscription groups",
		}),
		SharedGroupJoins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shared_group_joins_total",
			Help:      "Members that joined a shared group",
		}),
		SharedGroupLeaves: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shared_group_leaves_total",
			Help:      "Members that left a shared group",
		}),
		NamespaceReloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "namespace_reloads_total",
			Help:      "Namespace policy tries built and swapped in",
		}),
		NamespaceDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "namespace_entries_dropped_total",
			Help:      "Namespace policy entries skipped during load",
		}),
		NamespaceEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "namespace_entries",
			Help:      "Entries in the active namespace policy trie",
		}),
		BridgeForwards: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_forwards_total",
			Help:      "Messages forwarded to a bridge sink",
		}, []string{"sink"}),
		BridgeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_errors_total",
			Help:      "Failed forwards per bridge sink",
		}, []string{"sink"}),
		BridgeSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_skipped_total",
			Help:      "Messages not forwarded, by reason",
		}, []string{"reason"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// MessagePublished records one accepted publish and its routing time.
func (m *Metrics) MessagePublished(seconds float64) {
	if m == nil {
		return
	}
	m.Published.Inc()
	m.PublishLatency.Observe(seconds)
}

// MessageDelivered records one delivery. kind is "direct", "shared" or "browser".
func (m *Metrics) MessageDelivered(kind string) {
	if m == nil {
		return
	}
	m.Delivered.WithLabelValues(kind).Inc()
}

// SelectorRejection records a topic match dropped by a selector.
func (m *Metrics) SelectorRejection() {
	if m == nil {
		return
	}
	m.SelectorRejected.Inc()
}

// SelectorParseError records a rejected selector.
func (m *Metrics) SelectorParseError() {
	if m == nil {
		return
	}
	m.SelectorErrors.Inc()
}

// NoCredit records a delivery attempt that found no credit.
func (m *Metrics) NoCredit() {
	if m == nil {
		return
	}
	m.CreditExhausted.Inc()
}

// Redelivery records re-queued messages.
func (m *Metrics) Redelivery(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Redelivered.Add(float64(n))
}

// Eviction records messages evicted from a full window.
func (m *Metrics) Eviction(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Evicted.Add(float64(n))
}

// DestinationCount sets the number of known destinations.
func (m *Metrics) DestinationCount(n int) {
	if m == nil {
		return
	}
	m.Destinations.Set(float64(n))
}

// SubscriptionDelta adjusts the subscription gauge.
func (m *Metrics) SubscriptionDelta(delta int) {
	if m == nil {
		return
	}
	m.Subscriptions.Add(float64(delta))
}

// GroupCreated records a new shared group.
func (m *Metrics) GroupCreated() {
	if m == nil {
		return
	}
	m.SharedGroups.Inc()
}

// GroupRemoved records a removed shared group.
func (m *Metrics) GroupRemoved() {
	if m == nil {
		return
	}
	m.SharedGroups.Dec()
}

// MemberJoined records a shared group join.
func (m *Metrics) MemberJoined() {
	if m == nil {
		return
	}
	m.SharedGroupJoins.Inc()
}

// MemberLeft records a shared group leave.
func (m *Metrics) MemberLeft() {
	if m == nil {
		return
	}
	m.SharedGroupLeaves.Inc()
}

// NamespaceReloaded records a trie swap with its entry and dropped counts.
func (m *Metrics) NamespaceReloaded(entries, dropped int) {
	if m == nil {
		return
	}
	m.NamespaceReloads.Inc()
	m.NamespaceEntries.Set(float64(entries))
	if dropped > 0 {
		m.NamespaceDropped.Add(float64(dropped))
	}
}

// BridgeForwarded records a successful forward to a sink.
func (m *Metrics) BridgeForwarded(sink string) {
	if m == nil {
		return
	}
	m.BridgeForwards.WithLabelValues(sink).Inc()
}

// BridgeFailed records a failed forward to a sink.
func (m *Metrics) BridgeFailed(sink string) {
	if m == nil {
		return
	}
	m.BridgeErrors.WithLabelValues(sink).Inc()
}

// BridgeSkip records a message the bridge did not forward.
// reason is one of the bridge skip reasons, such as "no_policy" or "depth".
func (m *Metrics) BridgeSkip(reason string) {
	if m == nil {
		return
	}
	m.BridgeSkipped.WithLabelValues(reason).Inc()
}
