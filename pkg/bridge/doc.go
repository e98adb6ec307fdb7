// Package bridge provides interfaces for forwarding messages out of the
// broker under the namespace policy.
//
// This package defines the abstractions for the bridge component:
//   - Message: the wire form of a forwarded record
//   - Sink: one remote system messages are forwarded to
//   - Forwarder: decides per record whether it leaves the broker
//   - Publisher: what inbound forwards are republished into
//
// A record is forwarded when its destination falls under a namespace
// policy entry, its depth below that namespace is within the entry's
// limit, and the entry's selector (if any) selects it. Entries marked
// force priority forward the record at the highest priority.
//
// Records received from another broker carry OriginProperty and are
// never forwarded again.
package bridge
