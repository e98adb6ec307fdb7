// Package namespace provides the contracts for namespace forwarding policy.
//
// A namespace policy is an ordered list of records, each attaching a depth
// limit, an optional content selector and a forced-priority flag to a
// namespace path such as "/sensor/floor1". Policy lookup is by deepest
// exact-segment ancestor: with records at "/a" and "/a/b", the topic
// "/a/b/c" is governed by "/a/b" and "/a/z" by "/a". Wildcards play no part
// in namespace lookup.
//
// Example configuration (YAML):
//
//	namespaces:
//	  - namespace: /sensor
//	    depth: 2
//	  - namespace: /sensor/alarms
//	    filter: "severity >= 3"
//	    force_priority: true
package namespace
