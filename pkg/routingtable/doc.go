// Package routingtable provides interfaces for filter-to-subscriber routing.
//
// This package defines the core abstractions for the meshbroker routing table:
//   - Subscriber: entities that receive messages (direct subscriptions and shared groups)
//   - SubscriptionContext: the filter and delivery options a session asked for
//   - Subscription: an installed filter, its subscriber and its compiled selector
//   - Destination / DestinationSet: the live set of destinations matching a filter
//   - RoutingTable: filter-to-subscriber mappings plus destination lifecycle fan-out
//
// The interfaces use Go idioms:
//   - context.Context for cancellation and timeouts
//   - Explicit error returns following Go conventions
//   - io.Closer for resource cleanup
//   - Slice returns for multiple results
//
// Example usage:
//
//	// Subscribe a direct handle to a filter
//	sub := routingtable.NewSubscription(
//		routingtable.NewSubscriptionContext("sensor/+/temp"),
//		routingtable.NewDirectSubscriber("handle-123"),
//	)
//	if err := table.Subscribe(ctx, sub); err != nil {
//		return err
//	}
//
//	// Find all subscriptions that want a message published to a destination
//	matches, err := table.Route(ctx, "sensor/room1/temp", record)
//	if err != nil {
//		return err
//	}
//
// Filter syntax:
//   - Levels are separated by "/"
//   - "+" matches exactly one level: "sensor/+/temp" matches "sensor/room1/temp"
//   - "#" matches all remaining levels: "sensor/#" matches "sensor/room1/temp"
//   - Names starting with "$" only match filters that also start with "$"
//   - "$share/<name>/<filter>" subscribes to <filter> as a member of shared group <name>
package routingtable
