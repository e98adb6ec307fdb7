// Package broker provides interfaces for the broker routing core.
//
// This package defines the abstractions sessions use to reach the core:
//   - Consumer: a session endpoint that receives deliveries
//   - Delivery: one message handed to a consumer
//   - Handle: a live subscription returned by Subscribe
//   - Broker: the facade that ties routing, selectors, shared groups and
//     namespace bridging together
//
// Publishing follows a fixed order:
//  1. The destination is created on first use and every matching
//     subscription learns about it
//  2. The record is appended to the destination log and assigned a
//     broker-wide message ID
//  3. The routing table selects the subscriptions whose filter matches
//     the destination and whose selector selects the message
//  4. Each selected subscription queues the message and hands out what
//     its credit allows
//  5. The namespace policy decides whether the message is bridged
//
// Example usage:
//
//	b, err := broker.New(broker.NewConfig("node-1"))
//	if err != nil {
//		return err
//	}
//	if err := b.Start(ctx); err != nil {
//		return err
//	}
//	defer b.Close()
//
//	sctx := routingtable.NewSubscriptionContext("$share/workers/orders/+").
//		WithSelector("amount > 100").
//		WithQoS(routingtable.AtLeastOnce)
//	h, err := b.Subscribe(ctx, consumer, sctx)
//	if err != nil {
//		return err
//	}
//
//	res, err := b.Publish(ctx, "orders/eu", eventlog.NewRecord(body, map[string]any{"amount": 250}))
//	if err != nil {
//		return err
//	}
//
//	// consumer.Deliver receives res.ID; acknowledge it to return the credit
//	err = b.Ack(ctx, h, res.ID)
package broker
