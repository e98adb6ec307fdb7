// Package eventlog provides interfaces for per-destination append-only message storage.
//
// This package defines the core abstractions for the meshbroker message log:
//   - Record: one published message with its payload, properties, priority,
//     per-destination offset and broker-wide message ID
//   - EventLog: append-only log operations (append, read, replay, delete, compact)
//
// A Record is also a selector resolver: selectors read its properties, and
// PARSER(...) reads its payload.
//
// The interfaces use Go idioms:
//   - context.Context for cancellation and timeouts
//   - Channels for async streaming (Replay method)
//   - io.Closer for resource cleanup
//   - Explicit error returns following Go conventions
//
// Example usage:
//
//	// Append a message
//	stored, err := log.Append(ctx, "sensor/room1/temp", eventlog.NewRecord(payload, props))
//	if err != nil {
//		return err
//	}
//
//	// Read records from offset 0, max 100 records
//	records, err := log.Read(ctx, "sensor/room1/temp", 0, 100)
//	if err != nil {
//		return err
//	}
//
//	// Replay records starting from offset 10
//	recordChan, errChan := log.Replay(ctx, "sensor/room1/temp", 10)
//	for {
//		select {
//		case record, ok := <-recordChan:
//			if !ok {
//				return // Channel closed, all records processed
//			}
//			process(record)
//		case err := <-errChan:
//			if err != nil {
//				return err
//			}
//		case <-ctx.Done():
//			return ctx.Err()
//		}
//	}
package eventlog
