package eventlog

import (
	"context"
	"io"
)

// EventLog defines the interface for destination-scoped append-only message storage.
// Each destination has its own independent offset sequence starting from 0.
// Message IDs are unique across all destinations and increase in append order.
type EventLog interface {
	io.Closer

	// Append stores a record for a destination.
	// The offset and message ID are assigned by the log and set on the returned record.
	Append(ctx context.Context, destination string, record *Record) (*Record, error)

	// Read reads records of a destination starting at a given offset, up to a max count.
	Read(ctx context.Context, destination string, startOffset int64, maxCount int) ([]*Record, error)

	// EndOffset gets the current end offset for a destination (next append position).
	EndOffset(ctx context.Context, destination string) (int64, error)

	// Replay streams records of a destination starting at a given offset via a channel.
	// The channel will be closed when all records are sent or context is cancelled.
	Replay(ctx context.Context, destination string, startOffset int64) (<-chan *Record, <-chan error)

	// Delete removes a destination and its records.
	Delete(ctx context.Context, destination string) error

	// Compact drops records beyond the retention limit.
	Compact(ctx context.Context) error

	// GetStatistics returns overall statistics about the log.
	GetStatistics(ctx context.Context) (Statistics, error)
}

// Statistics provides aggregate statistics about the log
type Statistics struct {
	TotalRecords      int64            // Records currently held across all destinations
	DestinationCounts map[string]int64 // Records currently held per destination
	DestinationCount  int              // Number of distinct destinations
	LastMessageID     uint64           // Highest message ID assigned so far
}
