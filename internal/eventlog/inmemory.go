package eventlog

import (
	"context"
	"errors"
	"sync"

	"github.com/rmacdonaldsmith/meshbroker/pkg/eventlog"
)

var (
	// ErrNegativeOffset is returned when a negative offset is provided
	ErrNegativeOffset = errors.New("offset cannot be negative")
	// ErrNegativeMaxCount is returned when a negative max count is provided
	ErrNegativeMaxCount = errors.New("max count cannot be negative")
	// ErrNilRecord is returned when a nil record is provided
	ErrNilRecord = errors.New("record cannot be nil")
	// ErrEmptyDestination is returned when appending without a destination
	ErrEmptyDestination = errors.New("destination cannot be empty")
	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("event log is closed")
)

// destinationLog is the retained tail of one destination.
type destinationLog struct {
	records     []*eventlog.Record
	firstOffset int64 // offset of records[0]
	nextOffset  int64
}

// Option configures an InMemoryEventLog.
type Option func(*InMemoryEventLog)

// WithRetention keeps at most n records per destination after Compact.
// Zero keeps everything.
func WithRetention(n int) Option {
	return func(log *InMemoryEventLog) {
		if n > 0 {
			log.retention = n
		}
	}
}

// InMemoryEventLog implements the eventlog.EventLog interface using in-memory
// destination-partitioned storage. Each destination has its own independent
// offset counter starting from 0; message IDs are assigned from one counter
// under the write lock, so they increase in append order across destinations.
// It is safe for concurrent use.
type InMemoryEventLog struct {
	mu            sync.RWMutex
	byDestination map[string]*destinationLog
	lastID        uint64
	retention     int
	closed        bool
}

// NewInMemoryEventLog creates a new in-memory destination-partitioned log.
func NewInMemoryEventLog(opts ...Option) *InMemoryEventLog {
	log := &InMemoryEventLog{
		byDestination: make(map[string]*destinationLog),
	}
	for _, opt := range opts {
		opt(log)
	}
	return log
}

// Append stores a record for a destination.
// The offset and message ID are assigned by the log and set on the returned record.
func (log *InMemoryEventLog) Append(ctx context.Context, destination string, record *eventlog.Record) (*eventlog.Record, error) {
	if record == nil {
		return nil, ErrNilRecord
	}
	if destination == "" {
		return nil, ErrEmptyDestination
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	if log.closed {
		return nil, ErrClosed
	}

	d := log.byDestination[destination]
	if d == nil {
		d = &destinationLog{}
		log.byDestination[destination] = d
	}

	log.lastID++
	stored := record.WithPosition(destination, d.nextOffset, log.lastID)
	d.records = append(d.records, stored)
	d.nextOffset++

	return stored, nil
}

// Read reads records of a destination starting at a given offset, up to a max count.
// Offsets that have been compacted away are skipped.
func (log *InMemoryEventLog) Read(ctx context.Context, destination string, startOffset int64, maxCount int) ([]*eventlog.Record, error) {
	if startOffset < 0 {
		return nil, ErrNegativeOffset
	}
	if maxCount < 0 {
		return nil, ErrNegativeMaxCount
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.mu.RLock()
	defer log.mu.RUnlock()
	if log.closed {
		return nil, ErrClosed
	}

	d := log.byDestination[destination]
	if d == nil || maxCount == 0 {
		return make([]*eventlog.Record, 0), nil
	}

	start := max(startOffset-d.firstOffset, 0)
	if start >= int64(len(d.records)) {
		return make([]*eventlog.Record, 0), nil
	}
	end := int64(len(d.records))
	if remaining := end - start; int64(maxCount) < remaining {
		end = start + int64(maxCount)
	}

	results := make([]*eventlog.Record, end-start)
	copy(results, d.records[start:end])
	return results, nil
}

// EndOffset gets the current end offset for a destination (next append position).
func (log *InMemoryEventLog) EndOffset(ctx context.Context, destination string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	log.mu.RLock()
	defer log.mu.RUnlock()
	if log.closed {
		return 0, ErrClosed
	}

	if d := log.byDestination[destination]; d != nil {
		return d.nextOffset, nil
	}
	return 0, nil
}

// Replay streams records of a destination starting at a given offset via a channel.
// The channel will be closed when all records are sent or context is cancelled.
func (log *InMemoryEventLog) Replay(ctx context.Context, destination string, startOffset int64) (<-chan *eventlog.Record, <-chan error) {
	recordChan := make(chan *eventlog.Record)
	errChan := make(chan error, 1) // Buffered to prevent blocking

	go func() {
		defer close(recordChan)
		defer close(errChan)

		// Copy the relevant records to avoid holding the lock while sending
		records, err := log.Read(ctx, destination, startOffset, int(^uint(0)>>1))
		if err != nil {
			errChan <- err
			return
		}

		for _, record := range records {
			select {
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			case recordChan <- record:
			}
		}
	}()

	return recordChan, errChan
}

// Delete removes a destination and its records. Deleting an unknown
// destination is not an error. A destination appended to again later
// starts over at offset 0.
func (log *InMemoryEventLog) Delete(ctx context.Context, destination string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	if log.closed {
		return ErrClosed
	}
	delete(log.byDestination, destination)
	return nil
}

// Compact drops the oldest records of every destination holding more
// than the retention limit. Offsets are not reused.
func (log *InMemoryEventLog) Compact(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	if log.closed {
		return ErrClosed
	}
	if log.retention == 0 {
		return nil
	}

	for _, d := range log.byDestination {
		if excess := len(d.records) - log.retention; excess > 0 {
			kept := make([]*eventlog.Record, log.retention)
			copy(kept, d.records[excess:])
			d.records = kept
			d.firstOffset += int64(excess)
		}
	}
	return nil
}

// GetStatistics returns overall statistics about the log.
func (log *InMemoryEventLog) GetStatistics(ctx context.Context) (eventlog.Statistics, error) {
	if err := ctx.Err(); err != nil {
		return eventlog.Statistics{}, err
	}

	log.mu.RLock()
	defer log.mu.RUnlock()
	if log.closed {
		return eventlog.Statistics{}, ErrClosed
	}

	stats := eventlog.Statistics{
		DestinationCounts: make(map[string]int64, len(log.byDestination)),
		DestinationCount:  len(log.byDestination),
		LastMessageID:     log.lastID,
	}
	for name, d := range log.byDestination {
		n := int64(len(d.records))
		stats.DestinationCounts[name] = n
		stats.TotalRecords += n
	}
	return stats, nil
}

// Close closes the log and clears all destinations and records.
func (log *InMemoryEventLog) Close() error {
	log.mu.Lock()
	defer log.mu.Unlock()

	if log.closed {
		return nil // Already closed, idempotent
	}

	log.byDestination = make(map[string]*destinationLog)
	log.closed = true

	return nil
}

// Verify that InMemoryEventLog implements the EventLog interface at compile time
var _ eventlog.EventLog = (*InMemoryEventLog)(nil)
