package eventlog

import (
	"maps"
	"time"

	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

// DefaultPriority is the priority of records that do not set one.
const DefaultPriority = 4

// Record is one message in the log. Records are immutable; the With
// methods return modified copies.
type Record struct {
	offset      int64
	id          uint64
	destination string
	payload     []byte
	properties  map[string]any
	priority    int
	timestamp   time.Time
}

// NewRecord creates a record with the given payload and properties.
// Both are copied.
func NewRecord(payload []byte, properties map[string]any) *Record {
	var payloadCopy []byte
	if payload != nil {
		payloadCopy = make([]byte, len(payload))
		copy(payloadCopy, payload)
	}
	props := make(map[string]any, len(properties))
	maps.Copy(props, properties)

	return &Record{
		payload:    payloadCopy,
		properties: props,
		priority:   DefaultPriority,
		timestamp:  time.Now().UTC(),
	}
}

func (r *Record) clone() *Record {
	c := *r
	c.properties = maps.Clone(r.properties)
	if c.properties == nil {
		c.properties = make(map[string]any)
	}
	return &c
}

// WithPosition returns a copy placed in the log.
// This is used internally by the EventLog when storing records.
func (r *Record) WithPosition(destination string, offset int64, id uint64) *Record {
	c := *r
	c.destination = destination
	c.offset = offset
	c.id = id
	return &c
}

// WithPriority returns a copy with the given priority.
func (r *Record) WithPriority(priority int) *Record {
	c := r.clone()
	c.priority = priority
	return c
}

// WithProperty returns a copy with one property set.
func (r *Record) WithProperty(name string, value any) *Record {
	c := r.clone()
	c.properties[name] = value
	return c
}

// Offset returns the position of this record within its destination.
func (r *Record) Offset() int64 {
	return r.offset
}

// ID returns the broker-wide message identifier.
func (r *Record) ID() uint64 {
	return r.id
}

// Destination returns the destination the record was appended to.
func (r *Record) Destination() string {
	return r.destination
}

// Payload returns the raw message body.
func (r *Record) Payload() []byte {
	// Return a copy to prevent mutation
	if r.payload == nil {
		return nil
	}
	result := make([]byte, len(r.payload))
	copy(result, r.payload)
	return result
}

// Properties returns a copy of the message properties.
func (r *Record) Properties() map[string]any {
	return maps.Clone(r.properties)
}

// Priority returns the delivery priority.
func (r *Record) Priority() int {
	return r.priority
}

// Timestamp returns when the record was created.
func (r *Record) Timestamp() time.Time {
	return r.timestamp
}

// Get implements selector.IdentifierResolver over the properties.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.properties[name]
	return v, ok
}

// Verify that Record is a payload resolver at compile time
var _ selector.PayloadResolver = (*Record)(nil)
