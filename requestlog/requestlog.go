// Package requestlog implements the proxy's bounded, append-only record
// of recent requests. It backs the observability surface the Control
// API exposes for browsing traffic history, including after the proxy
// has been stopped.
package requestlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the recommended bound from the spec: 10,000
// records, oldest-dropped. It is a constant rather than a configurable
// value because the spec treats it as an implementation choice, not an
// externally tunable knob.
const DefaultCapacity = 10_000

// Record is one immutable entry: a method/URI pair, whether it was
// blocked by the traffic filter, and when it was observed. ID is a
// correlation identifier added purely for log/event correlation; it
// plays no role in the blocking decision.
type Record struct {
	ID        uuid.UUID
	Method    string
	URI       string
	Blocked   bool
	Timestamp time.Time
}

// NewRecord stamps a new Record with a fresh correlation ID and the
// current time.
func NewRecord(method, uri string, blocked bool) Record {
	return Record{
		ID:        uuid.New(),
		Method:    method,
		URI:       uri,
		Blocked:   blocked,
		Timestamp: time.Now(),
	}
}

// Log is a bounded, append-only ring of Records. Readers take a
// snapshot; writers append. Oldest entries are dropped once the log
// reaches capacity. The Log is never cleared on Stopped — history
// persists across start/stop cycles within the process's lifetime.
type Log struct {
	mutex    sync.RWMutex
	records  []Record
	capacity int
}

// New constructs a Log bounded at capacity records. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		records:  make([]Record, 0, capacity),
		capacity: capacity,
	}
}

// Append adds record to the log, dropping the oldest entry first if the
// log is already at capacity.
func (log *Log) Append(record Record) {
	log.mutex.Lock()
	defer log.mutex.Unlock()

	if len(log.records) >= log.capacity {
		// Drop the oldest record. A slice shift is O(n), but appends
		// happen one at a time off the Coordinator's single consumer
		// goroutine, so this never contends with concurrent writers.
		copy(log.records, log.records[1:])
		log.records = log.records[:len(log.records)-1]
	}
	log.records = append(log.records, record)
}

// Snapshot returns a shallow copy of the current records, oldest first.
func (log *Log) Snapshot() []Record {
	log.mutex.RLock()
	defer log.mutex.RUnlock()

	result := make([]Record, len(log.records))
	copy(result, log.records)
	return result
}

// Len reports the current number of retained records.
func (log *Log) Len() int {
	log.mutex.RLock()
	defer log.mutex.RUnlock()
	return len(log.records)
}
