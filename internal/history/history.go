// Package history keeps the bounded, chronological list of change records
// and derives aggregate typing statistics from it.
package history

import (
	"sync"
	"time"

	"github.com/fakeyudi/typetrace/internal/change"
)

// DefaultCapacity is the number of records kept when no capacity is given.
const DefaultCapacity = 50

// History is an ordered, capacity-bounded sequence of change records.
// Oldest records are evicted first once the capacity is exceeded.
// It is safe for concurrent use.
type History struct {
	mu       sync.RWMutex
	capacity int
	records  []change.Record
}

// New returns an empty History holding at most capacity records.
// A non-positive capacity selects DefaultCapacity.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity}
}

// Append adds rec at the tail and evicts from the head down to capacity.
func (h *History) Append(rec change.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, rec)
	if over := len(h.records) - h.capacity; over > 0 {
		// Copy into a fresh slice so the evicted records can be collected.
		kept := make([]change.Record, h.capacity, h.capacity+1)
		copy(kept, h.records[over:])
		h.records = kept
	}
}

// All returns a copy of every record, oldest first.
func (h *History) All() []change.Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]change.Record, len(h.records))
	copy(out, h.records)
	return out
}

// Last returns a copy of the n most recent records, oldest first.
// A non-positive n yields an empty slice.
func (h *History) Last(n int) []change.Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 {
		return []change.Record{}
	}
	n = min(n, len(h.records))
	out := make([]change.Record, n)
	copy(out, h.records[len(h.records)-n:])
	return out
}

// Len returns the number of records held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Clear removes every record.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
}

// CPSSample is the rate of one recorded change.
type CPSSample struct {
	Timestamp  time.Time   `json:"timestamp"`
	CPS        float64     `json:"cps"`
	ChangeType change.Type `json:"changeType"`
}

// CPSHistory returns the rates of the n most recent records, oldest first.
func (h *History) CPSHistory(n int) []CPSSample {
	recent := h.Last(n)
	out := make([]CPSSample, len(recent))
	for i, r := range recent {
		out[i] = CPSSample{Timestamp: r.Timestamp, CPS: r.CPS, ChangeType: r.ChangeType}
	}
	return out
}
