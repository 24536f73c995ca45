// Package recorder persists per-cycle detection and guidance records,
// either to an in-memory ring or to a SQLite file.
package recorder

import (
	"sync"
	"time"

	"github.com/strigiform/skeeterhawk/internal/guidance"
)

// Entry is one persisted record from an interception cycle.
type Entry interface {
	Kind() string
}

// DetectionEntry records a single-target detection result.
type DetectionEntry struct {
	Cycle        uint64
	Timestamp    time.Time
	RangeCM      float64
	AzimuthRad   float64
	ElevationRad float64
	Confidence   float64
	TargetCount  int
}

func (DetectionEntry) Kind() string { return "detection" }

// GuidanceEntry records the commanded acceleration and motor outputs.
type GuidanceEntry struct {
	Cycle     uint64
	Timestamp time.Time
	AccelX    float64
	AccelY    float64
	AccelZ    float64
	Intercept bool
	Motors    [guidance.NumMotors]float64
}

func (GuidanceEntry) Kind() string { return "guidance" }

// CycleEntry records the outcome of a cycle that produced no detection,
// with Detail carrying the failure reason when there is one.
type CycleEntry struct {
	Cycle     uint64
	Timestamp time.Time
	Valid     bool
	Detail    string
}

func (CycleEntry) Kind() string { return "cycle" }

// Recorder accepts cycle entries. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(e Entry) error
	Close() error
}

const defaultRingCapacity = 1024

// Ring is a bounded in-memory recorder. When full, the oldest entries
// are discarded.
type Ring struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// NewRing returns a ring recorder holding at most capacity entries.
// A capacity of zero or less selects the default of 1024.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	return &Ring{capacity: capacity}
}

func (r *Ring) Record(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	if over := len(r.entries) - r.capacity; over > 0 {
		r.entries = append(r.entries[:0], r.entries[over:]...)
	}
	return nil
}

// Entries returns a snapshot of the retained entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Ring) Close() error { return nil }
