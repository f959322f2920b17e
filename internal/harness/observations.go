package harness

import (
	"sync"
	"time"

	"github.com/phrazzld/isocheck/internal/domain"
)

// ObservationLog is the append-only log shared by the workers of one run.
// Entries are numbered in append order across all workers.
type ObservationLog struct {
	mu      sync.Mutex
	entries []domain.Observation
	now     func() time.Time
}

// NewObservationLog returns an empty log stamped with the wall clock.
func NewObservationLog() *ObservationLog {
	return &ObservationLog{now: time.Now}
}

// Append assigns the next sequence number and timestamp to o and stores it.
// The stored copy is returned.
func (l *ObservationLog) Append(o domain.Observation) domain.Observation {
	l.mu.Lock()
	defer l.mu.Unlock()

	o.Seq = len(l.entries) + 1
	o.At = l.now()
	l.entries = append(l.entries, o)
	return o
}

// Snapshot returns a copy of the log in append order.
func (l *ObservationLog) Snapshot() []domain.Observation {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Observation, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries appended so far.
func (l *ObservationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
