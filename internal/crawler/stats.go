package crawler

import "sync"

// StatsSnapshot is a point-in-time copy of run counters.
type StatsSnapshot struct {
	Processed int64 `json:"processed"`
	New       int64 `json:"new"`
	Updated   int64 `json:"updated"`
	Skipped   int64 `json:"skipped"`
	Errors    int64 `json:"errors"`
}

// Add returns the element-wise sum of two snapshots.
func (s StatsSnapshot) Add(other StatsSnapshot) StatsSnapshot {
	return StatsSnapshot{
		Processed: s.Processed + other.Processed,
		New:       s.New + other.New,
		Updated:   s.Updated + other.Updated,
		Skipped:   s.Skipped + other.Skipped,
		Errors:    s.Errors + other.Errors,
	}
}

// Stats holds the counters for one crawl run. All access goes through mu.
type Stats struct {
	mu   sync.Mutex
	snap StatsSnapshot
}

// NewStats returns zeroed counters.
func NewStats() *Stats {
	return &Stats{}
}

// Record counts one non-discarded attempt: processed is always incremented
// together with the counter matching the outcome.
func (s *Stats) Record(outcome Outcome) StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Processed++
	switch outcome {
	case OutcomeNew:
		s.snap.New++
	case OutcomeUpdated:
		s.snap.Updated++
	case OutcomeSkipped:
		s.snap.Skipped++
	default:
		s.snap.Errors++
	}
	return s.snap
}

// AddError counts a failure that never reached the store (e.g. a failed fetch).
func (s *Stats) AddError() {
	s.mu.Lock()
	s.snap.Errors++
	s.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// AddProcessed counts an attempt whose outcome is tracked elsewhere.
func (s *Stats) AddProcessed() {
	s.mu.Lock()
	s.snap.Processed++
	s.mu.Unlock()
}
