package engine

import (
	"sync"

	"github.com/XiaoConstantine/pathogen-go/pkg/core"
)

const defaultEliteCapacity = 10

// EliteStore holds the best-known (candidate, score) pairs observed so far,
// bounded in size and ordered by descending score. Ties keep insertion order,
// so an earlier discovery is never displaced by a later candidate with the
// same score. Offering text that is already stored is a no-op: the first-seen
// score is authoritative, which keeps measurement noise from flapping scores.
type EliteStore struct {
	mu       sync.RWMutex
	capacity int
	entries  []core.EliteEntry
	seen     map[string]struct{}
}

// NewEliteStore creates a store retaining at most capacity entries.
func NewEliteStore(capacity int) *EliteStore {
	if capacity <= 0 {
		capacity = defaultEliteCapacity
	}
	return &EliteStore{
		capacity: capacity,
		seen:     make(map[string]struct{}),
	}
}

// Offer inserts the candidate if the store is below capacity or the score
// strictly exceeds the current minimum retained score. It reports whether the
// candidate was retained.
func (s *EliteStore) Offer(candidate core.Candidate, score int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[candidate.Text]; dup {
		return false
	}

	if len(s.entries) >= s.capacity && score <= s.entries[len(s.entries)-1].Score {
		return false
	}

	// Insert before the first strictly lower score, keeping equal scores in
	// insertion order.
	idx := len(s.entries)
	for i, e := range s.entries {
		if e.Score < score {
			idx = i
			break
		}
	}

	entry := core.EliteEntry{Candidate: candidate, Score: score}
	s.entries = append(s.entries, core.EliteEntry{})
	copy(s.entries[idx+1:], s.entries[idx:])
	s.entries[idx] = entry
	s.seen[candidate.Text] = struct{}{}

	// Evict the current minimum when over capacity. The last entry is the
	// lowest score, and among equal scores the most recent insertion.
	if len(s.entries) > s.capacity {
		evicted := s.entries[len(s.entries)-1]
		s.entries = s.entries[:len(s.entries)-1]
		delete(s.seen, evicted.Candidate.Text)
	}

	return true
}

// TopK returns up to n entries in descending score order.
func (s *EliteStore) TopK(n int) []core.EliteEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]core.EliteEntry, n)
	copy(out, s.entries[:n])
	return out
}

// All returns every retained entry in descending score order.
func (s *EliteStore) All() []core.EliteEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.EliteEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of retained entries.
func (s *EliteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// TopScore returns the highest retained score, or zero when empty.
func (s *EliteStore) TopScore() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return 0
	}
	return s.entries[0].Score
}

// MinScore returns the lowest retained score, or zero when empty.
func (s *EliteStore) MinScore() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return 0
	}
	return s.entries[len(s.entries)-1].Score
}
