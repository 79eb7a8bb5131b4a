// Package store holds accepted events in memory for subscription replay.
// The store is append-only from the protocol's point of view, deduplicated
// by event id, and bounded: at capacity the oldest event is overwritten so
// memory use stays fixed.
package store

import (
	"sync"

	"github.com/chorus-relay/chorus/internal/event"
	"github.com/chorus-relay/chorus/internal/filter"
)

// DefaultCapacity bounds the store when no capacity is configured.
const DefaultCapacity = 65536

// Store is a thread-safe circular buffer of accepted events with an id
// index for duplicate detection.
type Store struct {
	mu       sync.RWMutex
	data     []event.Event
	capacity int
	head     int // next write position
	full     bool
	ids      map[string]struct{}
}

// New creates a store holding at most capacity events. Non-positive
// capacities fall back to DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		data:     make([]event.Event, capacity),
		capacity: capacity,
		ids:      make(map[string]struct{}, capacity),
	}
}

// Add appends ev unless an event with the same id is already stored.
// Inserting a duplicate is a no-op, reported as false. At capacity the
// oldest event is evicted to make room.
func (s *Store) Add(ev event.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.ids[ev.ID]; dup {
		return false
	}
	if s.full {
		delete(s.ids, s.data[s.head].ID)
	}
	s.data[s.head] = ev
	s.ids[ev.ID] = struct{}{}
	s.head = (s.head + 1) % s.capacity
	if s.head == 0 {
		s.full = true
	}
	return true
}

// Contains reports whether an event with the given id is stored.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return s.capacity
	}
	return s.head
}

// Query returns the stored events matching f, selected most-recent-first
// when the filter's limit truncates the result, but returned in insertion
// order so replay preserves created_at/arrival order.
func (s *Store) Query(f *filter.Filter) []event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := s.head
	startIdx := 0
	if s.full {
		count = s.capacity
		startIdx = s.head
	}

	limit := count
	if f.Limit != nil {
		if *f.Limit <= 0 {
			return nil
		}
		if *f.Limit < limit {
			limit = *f.Limit
		}
	}

	// Walk newest to oldest so the limit keeps the most recent matches,
	// then reverse back into insertion order.
	var matched []event.Event
	for i := count - 1; i >= 0 && len(matched) < limit; i-- {
		idx := (startIdx + i) % s.capacity
		if f.Matches(&s.data[idx]) {
			matched = append(matched, s.data[idx])
		}
	}
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched
}
