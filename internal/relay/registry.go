package relay

import (
	"sync"

	"github.com/chorus-relay/chorus/internal/filter"
)

// Registry tracks, per live session, the named filters that session has
// registered. Subscription ids are scoped to their session: two sessions may
// both register "sub1" without interference. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	subs map[*Session]map[string]*filter.Filter
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[*Session]map[string]*filter.Filter)}
}

// Register inserts or replaces the subscription id for s. Last write wins on
// id collision. Reports whether an existing subscription was replaced.
func (r *Registry) Register(s *Session, id string, f *filter.Filter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.subs[s]
	if !ok {
		m = make(map[string]*filter.Filter)
		r.subs[s] = m
	}
	_, replaced := m[id]
	m[id] = f
	return replaced
}

// Unregister removes the subscription id for s. Removing an absent id is a
// no-op; the return value reports whether anything was removed.
func (r *Registry) Unregister(s *Session, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.subs[s]
	if !ok {
		return false
	}
	if _, present := m[id]; !present {
		return false
	}
	delete(m, id)
	if len(m) == 0 {
		delete(r.subs, s)
	}
	return true
}

// DropSession removes every subscription owned by s and returns how many
// were removed. Called on session teardown.
func (r *Registry) DropSession(s *Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.subs[s])
	delete(r.subs, s)
	return n
}

// Each calls fn for every (session, id, filter) triple. fn runs under the
// registry's read lock and must not call back into the registry.
func (r *Registry) Each(fn func(s *Session, id string, f *filter.Filter)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for s, m := range r.subs {
		for id, f := range m {
			fn(s, id, f)
		}
	}
}

// Len returns the total number of registered subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.subs {
		n += len(m)
	}
	return n
}
