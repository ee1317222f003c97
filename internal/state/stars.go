package state

import (
	"sync"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/model"
)

// StarStore holds starred messages across conversations and the ids whose
// star toggle is outstanding.
type StarStore struct {
	mu       sync.RWMutex
	starred  map[string]model.Message
	starring map[string]bool
	notifier
}

// NewStarStore creates an empty store.
func NewStarStore(b *bus.Bus) *StarStore {
	return &StarStore{
		starred:  make(map[string]model.Message),
		starring: make(map[string]bool),
		notifier: notifier{bus: b, name: StarsName},
	}
}

// SetStarred replaces the starred list.
func (s *StarStore) SetStarred(msgs []model.Message) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starred = make(map[string]model.Message, len(msgs))
	for _, m := range msgs {
		m.Starred = true
		s.starred[m.ID] = m.Clone()
	}
}

// Starred returns starred messages, newest first.
func (s *StarStore) Starred() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, 0, len(s.starred))
	for _, m := range s.starred {
		out = append(out, m.Clone())
	}
	sortNewestFirst(out)
	return out
}

// IsStarred reports whether id is starred.
func (s *StarStore) IsStarred(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.starred[id]
	return ok
}

// Mark adds or removes m from the starred set.
func (s *StarStore) Mark(m model.Message, starred bool) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	if starred {
		m.Starred = true
		s.starred[m.ID] = m.Clone()
	} else {
		delete(s.starred, m.ID)
	}
}

// Begin claims the star toggle of id. It returns false if one is already
// outstanding.
func (s *StarStore) Begin(id string) bool {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.starring[id] {
		return false
	}
	s.starring[id] = true
	return true
}

// End releases the claim taken by Begin.
func (s *StarStore) End(id string) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.starring, id)
}

// Starring reports whether a toggle of id is outstanding.
func (s *StarStore) Starring(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.starring[id]
}

// Reset clears everything.
func (s *StarStore) Reset() {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starred = make(map[string]model.Message)
	s.starring = make(map[string]bool)
}
