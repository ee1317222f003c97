package state

import (
	"slices"
	"sync"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/model"
)

// PinStore holds pinned message ids per conversation and the ids whose pin
// toggle is outstanding.
type PinStore struct {
	mu      sync.RWMutex
	pinned  map[model.PeerRef][]string
	pinning map[string]bool
	notifier
}

// NewPinStore creates an empty store.
func NewPinStore(b *bus.Bus) *PinStore {
	return &PinStore{
		pinned:   make(map[model.PeerRef][]string),
		pinning:  make(map[string]bool),
		notifier: notifier{bus: b, name: PinsName},
	}
}

// SetPinned replaces the pinned ids of a conversation.
func (s *PinStore) SetPinned(ref model.PeerRef, ids []string) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned[ref] = slices.Clone(ids)
}

// Pinned returns the pinned ids of a conversation, most recently pinned last.
func (s *PinStore) Pinned(ref model.PeerRef) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.pinned[ref])
}

// IsPinned reports whether id is pinned in ref.
func (s *PinStore) IsPinned(ref model.PeerRef, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.pinned[ref], id)
}

// Mark pins or unpins id in ref.
func (s *PinStore) Mark(ref model.PeerRef, id string, pinned bool) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := slices.DeleteFunc(s.pinned[ref], func(x string) bool { return x == id })
	if pinned {
		ids = append(ids, id)
	}
	s.pinned[ref] = ids
}

// Begin claims the pin toggle of id. It returns false if one is already
// outstanding.
func (s *PinStore) Begin(id string) bool {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pinning[id] {
		return false
	}
	s.pinning[id] = true
	return true
}

// End releases the claim taken by Begin.
func (s *PinStore) End(id string) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pinning, id)
}

// Pinning reports whether a toggle of id is outstanding.
func (s *PinStore) Pinning(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pinning[id]
}

// Reset clears everything.
func (s *PinStore) Reset() {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned = make(map[model.PeerRef][]string)
	s.pinning = make(map[string]bool)
}
