package state

import (
	"slices"
	"sync"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/model"
)

// SelectionStore tracks the open conversation and the messages selected for
// bulk actions. Opening another conversation clears the selection.
type SelectionStore struct {
	mu       sync.RWMutex
	active   model.Peer
	selected []string
	bulk     bool
	notifier
}

// NewSelectionStore creates an empty store.
func NewSelectionStore(b *bus.Bus) *SelectionStore {
	return &SelectionStore{notifier: notifier{bus: b, name: SelectionName}}
}

// Open makes p the active conversation.
func (s *SelectionStore) Open(p model.Peer) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = p
	s.selected = nil
	s.bulk = false
}

// Close clears the active conversation.
func (s *SelectionStore) Close() {
	s.Open(nil)
}

// Active returns the active conversation.
func (s *SelectionStore) Active() (model.Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.active != nil
}

// ActiveRef returns the reference of the active conversation.
func (s *SelectionStore) ActiveRef() (model.PeerRef, bool) {
	p, ok := s.Active()
	if !ok {
		return model.PeerRef{}, false
	}
	return p.Ref(), true
}

// Toggle flips the selection of a message and enters bulk mode. It reports
// whether the message is selected afterwards.
func (s *SelectionStore) Toggle(id string) bool {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.selected, id); i >= 0 {
		s.selected = slices.Delete(s.selected, i, i+1)
		return false
	}
	s.selected = append(s.selected, id)
	s.bulk = true
	return true
}

// Selected returns the selected ids in selection order.
func (s *SelectionStore) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.selected)
}

// SetBulk enters or leaves bulk mode. Leaving clears the selection.
func (s *SelectionStore) SetBulk(on bool) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulk = on
	if !on {
		s.selected = nil
	}
}

// Bulk reports whether bulk mode is on.
func (s *SelectionStore) Bulk() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bulk
}

// Clear empties the selection and leaves bulk mode.
func (s *SelectionStore) Clear() {
	s.SetBulk(false)
}

// Selection is a copy of the store's contents, used to undo a navigation.
type Selection struct {
	Active   model.Peer
	Selected []string
	Bulk     bool
}

// Snapshot copies the active conversation and the selection.
func (s *SelectionStore) Snapshot() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Selection{Active: s.active, Selected: slices.Clone(s.selected), Bulk: s.bulk}
}

// Restore puts back a snapshot taken earlier.
func (s *SelectionStore) Restore(sel Selection) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = sel.Active
	s.selected = slices.Clone(sel.Selected)
	s.bulk = sel.Bulk
}
