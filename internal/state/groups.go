package state

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/model"
)

// GroupFlags are the in-progress markers of the group views.
type GroupFlags struct {
	LoadingGroups   bool
	LoadingMessages bool
	Sending         bool
	Creating        bool
	UpdatingGroup   bool
	AddingMembers   bool
}

// GroupStore holds the groups the user belongs to and the open group
// timeline.
type GroupStore struct {
	mu       sync.RWMutex
	groups   map[string]model.Group
	openID   string
	timeline *Timeline
	flags    GroupFlags
	notifier
}

// NewGroupStore creates an empty store.
func NewGroupStore(b *bus.Bus) *GroupStore {
	return &GroupStore{
		groups:   make(map[string]model.Group),
		timeline: &Timeline{},
		notifier: notifier{bus: b, name: GroupsName},
	}
}

// SetGroups replaces the group list.
func (s *GroupStore) SetGroups(gs []model.Group) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = make(map[string]model.Group, len(gs))
	for _, g := range gs {
		s.groups[g.ID] = g.Clone()
	}
}

// Groups returns the groups, most recent activity first.
func (s *GroupStore) Groups() []model.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g.Clone())
	}
	slices.SortFunc(out, func(a, b model.Group) int {
		if c := groupActivity(b).Compare(groupActivity(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Group returns the group with the given id.
func (s *GroupStore) Group(id string) (model.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return model.Group{}, false
	}
	return g.Clone(), true
}

// Upsert merges a server copy of a group. A copy with a lower revision than
// the one held is ignored. It reports whether the store changed.
func (s *GroupStore) Upsert(g model.Group) bool {
	s.mu.Lock()
	cur, ok := s.groups[g.ID]
	if ok && g.Revision() < cur.Revision() {
		s.mu.Unlock()
		return false
	}
	g = g.Clone()
	if ok && g.LastMessage == nil {
		g.LastMessage = cur.LastMessage
	}
	s.groups[g.ID] = g
	s.mu.Unlock()
	s.changed()
	return true
}

// Put stores g as is, bypassing the revision check. Optimistic commands use
// it to apply and revert local edits.
func (s *GroupStore) Put(g model.Group) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g.Clone()
}

// Update applies fn to the group with the given id.
func (s *GroupStore) Update(id string, fn func(*model.Group) bool) bool {
	s.mu.Lock()
	g, ok := s.groups[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	g = g.Clone()
	changed := fn(&g)
	if changed {
		s.groups[id] = g
	}
	s.mu.Unlock()
	if changed {
		s.changed()
	}
	return changed
}

// Remove drops a group, closing its timeline if open.
func (s *GroupStore) Remove(id string) bool {
	s.mu.Lock()
	_, ok := s.groups[id]
	delete(s.groups, id)
	if s.openID == id {
		s.openID = ""
		s.timeline = &Timeline{}
	}
	s.mu.Unlock()
	if ok {
		s.changed()
	}
	return ok
}

// AddMembers adds ids not already present.
func (s *GroupStore) AddMembers(groupID string, ids []string) bool {
	return s.Update(groupID, func(g *model.Group) bool { return addMembers(g, ids) })
}

// RemoveMember removes a member and any admin role they held.
func (s *GroupStore) RemoveMember(groupID, memberID string) bool {
	return s.Update(groupID, func(g *model.Group) bool { return removeMember(g, memberID) })
}

// Promote makes an existing member an admin.
func (s *GroupStore) Promote(groupID, memberID string) bool {
	return s.Update(groupID, func(g *model.Group) bool { return promote(g, memberID) })
}

// NoteMessage updates the group's last message.
func (s *GroupStore) NoteMessage(groupID string, m model.Message) bool {
	return s.Update(groupID, func(g *model.Group) bool {
		if g.LastMessage != nil && g.LastMessage.ID != m.ID && m.CreatedAt.Before(g.LastMessage.CreatedAt) {
			return false
		}
		lm := m.Clone()
		g.LastMessage = &lm
		return true
	})
}

// Open makes groupID's timeline the open one.
func (s *GroupStore) Open(groupID string, msgs []model.Message, events []model.GroupEvent) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openID = groupID
	s.timeline = NewTimeline(msgs)
	for _, ev := range events {
		s.timeline.UpsertEvent(ev)
	}
}

// Close drops the open timeline.
func (s *GroupStore) Close() {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openID = ""
	s.timeline = &Timeline{}
}

// OpenTimeline returns a copy of groupID's timeline if it is the open one.
func (s *GroupStore) OpenTimeline(groupID string) (*Timeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if groupID == "" || groupID != s.openID {
		return nil, false
	}
	return s.timeline.Snapshot(), true
}

// Reopen makes groupID the open group again with the entries of t.
func (s *GroupStore) Reopen(groupID string, t *Timeline) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openID = groupID
	s.timeline = &Timeline{}
	s.timeline.Restore(t)
}

// OpenID returns the open group id or "".
func (s *GroupStore) OpenID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openID
}

// Timeline returns the open timeline's entries.
func (s *GroupStore) Timeline() []model.TimelineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline.Items()
}

// Messages returns the open timeline's messages.
func (s *GroupStore) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline.Messages()
}

// Message looks a message up in the open timeline.
func (s *GroupStore) Message(id string) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline.Message(id)
}

// Mutate runs fn on the open timeline if groupID is open.
func (s *GroupStore) Mutate(groupID string, fn func(*Timeline) bool) bool {
	s.mu.Lock()
	if groupID == "" || groupID != s.openID {
		s.mu.Unlock()
		return false
	}
	ok := fn(s.timeline)
	s.mu.Unlock()
	if ok {
		s.changed()
	}
	return ok
}

// Flags returns the current flags.
func (s *GroupStore) Flags() GroupFlags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags
}

// SetFlags mutates the flags.
func (s *GroupStore) SetFlags(fn func(*GroupFlags)) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.flags)
}

// Reset clears everything.
func (s *GroupStore) Reset() {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = make(map[string]model.Group)
	s.openID = ""
	s.timeline = &Timeline{}
	s.flags = GroupFlags{}
}

func groupActivity(g model.Group) time.Time {
	if g.LastMessage != nil && g.LastMessage.CreatedAt.After(g.UpdatedAt) {
		return g.LastMessage.CreatedAt
	}
	return g.UpdatedAt
}

func addMembers(g *model.Group, ids []string) bool {
	changed := false
	for _, id := range ids {
		if id != "" && !slices.Contains(g.Members, id) {
			g.Members = append(g.Members, id)
			changed = true
		}
	}
	return changed
}

func removeMember(g *model.Group, id string) bool {
	n, a := len(g.Members), len(g.Admins)
	g.Members = slices.DeleteFunc(g.Members, func(m string) bool { return m == id })
	g.Admins = slices.DeleteFunc(g.Admins, func(m string) bool { return m == id })
	return n != len(g.Members) || a != len(g.Admins)
}

func promote(g *model.Group, id string) bool {
	if !slices.Contains(g.Members, id) || slices.Contains(g.Admins, id) {
		return false
	}
	g.Admins = append(g.Admins, id)
	return true
}
