package state

import (
	"slices"

	"github.com/matheus3301/chatline/internal/model"
)

// Timeline is the ordered list of messages and group events of one
// conversation, keyed by entry id. It is not safe for concurrent use; the
// owning store serializes access.
type Timeline struct {
	items []model.TimelineItem
}

// NewTimeline builds a timeline from server messages.
func NewTimeline(msgs []model.Message) *Timeline {
	t := &Timeline{}
	for _, m := range msgs {
		t.Upsert(m)
	}
	return t
}

// Len returns the number of entries, hidden ones included.
func (t *Timeline) Len() int {
	return len(t.items)
}

// Items returns a deep copy of the entries in display order.
func (t *Timeline) Items() []model.TimelineItem {
	out := make([]model.TimelineItem, len(t.items))
	for i, it := range t.items {
		out[i] = cloneItem(it)
	}
	return out
}

// Messages returns copies of the message entries in display order.
func (t *Timeline) Messages() []model.Message {
	out := make([]model.Message, 0, len(t.items))
	for _, it := range t.items {
		if it.Message != nil {
			out = append(out, it.Message.Clone())
		}
	}
	return out
}

// Message returns the message with the given id.
func (t *Timeline) Message(id string) (model.Message, bool) {
	i := t.indexOf(id)
	if i < 0 || t.items[i].Message == nil {
		return model.Message{}, false
	}
	return t.items[i].Message.Clone(), true
}

// Append adds an optimistic local message at the end.
func (t *Timeline) Append(m model.Message) {
	m = m.Clone()
	t.items = append(t.items, model.TimelineItem{Message: &m})
}

// Upsert merges a server copy of a message. Copies older than the one held
// are ignored. A message deleted for everyone stays deleted, and hidden for me
// stays hidden. A copy carrying the client id of an entry replaces that
// entry. It reports whether the timeline changed.
func (t *Timeline) Upsert(m model.Message) bool {
	m = m.Clone()
	i := t.indexOf(m.ID)
	if i < 0 && m.ClientID != "" {
		i = t.clientIndex(m.ClientID)
	}
	if i < 0 {
		t.insert(model.TimelineItem{Message: &m})
		return true
	}
	cur := t.items[i].Message
	if cur == nil {
		return false
	}
	if !cur.Pending && m.Revision() < cur.Revision() {
		return false
	}
	if cur.DeletedForEveryone && !m.DeletedForEveryone {
		return false
	}
	m.Pending = false
	m.HiddenForMe = m.HiddenForMe || cur.HiddenForMe
	if m.DeletedForEveryone {
		m.Tombstone()
	}
	t.items[i] = model.TimelineItem{Message: &m}
	return true
}

// Confirm replaces the pending entry tempID with the server record. If the
// record already arrived through the socket, the pending entry is dropped so
// exactly one entry remains.
func (t *Timeline) Confirm(tempID string, m model.Message) bool {
	p := t.indexOf(tempID)
	if p >= 0 && t.indexOf(m.ID) >= 0 && m.ID != tempID {
		t.removeAt(p)
		t.Upsert(m)
		return true
	}
	if p < 0 {
		return t.Upsert(m)
	}
	m = m.Clone()
	m.Pending = false
	t.items[p] = model.TimelineItem{Message: &m}
	return true
}

// Update applies fn to the message with the given id.
func (t *Timeline) Update(id string, fn func(*model.Message)) bool {
	i := t.indexOf(id)
	if i < 0 || t.items[i].Message == nil {
		return false
	}
	m := t.items[i].Message.Clone()
	fn(&m)
	t.items[i] = model.TimelineItem{Message: &m}
	return true
}

// Hide marks a message hidden for the current user.
func (t *Timeline) Hide(id string) bool {
	return t.Update(id, func(m *model.Message) { m.HiddenForMe = true })
}

// Tombstone marks a message deleted for everyone.
func (t *Timeline) Tombstone(id string) bool {
	return t.Update(id, func(m *model.Message) { m.Tombstone() })
}

// Remove drops the entry with the given id.
func (t *Timeline) Remove(id string) bool {
	i := t.indexOf(id)
	if i < 0 {
		return false
	}
	t.removeAt(i)
	return true
}

// UpsertEvent adds a server-authored group event once.
func (t *Timeline) UpsertEvent(ev model.GroupEvent) bool {
	if t.indexOf(ev.ID) >= 0 {
		return false
	}
	ev.TargetIDs = slices.Clone(ev.TargetIDs)
	t.insert(model.TimelineItem{Event: &ev})
	return true
}

// Snapshot returns an independent copy.
func (t *Timeline) Snapshot() *Timeline {
	return &Timeline{items: t.Items()}
}

// Restore replaces the entries with those of s.
func (t *Timeline) Restore(s *Timeline) {
	if s == nil {
		t.items = nil
		return
	}
	t.items = s.Items()
}

func (t *Timeline) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(t.items, func(it model.TimelineItem) bool { return it.ID() == id })
}

func (t *Timeline) clientIndex(clientID string) int {
	return slices.IndexFunc(t.items, func(it model.TimelineItem) bool {
		return it.Message != nil && it.Message.ClientID == clientID
	})
}

// insert keeps entries ordered by creation time, placing ties after
// existing entries.
func (t *Timeline) insert(it model.TimelineItem) {
	at := it.At()
	i := len(t.items)
	for i > 0 && t.items[i-1].At().After(at) {
		i--
	}
	t.items = slices.Insert(t.items, i, it)
}

func (t *Timeline) removeAt(i int) {
	t.items = slices.Delete(t.items, i, i+1)
}

func cloneItem(it model.TimelineItem) model.TimelineItem {
	if it.Message != nil {
		m := it.Message.Clone()
		it.Message = &m
	}
	if it.Event != nil {
		ev := *it.Event
		ev.TargetIDs = slices.Clone(ev.TargetIDs)
		it.Event = &ev
	}
	return it
}
