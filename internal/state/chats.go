package state

import (
	"cmp"
	"slices"
	"sync"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/model"
)

// ChatFlags are the in-progress markers of the private-chat views.
type ChatFlags struct {
	LoadingContacts bool
	LoadingChats    bool
	LoadingMessages bool
	Sending         bool
}

// ChatStore holds contacts, private chats and the open private timeline.
// There is at most one chat per counterpart id.
type ChatStore struct {
	mu       sync.RWMutex
	contacts []model.Contact
	chats    map[string]model.Chat
	online   map[string]bool
	openID   string
	timeline *Timeline
	flags    ChatFlags
	notifier
}

// NewChatStore creates an empty store.
func NewChatStore(b *bus.Bus) *ChatStore {
	return &ChatStore{
		chats:    make(map[string]model.Chat),
		online:   make(map[string]bool),
		timeline: &Timeline{},
		notifier: notifier{bus: b, name: ChatsName},
	}
}

// SetContacts replaces the contact list.
func (s *ChatStore) SetContacts(cs []model.Contact) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = slices.Clone(cs)
}

// Contacts returns the contacts with current presence applied.
func (s *ChatStore) Contacts() []model.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Contact, len(s.contacts))
	for i, c := range s.contacts {
		c.Online = s.online[c.ID]
		out[i] = c
	}
	return out
}

// Contact looks a user up among contacts and chat counterparts.
func (s *ChatStore) Contact(id string) (model.Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.contacts {
		if c.ID == id {
			c.Online = s.online[id]
			return c, true
		}
	}
	if ch, ok := s.chats[id]; ok {
		c := ch.Counterpart
		c.Online = s.online[id]
		return c, true
	}
	return model.Contact{}, false
}

// SetChats replaces the chat list. Duplicate counterparts collapse to the
// last entry.
func (s *ChatStore) SetChats(cs []model.Chat) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = make(map[string]model.Chat, len(cs))
	for _, c := range cs {
		s.chats[c.Counterpart.ID] = cloneChat(c)
	}
}

// Chats returns the chats, most recent activity first.
func (s *ChatStore) Chats() []model.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Chat, 0, len(s.chats))
	for id, c := range s.chats {
		c = cloneChat(c)
		c.Counterpart.Online = s.online[id]
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b model.Chat) int {
		if c := b.LastActivity().Compare(a.LastActivity()); c != 0 {
			return c
		}
		return cmp.Compare(a.Counterpart.ID, b.Counterpart.ID)
	})
	return out
}

// Chat returns the chat with the given counterpart.
func (s *ChatStore) Chat(counterpartID string) (model.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[counterpartID]
	if !ok {
		return model.Chat{}, false
	}
	c = cloneChat(c)
	c.Counterpart.Online = s.online[counterpartID]
	return c, true
}

// UpsertChat adds or replaces the chat for c.Counterpart. A newer last
// message already held is kept.
func (s *ChatStore) UpsertChat(c model.Chat) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	c = cloneChat(c)
	if cur, ok := s.chats[c.Counterpart.ID]; ok && cur.LastActivity().After(c.LastActivity()) {
		c.LastMessage = cur.LastMessage
	}
	s.chats[c.Counterpart.ID] = c
}

// EnsureChat creates an empty chat for counterpart if none exists.
func (s *ChatStore) EnsureChat(counterpart model.Contact) model.Chat {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[counterpart.ID]
	if !ok {
		c = model.Chat{Counterpart: counterpart}
		s.chats[counterpart.ID] = c
	}
	return cloneChat(c)
}

// NoteMessage updates the chat preview for counterpartID. unread increments
// the unread count. Unknown counterparts get a chat built from the contact
// list, or a bare id.
func (s *ChatStore) NoteMessage(counterpartID string, m model.Message, unread bool) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[counterpartID]
	if !ok {
		c.Counterpart = model.Contact{User: model.User{ID: counterpartID}}
		for _, ct := range s.contacts {
			if ct.ID == counterpartID {
				c.Counterpart = ct
				break
			}
		}
	}
	if c.LastMessage == nil || c.LastMessage.ID == m.ID || !m.CreatedAt.Before(c.LastMessage.CreatedAt) {
		lm := m.Clone()
		c.LastMessage = &lm
	}
	if unread {
		c.UnreadCount++
	}
	s.chats[counterpartID] = c
}

// MarkRead zeroes the unread count.
func (s *ChatStore) MarkRead(counterpartID string) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[counterpartID]; ok {
		c.UnreadCount = 0
		s.chats[counterpartID] = c
	}
}

// SetChatStarred sets the starred marker of a chat.
func (s *ChatStore) SetChatStarred(counterpartID string, starred bool) bool {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[counterpartID]
	if !ok {
		return false
	}
	c.Starred = starred
	s.chats[counterpartID] = c
	return true
}

// SetOnline replaces the set of online users.
func (s *ChatStore) SetOnline(ids []string) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = make(map[string]bool, len(ids))
	for _, id := range ids {
		s.online[id] = true
	}
}

// IsOnline reports a user's presence.
func (s *ChatStore) IsOnline(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online[id]
}

// Open makes counterpartID's timeline the open one.
func (s *ChatStore) Open(counterpartID string, msgs []model.Message) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openID = counterpartID
	s.timeline = NewTimeline(msgs)
}

// Close drops the open timeline.
func (s *ChatStore) Close() {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openID = ""
	s.timeline = &Timeline{}
}

// OpenID returns the counterpart of the open timeline or "".
func (s *ChatStore) OpenID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openID
}

// Timeline returns the open timeline's entries.
func (s *ChatStore) Timeline() []model.TimelineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline.Items()
}

// Messages returns the open timeline's messages.
func (s *ChatStore) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline.Messages()
}

// Message looks a message up in the open timeline.
func (s *ChatStore) Message(id string) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline.Message(id)
}

// Mutate runs fn on the open timeline if counterpartID is open. fn reports
// whether it changed anything.
func (s *ChatStore) Mutate(counterpartID string, fn func(*Timeline) bool) bool {
	s.mu.Lock()
	if counterpartID == "" || counterpartID != s.openID {
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
func (s *ChatStore) Flags() ChatFlags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags
}

// SetFlags mutates the flags.
func (s *ChatStore) SetFlags(fn func(*ChatFlags)) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.flags)
}

// Reset clears everything.
func (s *ChatStore) Reset() {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = nil
	s.chats = make(map[string]model.Chat)
	s.online = make(map[string]bool)
	s.openID = ""
	s.timeline = &Timeline{}
	s.flags = ChatFlags{}
}

func cloneChat(c model.Chat) model.Chat {
	if c.LastMessage != nil {
		m := c.LastMessage.Clone()
		c.LastMessage = &m
	}
	return c
}
