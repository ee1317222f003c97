// Package state holds the view-state containers: client-side copies of
// server entities plus UI flags. Each container owns its data behind a mutex,
// hands out copies, and announces every mutation on the bus under
// "state.<name>".
package state

import (
	"cmp"
	"slices"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/model"
)

// Container names, appended to bus.TopicStatePrefix.
const (
	AuthName      = "auth"
	ChatsName     = "chats"
	GroupsName    = "groups"
	SelectionName = "selection"
	StarsName     = "stars"
	PinsName      = "pins"
	ToastsName    = "toasts"
)

// Change is the payload published after a container mutates.
type Change struct {
	Container string
}

type notifier struct {
	bus  *bus.Bus
	name string
}

func (n notifier) changed() {
	n.bus.Emit(bus.TopicStatePrefix+n.name, Change{Container: n.name})
}

// Stores groups the containers owned by one client.
type Stores struct {
	Auth      *AuthStore
	Chats     *ChatStore
	Groups    *GroupStore
	Selection *SelectionStore
	Stars     *StarStore
	Pins      *PinStore
	Toasts    *ToastStore
}

// Reset clears everything tied to the signed-in user. Toasts survive so a
// logout message stays visible.
func (s *Stores) Reset() {
	s.Auth.ClearUser()
	s.Chats.Reset()
	s.Groups.Reset()
	s.Selection.Close()
	s.Stars.Reset()
	s.Pins.Reset()
}

func sortNewestFirst(msgs []model.Message) {
	slices.SortFunc(msgs, func(a, b model.Message) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
