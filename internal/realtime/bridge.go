package realtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/inflight"
	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/state"
)

// Bridge applies server events to the view-state containers. Every merge is
// keyed by entity id, so an event and the HTTP response for the same change
// may arrive in either order. Group events are only ever taken from the
// server; membership changes never produce one locally.
type Bridge struct {
	stores *state.Stores
	guard  *inflight.Guard
	bus    *bus.Bus
	logger *zap.Logger
}

// NewBridge creates a bridge over stores.
func NewBridge(stores *state.Stores, guard *inflight.Guard, b *bus.Bus, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{stores: stores, guard: guard, bus: b, logger: logger}
}

// Run applies events until ctx ends or events is closed.
func (b *Bridge) Run(ctx context.Context, events <-chan model.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			b.Apply(ev)
		}
	}
}

// Apply merges one event and reports whether any container changed.
func (b *Bridge) Apply(ev model.Event) bool {
	var changed bool
	switch e := ev.(type) {
	case model.MemberAdded:
		changed = b.memberAdded(e)
	case model.MemberRemoved:
		changed = b.memberRemoved(e)
	case model.MemberPromoted:
		changed = b.memberPromoted(e)
	case model.GroupUpdated:
		changed = b.groupUpdated(e)
	case model.MessageNew:
		changed = b.messageNew(e.Message)
	case model.MessageUpdated:
		changed = b.messageUpdated(e.Message)
	case model.MessageDeleted:
		changed = b.messageDeleted(e)
	case model.GroupEventNew:
		changed = b.stores.Groups.Mutate(e.Event.GroupID, func(tl *state.Timeline) bool {
			return tl.UpsertEvent(e.Event)
		})
	case model.PresenceChanged:
		b.stores.Chats.SetOnline(e.OnlineUserIDs)
		changed = true
	default:
		b.logger.Warn("unhandled event type", zap.String("event", ev.EventName()))
	}
	b.bus.Emit(bus.TopicRealtime, ev)
	return changed
}

// openGroup reports whether groupID is the group on screen. Membership and
// metadata events for other groups are ignored.
func (b *Bridge) openGroup(groupID string) bool {
	return groupID != "" && b.stores.Groups.OpenID() == groupID
}

func (b *Bridge) memberAdded(e model.MemberAdded) bool {
	if !b.openGroup(e.GroupID) {
		return false
	}
	if e.Group != nil && e.Group.ID == e.GroupID {
		return b.stores.Groups.Upsert(*e.Group)
	}
	return b.stores.Groups.AddMembers(e.GroupID, e.MemberIDs)
}

func (b *Bridge) memberRemoved(e model.MemberRemoved) bool {
	if !b.openGroup(e.GroupID) {
		return false
	}
	if b.guard.Busy(inflight.MemberKey(inflight.OpRemoveMember, e.GroupID, e.MemberID)) {
		b.logger.Debug("skipping echo of outstanding removal",
			zap.String("group", e.GroupID), zap.String("member", e.MemberID))
		return false
	}
	if e.MemberID != "" && e.MemberID == b.stores.Auth.UserID() {
		g, _ := b.stores.Groups.Group(e.GroupID)
		b.stores.Groups.Remove(e.GroupID)
		if ref, ok := b.stores.Selection.ActiveRef(); ok && ref.ID == e.GroupID {
			b.stores.Selection.Close()
		}
		b.stores.Toasts.Info("You were removed from " + groupName(g))
		return true
	}
	return b.stores.Groups.RemoveMember(e.GroupID, e.MemberID)
}

func (b *Bridge) memberPromoted(e model.MemberPromoted) bool {
	if !b.openGroup(e.GroupID) {
		return false
	}
	if b.guard.Busy(inflight.MemberKey(inflight.OpPromoteAdmin, e.GroupID, e.MemberID)) {
		return false
	}
	return b.stores.Groups.Promote(e.GroupID, e.MemberID)
}

func (b *Bridge) groupUpdated(e model.GroupUpdated) bool {
	if !b.openGroup(e.Group.ID) {
		return false
	}
	return b.stores.Groups.Upsert(e.Group)
}

func (b *Bridge) messageNew(m model.Message) bool {
	me := b.stores.Auth.UserID()
	conv := m.Conversation(me)
	if conv.Kind == model.KindGroup {
		b.stores.Groups.NoteMessage(conv.ID, m)
		b.stores.Groups.Mutate(conv.ID, func(tl *state.Timeline) bool { return tl.Upsert(m) })
		return true
	}
	open := b.stores.Chats.OpenID() == conv.ID
	b.stores.Chats.NoteMessage(conv.ID, m, !open && m.SenderID != me)
	b.stores.Chats.Mutate(conv.ID, func(tl *state.Timeline) bool { return tl.Upsert(m) })
	return true
}

func (b *Bridge) messageUpdated(m model.Message) bool {
	conv := m.Conversation(b.stores.Auth.UserID())
	var changed bool
	if conv.Kind == model.KindGroup {
		changed = b.stores.Groups.Mutate(conv.ID, func(tl *state.Timeline) bool { return tl.Upsert(m) })
	} else {
		changed = b.stores.Chats.Mutate(conv.ID, func(tl *state.Timeline) bool { return tl.Upsert(m) })
	}
	if changed {
		b.stores.Pins.Mark(conv, m.ID, m.Pinned && !m.DeletedForEveryone)
	}
	return changed
}

func (b *Bridge) messageDeleted(e model.MessageDeleted) bool {
	apply := func(tl *state.Timeline) bool {
		if e.Scope == model.ScopeMe {
			return tl.Hide(e.MessageID)
		}
		return tl.Tombstone(e.MessageID)
	}
	conv, ok := e.Conversation(b.stores.Auth.UserID())
	if !ok {
		// Older payloads carry only the id; the open chat is the only
		// timeline that can hold it.
		conv = model.PeerRef{Kind: model.KindUser, ID: b.stores.Chats.OpenID()}
	}
	var changed bool
	if conv.Kind == model.KindGroup {
		changed = b.stores.Groups.Mutate(conv.ID, apply)
	} else {
		changed = b.stores.Chats.Mutate(conv.ID, apply)
	}
	if e.Scope == model.ScopeEveryone && b.stores.Stars.IsStarred(e.MessageID) {
		b.stores.Stars.Mark(model.Message{ID: e.MessageID}, false)
		changed = true
	}
	return changed
}

func groupName(g model.Group) string {
	if g.Name == "" {
		return "the group"
	}
	return g.Name
}
