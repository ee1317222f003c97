package actions

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/state"
	"github.com/matheus3301/chatline/internal/store"
)

// lastPeerKey remembers the last opened conversation across restarts.
const lastPeerKey = "last-peer"

// LoadContacts fetches the users available to chat with.
func (a *Actions) LoadContacts(ctx context.Context) error {
	a.stores.Chats.SetFlags(func(f *state.ChatFlags) { f.LoadingContacts = true })
	defer a.stores.Chats.SetFlags(func(f *state.ChatFlags) { f.LoadingContacts = false })

	cs, err := a.api.Contacts(ctx)
	if err != nil {
		a.fail(err, "Failed to load contacts")
		return err
	}
	a.stores.Chats.SetContacts(cs)
	return nil
}

// LoadChats fetches the private conversations.
func (a *Actions) LoadChats(ctx context.Context) error {
	a.stores.Chats.SetFlags(func(f *state.ChatFlags) { f.LoadingChats = true })
	defer a.stores.Chats.SetFlags(func(f *state.ChatFlags) { f.LoadingChats = false })

	cs, err := a.api.Chats(ctx)
	if err != nil {
		a.fail(err, "Failed to load chats")
		return err
	}
	a.stores.Chats.SetChats(cs)
	return nil
}

// LoadGroups fetches the groups the user belongs to.
func (a *Actions) LoadGroups(ctx context.Context) error {
	a.stores.Groups.SetFlags(func(f *state.GroupFlags) { f.LoadingGroups = true })
	defer a.stores.Groups.SetFlags(func(f *state.GroupFlags) { f.LoadingGroups = false })

	gs, err := a.api.Groups(ctx)
	if err != nil {
		a.fail(err, "Failed to load groups")
		return err
	}
	a.stores.Groups.SetGroups(gs)
	return nil
}

// LoadStarred fetches the starred messages across conversations.
func (a *Actions) LoadStarred(ctx context.Context) error {
	msgs, err := a.api.Starred(ctx)
	if err != nil {
		a.fail(err, "Failed to load starred messages")
		return err
	}
	a.stores.Stars.SetStarred(msgs)
	return nil
}

// LoadMessages fetches the timeline of ref and makes it the open one.
func (a *Actions) LoadMessages(ctx context.Context, ref model.PeerRef) error {
	if ref.Kind == model.KindGroup {
		return a.loadGroupMessages(ctx, ref)
	}

	a.stores.Chats.SetFlags(func(f *state.ChatFlags) { f.LoadingMessages = true })
	defer a.stores.Chats.SetFlags(func(f *state.ChatFlags) { f.LoadingMessages = false })

	msgs, err := a.api.Messages(ctx, ref.ID)
	if err != nil {
		a.fail(err, "Failed to load messages")
		return err
	}
	a.stores.Groups.Close()
	a.stores.Chats.Open(ref.ID, msgs)
	a.stores.Chats.MarkRead(ref.ID)
	a.stores.Pins.SetPinned(ref, pinnedIDs(msgs))
	return nil
}

func (a *Actions) loadGroupMessages(ctx context.Context, ref model.PeerRef) error {
	a.stores.Groups.SetFlags(func(f *state.GroupFlags) { f.LoadingMessages = true })
	defer a.stores.Groups.SetFlags(func(f *state.GroupFlags) { f.LoadingMessages = false })

	tl, err := a.api.GroupMessages(ctx, ref.ID)
	if err != nil {
		a.fail(err, "Failed to load messages")
		return err
	}
	a.stores.Chats.Close()
	a.stores.Groups.Open(ref.ID, tl.Messages, tl.Events)
	a.stores.Pins.SetPinned(ref, pinnedIDs(tl.Messages))
	return nil
}

func pinnedIDs(msgs []model.Message) []string {
	var ids []string
	for _, m := range msgs {
		if m.Pinned && m.Lifecycle() == model.Confirmed {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// OpenChat selects p and loads its timeline.
func (a *Actions) OpenChat(ctx context.Context, p model.Peer) error {
	a.selectPeer(p)
	return a.LoadMessages(ctx, p.Ref())
}

// OpenChatByID resolves a conversation from the loaded lists, fetching it
// once when it is not there, and selects it. Loading the timeline is left to
// the caller.
func (a *Actions) OpenChatByID(ctx context.Context, kind model.PeerKind, id string) (model.Peer, error) {
	p, err := a.resolve(ctx, kind, id)
	if err != nil {
		a.fail(err, "Chat not found")
		return nil, err
	}
	a.selectPeer(p)
	return p, nil
}

func (a *Actions) resolve(ctx context.Context, kind model.PeerKind, id string) (model.Peer, error) {
	switch kind {
	case model.KindUser:
		if c, ok := a.stores.Chats.Chat(id); ok {
			return c.Counterpart, nil
		}
		if c, ok := a.stores.Chats.Contact(id); ok {
			return c, nil
		}
		c, err := a.api.User(ctx, id)
		if err != nil {
			return nil, err
		}
		return c, nil
	case model.KindGroup:
		if g, ok := a.stores.Groups.Group(id); ok {
			return g, nil
		}
		g, err := a.api.Group(ctx, id)
		if err != nil {
			return nil, err
		}
		a.stores.Groups.Upsert(g)
		return g, nil
	default:
		return nil, &ValidationError{Field: "type", Message: fmt.Sprintf("unknown chat type %q", kind)}
	}
}

func (a *Actions) selectPeer(p model.Peer) {
	a.stores.Selection.Open(p)
	if a.local == nil {
		return
	}
	if err := a.local.PutKV(store.TierPrefs, lastPeerKey, p.Ref().String()); err != nil {
		a.logger.Warn("remember last chat", zap.Error(err))
	}
}

// RestoreLastChat reopens the conversation that was open when the client
// last ran. It reports false when there was none.
func (a *Actions) RestoreLastChat(ctx context.Context) (bool, error) {
	if a.local == nil {
		return false, nil
	}
	raw, ok, err := a.local.GetKV(store.TierPrefs, lastPeerKey)
	if err != nil || !ok {
		return false, err
	}
	ref, err := model.ParsePeerRef(raw)
	if err != nil {
		a.logger.Warn("discard stored last chat", zap.String("value", raw), zap.Error(err))
		return false, nil
	}
	if _, err := a.OpenChatByID(ctx, ref.Kind, ref.ID); err != nil {
		return false, err
	}
	return true, a.LoadMessages(ctx, ref)
}
