package actions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/state"
)

var ana = model.PeerRef{Kind: model.KindUser, ID: "u1"}

func TestSendReconcilesToSingleEntry(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.openChat(t, "u1")

	m, err := h.act.Send(context.Background(), ana, Compose{Text: "  hi  "})
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(m.ID, tempPrefix))
	assert.Equal(t, "hi", m.Text)

	msgs := h.stores.Chats.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, m.ID, msgs[0].ID)
	assert.False(t, msgs[0].Pending)

	chat, ok := h.stores.Chats.Chat("u1")
	require.True(t, ok)
	assert.Equal(t, "hi", chat.LastMessage.Preview())
	assert.False(t, h.stores.Chats.Flags().Sending)
}

func TestSendShowsPendingEntryWhileOutstanding(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.openChat(t, "u1")
	release := h.srv.Hold("POST /api/messages/send/:id")

	done := make(chan error, 1)
	go func() {
		_, err := h.act.Send(context.Background(), ana, Compose{Text: "hi"})
		done <- err
	}()

	require.Eventually(t, func() bool { return len(h.stores.Chats.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	pending := h.stores.Chats.Messages()[0]
	assert.Equal(t, model.LocalPending, pending.Lifecycle())
	assert.Equal(t, pending.ID, pending.ClientID)
	assert.True(t, h.stores.Chats.Flags().Sending)

	release()
	require.NoError(t, <-done)
	msgs := h.stores.Chats.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.Confirmed, msgs[0].Lifecycle())
}

func TestSendEchoBeforeResponseKeepsOneEntry(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.openChat(t, "u1")
	release := h.srv.Hold("POST /api/messages/send/:id")

	done := make(chan model.Message, 1)
	go func() {
		m, _ := h.act.Send(context.Background(), ana, Compose{Text: "hi"})
		done <- m
	}()
	require.Eventually(t, func() bool { return len(h.stores.Chats.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	pending := h.stores.Chats.Messages()[0]

	// The server copy arrives over the socket first.
	echo := model.Message{
		ID:         "m-echo",
		ClientID:   pending.ClientID,
		SenderID:   "me",
		ReceiverID: "u1",
		Text:       "hi",
		CreatedAt:  pending.CreatedAt,
	}
	h.stores.Chats.Mutate("u1", func(t *state.Timeline) bool { return t.Upsert(echo) })

	release()
	<-done
	assert.Len(t, h.stores.Chats.Messages(), 1)
}

func TestSendFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "hello"})
	h.openChat(t, "u1")
	before := h.stores.Chats.Messages()
	h.srv.Fail("POST /api/messages/send/:id", 500, "Server exploded")

	_, err := h.act.Send(context.Background(), ana, Compose{Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, before, h.stores.Chats.Messages())
	assert.Equal(t, []string{"Server exploded"}, h.toasts(state.SeverityError))
	assert.False(t, h.stores.Chats.Flags().Sending)
}

func TestSendFailureWithoutMessageUsesFallback(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.openChat(t, "u1")
	h.srv.Fail("POST /api/messages/send/:id", 502, "")

	_, err := h.act.Send(context.Background(), ana, Compose{Text: "hi"})
	require.Error(t, err)
	assert.Empty(t, h.stores.Chats.Messages())
	assert.Len(t, h.toasts(state.SeverityError), 1)
}

func TestSendValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    Compose
		field string
	}{
		{"empty", Compose{Text: "   "}, "text"},
		{"image over ceiling", Compose{Image: EncodeImage(make([]byte, 65))}, "image"},
		{"not base64", Compose{Image: "data:image/png,raw"}, "image"},
		{"reply to unknown", Compose{Text: "hi", ReplyTo: "missing"}, "replyTo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.signIn(t)
			h.openChat(t, "u1")

			_, err := h.act.Send(context.Background(), ana, tt.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Zero(t, h.srv.Requests("POST /api/messages/send/:id"))
			assert.Empty(t, h.stores.Chats.Messages())
		})
	}
}

func TestSendImageWithinCeiling(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.openChat(t, "u1")

	m, err := h.act.Send(context.Background(), ana, Compose{Image: EncodeImage(make([]byte, 64))})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(m.Image, "data:"))
	assert.Equal(t, "Photo", m.Preview())
}

func TestSendReply(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	orig := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "lunch?"})
	h.openChat(t, "u1")

	m, err := h.act.Send(context.Background(), ana, Compose{Text: "yes", ReplyTo: orig.ID})
	require.NoError(t, err)
	require.NotNil(t, m.ReplyTo)
	assert.Equal(t, orig.ID, m.ReplyTo.ID)
	assert.Equal(t, "lunch?", m.ReplyTo.Text)
}

func TestSendToGroup(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.srv.AddGroup(model.Group{ID: "g1", Name: "Team", Members: []string{"me", "u1"}, Admins: []string{"me"}})
	require.NoError(t, h.act.LoadGroups(context.Background()))
	g, _ := h.stores.Groups.Group("g1")
	require.NoError(t, h.act.OpenChat(context.Background(), g))

	m, err := h.act.Send(context.Background(), g.Ref(), Compose{Text: "hi all"})
	require.NoError(t, err)
	assert.Equal(t, "g1", m.GroupID)
	assert.Len(t, h.stores.Groups.Messages(), 1)

	g, _ = h.stores.Groups.Group("g1")
	require.NotNil(t, g.LastMessage)
	assert.Equal(t, m.ID, g.LastMessage.ID)
}

func TestStarRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "hello"})
	h.openChat(t, "u1")

	starred, err := h.act.ToggleStar(context.Background(), ana, m.ID)
	require.NoError(t, err)
	assert.True(t, starred)
	assert.True(t, h.stores.Stars.IsStarred(m.ID))
	got, _ := h.stores.Chats.Message(m.ID)
	assert.True(t, got.Starred)

	starred, err = h.act.ToggleStar(context.Background(), ana, m.ID)
	require.NoError(t, err)
	assert.False(t, starred)
	assert.False(t, h.stores.Stars.IsStarred(m.ID))
	got, _ = h.stores.Chats.Message(m.ID)
	assert.False(t, got.Starred)
	assert.False(t, h.stores.Stars.Starring(m.ID))
}

func TestStarFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "hello"})
	h.openChat(t, "u1")
	h.srv.Fail("POST /api/messages/:id/star", 500, "Could not star")

	_, err := h.act.ToggleStar(context.Background(), ana, m.ID)
	require.Error(t, err)
	got, _ := h.stores.Chats.Message(m.ID)
	assert.False(t, got.Starred)
	assert.False(t, h.stores.Stars.IsStarred(m.ID))
	assert.Equal(t, []string{"Could not star"}, h.toasts(state.SeverityError))
}

func TestStarOneToggleAtATime(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "hello"})
	other := h.srv.AddMessage(model.Message{SenderID: "me", ReceiverID: "u1", Text: "hey"})
	h.openChat(t, "u1")
	release := h.srv.Hold("POST /api/messages/:id/star")

	done := make(chan error, 1)
	go func() {
		_, err := h.act.ToggleStar(context.Background(), ana, m.ID)
		done <- err
	}()
	require.Eventually(t, func() bool { return h.stores.Stars.Starring(m.ID) }, time.Second, 5*time.Millisecond)

	_, err := h.act.ToggleStar(context.Background(), ana, m.ID)
	require.ErrorIs(t, err, ErrBusy)
	assert.True(t, h.stores.Stars.Starring(m.ID))
	assert.False(t, h.stores.Stars.Starring(other.ID))

	release()
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.srv.Requests("POST /api/messages/:id/star"))
}

func TestStarFromStarredList(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "hello"})
	h.openChat(t, "u1")
	_, err := h.act.ToggleStar(context.Background(), ana, m.ID)
	require.NoError(t, err)
	h.stores.Chats.Close()

	require.NoError(t, h.act.LoadStarred(context.Background()))
	require.Len(t, h.stores.Stars.Starred(), 1)

	starred, err := h.act.ToggleStar(context.Background(), ana, m.ID)
	require.NoError(t, err)
	assert.False(t, starred)
	assert.Empty(t, h.stores.Stars.Starred())
}

func TestPinToggle(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "hello"})
	h.openChat(t, "u1")

	pinned, err := h.act.TogglePin(context.Background(), ana, m.ID)
	require.NoError(t, err)
	assert.True(t, pinned)
	assert.Equal(t, []string{m.ID}, h.stores.Pins.Pinned(ana))

	// Reopening keeps the pin from the server copy.
	h.openChat(t, "u1")
	assert.True(t, h.stores.Pins.IsPinned(ana, m.ID))

	pinned, err = h.act.TogglePin(context.Background(), ana, m.ID)
	require.NoError(t, err)
	assert.False(t, pinned)
	assert.Empty(t, h.stores.Pins.Pinned(ana))
}

func TestEdit(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.srv.AddMessage(model.Message{SenderID: "me", ReceiverID: "u1", Text: "helo"})
	h.openChat(t, "u1")

	got, err := h.act.Edit(context.Background(), ana, m.ID, "hello")
	require.NoError(t, err)
	assert.True(t, got.Edited)

	local, _ := h.stores.Chats.Message(m.ID)
	assert.Equal(t, "hello", local.Text)
	assert.True(t, local.Edited)
	assert.Greater(t, local.Revision(), m.Revision())
}

func TestEditFailureRestoresText(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.srv.AddMessage(model.Message{SenderID: "me", ReceiverID: "u1", Text: "helo"})
	h.openChat(t, "u1")
	h.srv.Fail("PUT /api/messages/:id", 500, "Edit failed")

	_, err := h.act.Edit(context.Background(), ana, m.ID, "hello")
	require.Error(t, err)
	local, _ := h.stores.Chats.Message(m.ID)
	assert.Equal(t, "helo", local.Text)
	assert.False(t, local.Edited)
}

func TestEditOthersMessageRejected(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "hello"})
	h.openChat(t, "u1")

	_, err := h.act.Edit(context.Background(), ana, m.ID, "changed")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, h.srv.Requests("PUT /api/messages/:id"))
}

func TestDeleteForEveryoneLeavesPlaceholder(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.srv.AddMessage(model.Message{SenderID: "me", ReceiverID: "u1", Text: "oops"})
	h.openChat(t, "u1")
	_, err := h.act.ToggleStar(context.Background(), ana, m.ID)
	require.NoError(t, err)

	require.NoError(t, h.act.Delete(context.Background(), ana, m.ID, model.ScopeEveryone))

	msgs := h.stores.Chats.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.DeletedForEveryone, msgs[0].Lifecycle())
	assert.Empty(t, msgs[0].Text)
	assert.False(t, h.stores.Stars.IsStarred(m.ID))

	chat, _ := h.stores.Chats.Chat("u1")
	assert.Equal(t, model.DeletedPlaceholder, chat.LastMessage.Preview())

	// A late edit cannot bring it back.
	late := m
	late.Text = "revived"
	late.UpdatedAt = time.Now().Add(time.Hour)
	h.stores.Chats.Mutate("u1", func(t *state.Timeline) bool { return t.Upsert(late) })
	got, _ := h.stores.Chats.Message(m.ID)
	assert.Equal(t, model.DeletedForEveryone, got.Lifecycle())
}

func TestDeleteForMeHides(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "hello"})
	h.openChat(t, "u1")

	require.NoError(t, h.act.Delete(context.Background(), ana, m.ID, model.ScopeMe))
	got, _ := h.stores.Chats.Message(m.ID)
	assert.Equal(t, model.HiddenForMe, got.Lifecycle())

	h.openChat(t, "u1")
	assert.Empty(t, h.stores.Chats.Messages())
}

func TestDeleteForEveryoneRequiresOwnMessage(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "hello"})
	h.openChat(t, "u1")

	err := h.act.Delete(context.Background(), ana, m.ID, model.ScopeEveryone)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, h.srv.Requests("DELETE /api/messages/:id"))
}

func TestDeleteFailureRestoresMessage(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.srv.AddMessage(model.Message{SenderID: "me", ReceiverID: "u1", Text: "keep me"})
	h.openChat(t, "u1")
	h.srv.Fail("DELETE /api/messages/:id", 500, "Delete failed")

	err := h.act.Delete(context.Background(), ana, m.ID, model.ScopeEveryone)
	require.Error(t, err)
	got, _ := h.stores.Chats.Message(m.ID)
	assert.Equal(t, model.Confirmed, got.Lifecycle())
	assert.Equal(t, "keep me", got.Text)
	assert.Equal(t, []string{"Delete failed"}, h.toasts(state.SeverityError))
}

func TestImageSize(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 64, 1000} {
		got, err := imageSize(EncodeImage(make([]byte, n)))
		require.NoError(t, err)
		assert.Equal(t, int64(n), got, "size %d", n)
	}
	got, err := imageSize("https://cdn.example.com/a.png")
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "5 MB", formatBytes(5<<20))
	assert.Equal(t, "64 KB", formatBytes(64<<10))
	assert.Equal(t, "64 bytes", formatBytes(64))
}
