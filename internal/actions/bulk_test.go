package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/state"
)

func TestForwardToTwoRecipients(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.srv.AddGroup(model.Group{ID: "g1", Name: "Team", Members: []string{"me", "u2"}, Admins: []string{"me"}})
	m := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "pass it on"})
	h.openChat(t, "u1")
	h.stores.Selection.Toggle(m.ID)

	res, err := h.act.Forward(context.Background(), nil, []model.PeerRef{
		{Kind: model.KindGroup, ID: "g1"},
		{Kind: model.KindUser, ID: "u2"},
	})
	require.NoError(t, err)
	assert.Equal(t, BulkResult{Done: 2}, res)

	assert.Equal(t, 1, h.srv.Requests("POST /api/messages/send/:id"))
	assert.Equal(t, 1, h.srv.Requests("POST /api/groups/:id/messages"))
	assert.Equal(t, []string{"Forwarded 1 message to 2 chats"}, h.toasts(state.SeveritySuccess))

	// Several recipients: the view stays where it was.
	active, _ := h.stores.Selection.ActiveRef()
	assert.Equal(t, ana, active)
	assert.Empty(t, h.stores.Selection.Selected())
}

func TestForwardToSingleRecipientNavigatesFirst(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m1 := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "one"})
	m2 := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "two"})
	h.openChat(t, "u1")

	bia := model.PeerRef{Kind: model.KindUser, ID: "u2"}
	res, err := h.act.Forward(context.Background(), []string{m2.ID, m1.ID}, []model.PeerRef{bia})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Done)

	active, _ := h.stores.Selection.ActiveRef()
	assert.Equal(t, bia, active)
	assert.Equal(t, "u2", h.stores.Chats.OpenID())

	msgs := h.stores.Chats.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Text)
	assert.Equal(t, "two", msgs[1].Text)
	for _, m := range msgs {
		assert.Equal(t, model.Confirmed, m.Lifecycle())
	}
	assert.Equal(t, []string{"Forwarded 2 messages to 1 chat"}, h.toasts(state.SeveritySuccess))
}

func TestForwardPartialFailure(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.srv.AddGroup(model.Group{ID: "g1", Name: "Team", Members: []string{"me", "u2"}, Admins: []string{"me"}})
	m := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "pass it on"})
	h.openChat(t, "u1")
	h.srv.Fail("POST /api/groups/:id/messages", 500, "nope")

	res, err := h.act.Forward(context.Background(), []string{m.ID}, []model.PeerRef{
		{Kind: model.KindGroup, ID: "g1"},
		{Kind: model.KindUser, ID: "u2"},
	})
	require.NoError(t, err)
	assert.Equal(t, BulkResult{Done: 1, Failed: 1}, res)
	assert.Equal(t, []string{"Forwarded 1 of 2 messages"}, h.toasts(state.SeverityError))
	assert.Empty(t, h.toasts(state.SeveritySuccess))
}

func TestForwardValidation(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "x"})
	h.openChat(t, "u1")

	_, err := h.act.Forward(context.Background(), []string{m.ID}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "recipients", verr.Field)

	_, err = h.act.Forward(context.Background(), nil, []model.PeerRef{{Kind: model.KindUser, ID: "u2"}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "selection", verr.Field)
	assert.Zero(t, h.srv.Requests("POST /api/messages/send/:id"))
}

func TestBulkWithoutOpenConversation(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	_, err := h.act.BulkStar(context.Background(), []string{"m1"})
	require.ErrorIs(t, err, ErrNoConversation)
}

func TestBulkStar(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m1 := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "one"})
	m2 := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "two"})
	h.openChat(t, "u1")
	_, err := h.act.ToggleStar(context.Background(), ana, m1.ID)
	require.NoError(t, err)

	res, err := h.act.BulkStar(context.Background(), []string{m1.ID, m2.ID})
	require.NoError(t, err)
	assert.Equal(t, BulkResult{Done: 1}, res)
	assert.True(t, h.stores.Stars.IsStarred(m1.ID))
	assert.True(t, h.stores.Stars.IsStarred(m2.ID))
	assert.Contains(t, h.toasts(state.SeveritySuccess), "Starred 1 message")

	res, err = h.act.BulkStar(context.Background(), []string{m1.ID, m2.ID})
	require.NoError(t, err)
	assert.Equal(t, BulkResult{Done: 2}, res)
	assert.False(t, h.stores.Stars.IsStarred(m1.ID))
	assert.False(t, h.stores.Stars.IsStarred(m2.ID))
	assert.Contains(t, h.toasts(state.SeveritySuccess), "Unstarred 2 messages")
}

func TestBulkDelete(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m1 := h.srv.AddMessage(model.Message{SenderID: "me", ReceiverID: "u1", Text: "one"})
	m2 := h.srv.AddMessage(model.Message{SenderID: "me", ReceiverID: "u1", Text: "two"})
	h.openChat(t, "u1")
	h.stores.Selection.Toggle(m1.ID)
	h.stores.Selection.Toggle(m2.ID)

	res, err := h.act.BulkDelete(context.Background(), nil, model.ScopeEveryone)
	require.NoError(t, err)
	assert.Equal(t, BulkResult{Done: 2}, res)
	for _, m := range h.stores.Chats.Messages() {
		assert.Equal(t, model.DeletedForEveryone, m.Lifecycle())
	}
	assert.Equal(t, []string{"Deleted 2 messages"}, h.toasts(state.SeveritySuccess))
	assert.False(t, h.stores.Selection.Bulk())
}

func TestBulkDeleteForEveryoneRejectsOthersMessages(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	mine := h.srv.AddMessage(model.Message{SenderID: "me", ReceiverID: "u1", Text: "one"})
	theirs := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "two"})
	h.openChat(t, "u1")

	_, err := h.act.BulkDelete(context.Background(), []string{mine.ID, theirs.ID}, model.ScopeEveryone)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, h.srv.Requests("DELETE /api/messages/:id"))

	res, err := h.act.BulkDelete(context.Background(), []string{mine.ID, theirs.ID}, model.ScopeMe)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Done)
}

func TestBulkCopyKeepsTimelineOrder(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m1 := h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "first"})
	h.srv.AddMessage(model.Message{SenderID: "me", ReceiverID: "u1", Text: "skipped"})
	m3 := h.srv.AddMessage(model.Message{SenderID: "me", ReceiverID: "u1", Text: "third"})
	h.openChat(t, "u1")
	h.stores.Selection.Toggle(m3.ID)
	h.stores.Selection.Toggle(m1.ID)

	text, err := h.act.BulkCopy(nil)
	require.NoError(t, err)
	assert.Equal(t, "first\nthird", text)
	assert.Equal(t, []string{"Copied 2 messages"}, h.toasts(state.SeveritySuccess))
	assert.Empty(t, h.stores.Selection.Selected())
}
