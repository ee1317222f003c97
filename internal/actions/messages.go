package actions

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/optimistic"
	"github.com/matheus3301/chatline/internal/state"
)

// tempPrefix marks ids of messages the server has not confirmed yet.
const tempPrefix = "temp-"

// Compose is a message about to be sent. Image is a data URL.
type Compose struct {
	Text    string
	Image   string
	ReplyTo string
}

// EncodeImage turns raw image bytes into the data URL the server accepts.
func EncodeImage(data []byte) string {
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// imageSize returns the decoded size of a data URL. Other references are
// not measured.
func imageSize(image string) (int64, error) {
	if !strings.HasPrefix(image, "data:") {
		return 0, nil
	}
	_, payload, ok := strings.Cut(image, ";base64,")
	if !ok {
		return 0, fmt.Errorf("image is not base64 encoded")
	}
	n := int64(base64.StdEncoding.DecodedLen(len(payload)))
	n -= int64(len(payload) - len(strings.TrimRight(payload, "=")))
	return n, nil
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// Send posts a message to ref. The message shows up in the open timeline
// at once and is swapped for the server's copy when the request returns.
func (a *Actions) Send(ctx context.Context, ref model.PeerRef, c Compose) (model.Message, error) {
	text := strings.TrimSpace(c.Text)
	if text == "" && c.Image == "" {
		return model.Message{}, a.invalid("text", "Message cannot be empty")
	}
	if c.Image != "" {
		n, err := imageSize(c.Image)
		if err != nil {
			return model.Message{}, a.invalid("image", "Invalid image")
		}
		if n > a.settings.MaxImageBytes {
			return model.Message{}, a.invalid("image", "Image must be smaller than "+formatBytes(a.settings.MaxImageBytes))
		}
	}
	var quote *model.ReplyRef
	if c.ReplyTo != "" {
		quoted, ok := a.message(ref, c.ReplyTo)
		if !ok || quoted.Lifecycle() != model.Confirmed {
			return model.Message{}, a.invalid("replyTo", "The message you are replying to is no longer available")
		}
		quote = quoted.Quote()
	}

	a.setSending(ref, true)
	defer a.setSending(ref, false)

	m, err := a.dispatch(ctx, ref, Compose{Text: text, Image: c.Image, ReplyTo: c.ReplyTo}, quote)
	if err != nil {
		a.fail(err, "Failed to send message")
		return model.Message{}, err
	}
	a.clearDraft(ref)
	return m, nil
}

// dispatch sends a validated message optimistically.
func (a *Actions) dispatch(ctx context.Context, ref model.PeerRef, c Compose, quote *model.ReplyRef) (model.Message, error) {
	tempID := tempPrefix + uuid.NewString()
	pending := model.Message{
		ID:        tempID,
		ClientID:  tempID,
		SenderID:  a.me(),
		Text:      c.Text,
		Image:     c.Image,
		ReplyTo:   quote,
		Status:    model.StatusSending,
		CreatedAt: a.now(),
		Pending:   true,
	}
	if ref.Kind == model.KindGroup {
		pending.GroupID = ref.ID
	} else {
		pending.ReceiverID = ref.ID
	}

	out := api.Outgoing{Text: c.Text, Image: c.Image, ReplyTo: c.ReplyTo, ClientID: tempID}
	return optimistic.Run(ctx, a.runner, optimistic.Command[model.Message]{
		Name: "send",
		Apply: func() func() {
			a.timeline(ref, func(t *state.Timeline) bool { t.Append(pending); return true })
			return func() {
				a.timeline(ref, func(t *state.Timeline) bool { return t.Remove(tempID) })
			}
		},
		Request: func(ctx context.Context) (model.Message, error) {
			return a.post(ctx, ref, out)
		},
		Reconcile: func(m model.Message) {
			a.timeline(ref, func(t *state.Timeline) bool { return t.Confirm(tempID, m) })
			a.notePreview(ref, m)
		},
	})
}

func (a *Actions) post(ctx context.Context, ref model.PeerRef, out api.Outgoing) (model.Message, error) {
	if ref.Kind == model.KindGroup {
		return a.api.SendGroupMessage(ctx, ref.ID, out)
	}
	return a.api.SendMessage(ctx, ref.ID, out)
}

func (a *Actions) setSending(ref model.PeerRef, on bool) {
	if ref.Kind == model.KindGroup {
		a.stores.Groups.SetFlags(func(f *state.GroupFlags) { f.Sending = on })
		return
	}
	a.stores.Chats.SetFlags(func(f *state.ChatFlags) { f.Sending = on })
}

func (a *Actions) notePreview(ref model.PeerRef, m model.Message) {
	if ref.Kind == model.KindGroup {
		a.stores.Groups.NoteMessage(ref.ID, m)
		return
	}
	a.stores.Chats.NoteMessage(ref.ID, m, false)
}

// Edit replaces the text of one of the user's messages.
func (a *Actions) Edit(ctx context.Context, ref model.PeerRef, id, text string) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, a.invalid("text", "Message cannot be empty")
	}
	prior, ok := a.message(ref, id)
	if !ok {
		a.fail(ErrNotFound, "Message not found")
		return model.Message{}, ErrNotFound
	}
	if prior.SenderID != a.me() {
		return model.Message{}, a.invalid("id", "You can only edit your own messages")
	}
	if prior.Lifecycle() != model.Confirmed {
		return model.Message{}, a.invalid("id", "This message can no longer be edited")
	}

	m, err := optimistic.Run(ctx, a.runner, optimistic.Command[model.Message]{
		Name: "edit",
		Apply: func() func() {
			a.timeline(ref, func(t *state.Timeline) bool {
				return t.Update(id, func(m *model.Message) { m.Text, m.Edited = text, true })
			})
			return func() {
				a.timeline(ref, func(t *state.Timeline) bool {
					return t.Update(id, func(m *model.Message) {
						if m.Lifecycle() == model.Confirmed && m.Revision() == prior.Revision() {
							m.Text, m.Edited = prior.Text, prior.Edited
						}
					})
				})
			}
		},
		Request: func(ctx context.Context) (model.Message, error) {
			return a.api.EditMessage(ctx, id, text)
		},
		Reconcile: func(m model.Message) {
			a.timeline(ref, func(t *state.Timeline) bool { return t.Upsert(m) })
			a.notePreview(ref, m)
		},
	})
	if err != nil {
		a.fail(err, "Failed to edit message")
		return model.Message{}, err
	}
	a.stores.Toasts.Success("Message edited")
	return m, nil
}

// Delete removes a message for the user only or, for their own messages,
// for everyone. A message deleted for everyone stays in the timeline as a
// placeholder.
func (a *Actions) Delete(ctx context.Context, ref model.PeerRef, id string, scope model.DeleteScope) error {
	if err := a.deleteOne(ctx, ref, id, scope); err != nil {
		a.fail(err, "Failed to delete message")
		return err
	}
	a.stores.Toasts.Success("Message deleted")
	return nil
}

func (a *Actions) deleteOne(ctx context.Context, ref model.PeerRef, id string, scope model.DeleteScope) error {
	if scope == "" {
		scope = model.ScopeEveryone
	}
	prior, ok := a.message(ref, id)
	if !ok {
		return ErrNotFound
	}
	if scope == model.ScopeEveryone && prior.SenderID != a.me() {
		return &ValidationError{Field: "scope", Message: "You can only delete your own messages for everyone"}
	}
	if prior.Lifecycle() == model.LocalPending {
		return &ValidationError{Field: "id", Message: "This message is still sending"}
	}

	_, err := optimistic.Run(ctx, a.runner, optimistic.Command[*model.Message]{
		Name: "delete",
		Apply: func() func() {
			a.timeline(ref, func(t *state.Timeline) bool {
				if scope == model.ScopeMe {
					return t.Hide(id)
				}
				return t.Tombstone(id)
			})
			return func() {
				a.timeline(ref, func(t *state.Timeline) bool {
					return t.Update(id, func(m *model.Message) {
						if m.Revision() == prior.Revision() {
							*m = prior.Clone()
						}
					})
				})
			}
		},
		Request: func(ctx context.Context) (*model.Message, error) {
			return a.api.DeleteMessage(ctx, id, scope)
		},
		Reconcile: func(m *model.Message) {
			if m != nil {
				a.timeline(ref, func(t *state.Timeline) bool { return t.Upsert(*m) })
			}
			a.stores.Stars.Mark(prior, false)
			a.stores.Pins.Mark(ref, id, false)
			if scope == model.ScopeEveryone {
				tomb := prior.Clone()
				tomb.Tombstone()
				a.notePreview(ref, tomb)
			}
		},
	})
	return err
}

// ToggleStar flips the user's star on a message and reports the new state.
// Only one toggle per message runs at a time.
func (a *Actions) ToggleStar(ctx context.Context, ref model.PeerRef, id string) (bool, error) {
	starred, err := a.toggleStar(ctx, ref, id)
	if err != nil {
		a.fail(err, "Failed to update star")
		return false, err
	}
	if starred {
		a.stores.Toasts.Success("Message starred")
	} else {
		a.stores.Toasts.Success("Message unstarred")
	}
	return starred, nil
}

func (a *Actions) toggleStar(ctx context.Context, ref model.PeerRef, id string) (bool, error) {
	prior, ok := a.message(ref, id)
	if !ok {
		prior, ok = a.starredCopy(id)
	}
	if !ok {
		return false, ErrNotFound
	}
	if prior.Lifecycle() != model.Confirmed {
		return false, &ValidationError{Field: "id", Message: "This message cannot be starred"}
	}
	if !a.stores.Stars.Begin(id) {
		return false, ErrBusy
	}
	defer a.stores.Stars.End(id)

	next := !prior.Starred
	set := func(on bool) {
		a.timeline(ref, func(t *state.Timeline) bool {
			return t.Update(id, func(m *model.Message) { m.Starred = on })
		})
		cp := prior.Clone()
		cp.Starred = on
		a.stores.Stars.Mark(cp, on)
	}

	m, err := optimistic.Run(ctx, a.runner, optimistic.Command[model.Message]{
		Name: "star",
		Apply: func() func() {
			set(next)
			return func() { set(prior.Starred) }
		},
		Request: func(ctx context.Context) (model.Message, error) {
			return a.api.ToggleStar(ctx, id)
		},
		Reconcile: func(m model.Message) { set(m.Starred) },
	})
	if err != nil {
		return false, err
	}
	return m.Starred, nil
}

func (a *Actions) starredCopy(id string) (model.Message, bool) {
	for _, m := range a.stores.Stars.Starred() {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

// TogglePin flips the pin of a message in its conversation and reports the
// new state. Only one toggle per message runs at a time.
func (a *Actions) TogglePin(ctx context.Context, ref model.PeerRef, id string) (bool, error) {
	pinned, err := a.togglePin(ctx, ref, id)
	if err != nil {
		a.fail(err, "Failed to update pin")
		return false, err
	}
	if pinned {
		a.stores.Toasts.Success("Message pinned")
	} else {
		a.stores.Toasts.Success("Message unpinned")
	}
	return pinned, nil
}

func (a *Actions) togglePin(ctx context.Context, ref model.PeerRef, id string) (bool, error) {
	prior, ok := a.message(ref, id)
	if !ok {
		return false, ErrNotFound
	}
	if prior.Lifecycle() != model.Confirmed {
		return false, &ValidationError{Field: "id", Message: "This message cannot be pinned"}
	}
	if !a.stores.Pins.Begin(id) {
		return false, ErrBusy
	}
	defer a.stores.Pins.End(id)

	set := func(on bool) {
		a.timeline(ref, func(t *state.Timeline) bool {
			return t.Update(id, func(m *model.Message) { m.Pinned = on })
		})
		a.stores.Pins.Mark(ref, id, on)
	}

	m, err := optimistic.Run(ctx, a.runner, optimistic.Command[model.Message]{
		Name: "pin",
		Apply: func() func() {
			set(!prior.Pinned)
			return func() { set(prior.Pinned) }
		},
		Request: func(ctx context.Context) (model.Message, error) {
			return a.api.TogglePin(ctx, id)
		},
		Reconcile: func(m model.Message) { set(m.Pinned) },
	})
	if err != nil {
		return false, err
	}
	return m.Pinned, nil
}
