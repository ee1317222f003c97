package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/model"
)

// BulkResult counts the outcome of a multi-message action.
type BulkResult struct {
	Done   int `json:"done"`
	Failed int `json:"failed"`
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// selection returns the open conversation and the messages of ids in it,
// in timeline order. Empty ids means the current selection.
func (a *Actions) selection(ids []string) (model.PeerRef, []model.Message, error) {
	ref, err := a.active()
	if err != nil {
		return ref, nil, err
	}
	if len(ids) == 0 {
		ids = a.stores.Selection.Selected()
	}
	if len(ids) == 0 {
		return ref, nil, a.invalid("selection", "Select at least one message")
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var msgs []model.Message
	var all []model.Message
	if ref.Kind == model.KindGroup {
		all = a.stores.Groups.Messages()
	} else {
		all = a.stores.Chats.Messages()
	}
	for _, m := range all {
		if want[m.ID] && m.Lifecycle() == model.Confirmed {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 0 {
		return ref, nil, a.invalid("selection", "The selected messages are no longer available")
	}
	return ref, msgs, nil
}

// Forward sends copies of the selected messages to every recipient, one
// request per message and recipient. With a single recipient its
// conversation is opened first so the copies land in view.
func (a *Actions) Forward(ctx context.Context, ids []string, recipients []model.PeerRef) (BulkResult, error) {
	var res BulkResult
	if len(recipients) == 0 {
		return res, a.invalid("recipients", "Choose at least one chat to forward to")
	}
	_, msgs, err := a.selection(ids)
	if err != nil {
		return res, err
	}

	if len(recipients) == 1 {
		to := recipients[0]
		if _, err := a.OpenChatByID(ctx, to.Kind, to.ID); err != nil {
			return res, err
		}
		if err := a.LoadMessages(ctx, to); err != nil {
			return res, err
		}
	}

	for _, to := range recipients {
		for _, m := range msgs {
			_, err := a.dispatch(ctx, to, Compose{Text: m.Text, Image: m.Image}, nil)
			if errors.Is(err, api.ErrUnauthorized) {
				return res, err
			}
			if err != nil {
				res.Failed++
				a.logger.Warn("forward message",
					zap.String("message", m.ID),
					zap.Stringer("to", to),
					zap.Error(err),
				)
				continue
			}
			res.Done++
		}
	}
	a.stores.Selection.Clear()

	total := len(msgs) * len(recipients)
	switch {
	case res.Failed == 0:
		a.stores.Toasts.Success(fmt.Sprintf("Forwarded %s to %s", plural(len(msgs), "message"), plural(len(recipients), "chat")))
	case res.Done == 0:
		a.stores.Toasts.Error("Failed to forward messages")
		return res, fmt.Errorf("forward: all %d sends failed", total)
	default:
		a.stores.Toasts.Error(fmt.Sprintf("Forwarded %d of %d messages", res.Done, total))
	}
	return res, nil
}

// BulkStar stars every selected message, or unstars them all when every one
// is already starred.
func (a *Actions) BulkStar(ctx context.Context, ids []string) (BulkResult, error) {
	var res BulkResult
	ref, msgs, err := a.selection(ids)
	if err != nil {
		return res, err
	}
	star := false
	for _, m := range msgs {
		if !m.Starred {
			star = true
			break
		}
	}

	for _, m := range msgs {
		if m.Starred == star {
			continue
		}
		_, err := a.toggleStar(ctx, ref, m.ID)
		if errors.Is(err, api.ErrUnauthorized) {
			return res, err
		}
		if err != nil {
			res.Failed++
			continue
		}
		res.Done++
	}
	a.stores.Selection.Clear()

	verb := "Starred"
	if !star {
		verb = "Unstarred"
	}
	a.report(res, verb, "Failed to update stars")
	return res, nil
}

// BulkDelete deletes the selected messages with the same scope.
func (a *Actions) BulkDelete(ctx context.Context, ids []string, scope model.DeleteScope) (BulkResult, error) {
	var res BulkResult
	ref, msgs, err := a.selection(ids)
	if err != nil {
		return res, err
	}
	if scope != model.ScopeMe {
		me := a.me()
		for _, m := range msgs {
			if m.SenderID != me {
				return res, a.invalid("scope", "You can only delete your own messages for everyone")
			}
		}
	}

	for _, m := range msgs {
		err := a.deleteOne(ctx, ref, m.ID, scope)
		if errors.Is(err, api.ErrUnauthorized) {
			return res, err
		}
		if err != nil {
			res.Failed++
			continue
		}
		res.Done++
	}
	a.stores.Selection.Clear()
	a.report(res, "Deleted", "Failed to delete messages")
	return res, nil
}

// BulkCopy returns the text of the selected messages in timeline order.
func (a *Actions) BulkCopy(ids []string) (string, error) {
	_, msgs, err := a.selection(ids)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Text != "" {
			lines = append(lines, m.Text)
		}
	}
	if len(lines) == 0 {
		return "", a.invalid("selection", "The selected messages have no text to copy")
	}
	a.stores.Selection.Clear()
	a.stores.Toasts.Success("Copied " + plural(len(lines), "message"))
	return strings.Join(lines, "\n"), nil
}

func (a *Actions) report(res BulkResult, verb, failure string) {
	switch {
	case res.Failed == 0:
		a.stores.Toasts.Success(verb + " " + plural(res.Done, "message"))
	case res.Done == 0:
		a.stores.Toasts.Error(failure)
	default:
		a.stores.Toasts.Error(fmt.Sprintf("%s %d of %d messages", verb, res.Done, res.Done+res.Failed))
	}
}
