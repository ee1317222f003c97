package views

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/chatline/internal/control"
	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/tui/ui"
)

// Names resolves user ids to display names.
type Names func(id string) string

// MessageThread displays one conversation's timeline and a composer. Each
// message is a text region; the cursor is the highlighted region.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	pinned   *tview.TextView
	messages *tview.TextView
	composer *tview.InputField

	name    string
	peer    model.PeerRef
	ids     []string
	texts   map[string]string
	cursor  int
	replyTo string
	onSend  func(text, replyTo string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	pinned := tview.NewTextView().
		SetDynamicColors(true)
	pinned.SetBackgroundColor(theme.BgColor)

	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(pinned, 0, 0, false).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		pinned:   pinned,
		messages: messages,
		composer: composer,
		texts:    make(map[string]string),
	}
	mt.renderComposerTitle()

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		text := strings.TrimSpace(composer.GetText())
		if text == "" {
			return
		}
		mt.onSend(text, mt.replyTo)
		composer.SetText("")
		mt.ClearReply()
	})

	return mt
}

// Name implements ui.Component.
func (mt *MessageThread) Name() string {
	if mt.name != "" {
		return mt.name
	}
	return "Messages"
}

// FocusTarget implements ui.Component.
func (mt *MessageThread) FocusTarget() tview.Primitive { return mt.messages }

// SetOnSend sets the callback run when the composer submits.
func (mt *MessageThread) SetOnSend(fn func(text, replyTo string)) {
	mt.onSend = fn
}

// Update renders resp. Switching to another conversation resets the cursor
// to the newest message and loads the saved draft into the composer.
func (mt *MessageThread) Update(resp *control.MessagesResponse, names Names) {
	if resp == nil || resp.Peer == nil {
		mt.reset()
		return
	}
	if *resp.Peer != mt.peer {
		mt.peer = *resp.Peer
		mt.cursor = -1
		mt.replyTo = ""
		mt.composer.SetText(resp.Draft)
	}
	mt.name = resp.Name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", display(resp.Name)))

	prev := mt.CursorID()
	mt.ids = mt.ids[:0]
	clear(mt.texts)
	mt.messages.Clear()
	selected := make(map[string]bool, len(resp.Selected))
	for _, id := range resp.Selected {
		selected[id] = true
	}
	for _, it := range resp.Items {
		switch {
		case it.Event != nil:
			_, _ = fmt.Fprintf(mt.messages, "[%s]   ── %s ──[-]\n\n", ui.Tag(mt.theme.SystemColor), display(EventText(*it.Event, names)))
		case it.Message != nil:
			m := it.Message
			if m.HiddenForMe {
				continue
			}
			mt.ids = append(mt.ids, m.ID)
			mt.texts[m.ID] = m.Text
			_, _ = fmt.Fprint(mt.messages, mt.renderMessage(*m, names, selected[m.ID], resp.Bulk))
		}
	}

	switch i := slices.Index(mt.ids, prev); {
	case i >= 0:
		mt.cursor = i
	default:
		mt.cursor = len(mt.ids) - 1
	}
	mt.highlight()
	mt.renderPinned(resp.Pinned)
	mt.renderComposerTitle()
}

func (mt *MessageThread) reset() {
	mt.peer = model.PeerRef{}
	mt.name = ""
	mt.ids = mt.ids[:0]
	clear(mt.texts)
	mt.cursor = -1
	mt.replyTo = ""
	mt.messages.Clear()
	mt.pinned.Clear()
	mt.ResizeItem(mt.pinned, 0, 0)
}

func (mt *MessageThread) renderMessage(m model.Message, names Names, selected, bulk bool) string {
	var b strings.Builder
	sender := names(m.SenderID)
	senderColor := mt.theme.FgColor
	if sender == "You" {
		senderColor = mt.theme.SelfColor
	}

	fmt.Fprintf(&b, `["%s"]`, m.ID)
	if bulk {
		mark := "[ ]"
		if selected {
			mark = "[✓]"
		}
		fmt.Fprintf(&b, "[%s]%s[-] ", ui.Tag(mt.theme.SelectedColor), tview.Escape(mark))
	}
	fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [%s]%s[-]", ui.Tag(senderColor), display(sender), ui.Tag(mt.theme.MutedColor), formatTimestamp(m.CreatedAt))
	if m.Starred {
		fmt.Fprintf(&b, " [%s]★[-]", ui.Tag(mt.theme.StarColor))
	}
	if m.Pinned {
		fmt.Fprintf(&b, " [%s]pinned[-]", ui.Tag(mt.theme.PinColor))
	}
	if m.Edited && !m.DeletedForEveryone {
		fmt.Fprintf(&b, " [%s](edited)[-]", ui.Tag(mt.theme.MutedColor))
	}
	if m.Pending {
		fmt.Fprintf(&b, " [%s]sending…[-]", ui.Tag(mt.theme.MutedColor))
	}
	b.WriteString("\n")

	if m.ReplyTo != nil && !m.DeletedForEveryone {
		quote := m.ReplyTo.Text
		if quote == "" && m.ReplyTo.Image != "" {
			quote = "Photo"
		}
		fmt.Fprintf(&b, "[%s]│ %s: %s[-]\n", ui.Tag(mt.theme.MutedColor), display(names(m.ReplyTo.SenderID)), display(firstLine(quote)))
	}
	switch {
	case m.DeletedForEveryone:
		fmt.Fprintf(&b, "[%s::i]%s[-:-:-]\n", ui.Tag(mt.theme.MutedColor), model.DeletedPlaceholder)
	default:
		if m.Image != "" {
			fmt.Fprintf(&b, "[%s]%s %s[-]\n", ui.Tag(mt.theme.MutedColor), tview.Escape("[image]"), display(m.Image))
		}
		if m.Text != "" {
			b.WriteString(display(m.Text))
			b.WriteString("\n")
		}
	}
	b.WriteString(`[""]`)
	b.WriteString("\n")
	return b.String()
}

func (mt *MessageThread) renderPinned(pinned []string) {
	mt.pinned.Clear()
	var live []string
	for _, id := range pinned {
		if _, ok := mt.texts[id]; ok {
			live = append(live, id)
		}
	}
	if len(live) == 0 {
		mt.ResizeItem(mt.pinned, 0, 0)
		return
	}
	mt.ResizeItem(mt.pinned, 1, 0)
	latest := live[len(live)-1]
	_, _ = fmt.Fprintf(mt.pinned, " [%s::b]Pinned (%d):[-:-:-] %s", ui.Tag(mt.theme.PinColor), len(live), display(firstLine(mt.texts[latest])))
}

func (mt *MessageThread) renderComposerTitle() {
	title := " Compose (i to focus) "
	if mt.replyTo != "" {
		title = fmt.Sprintf(" Replying to: %s ", display(firstLine(mt.texts[mt.replyTo])))
	}
	mt.composer.SetTitle(title)
}

func (mt *MessageThread) highlight() {
	if mt.cursor < 0 || mt.cursor >= len(mt.ids) {
		mt.messages.Highlight()
		mt.messages.ScrollToEnd()
		return
	}
	mt.messages.Highlight(mt.ids[mt.cursor])
	mt.messages.ScrollToHighlight()
}

// MoveCursor moves the message cursor by delta, clamped to the timeline.
func (mt *MessageThread) MoveCursor(delta int) {
	if len(mt.ids) == 0 {
		return
	}
	mt.cursor = max(0, min(len(mt.ids)-1, mt.cursor+delta))
	mt.highlight()
}

// CursorID returns the id of the message under the cursor.
func (mt *MessageThread) CursorID() string {
	if mt.cursor < 0 || mt.cursor >= len(mt.ids) {
		return ""
	}
	return mt.ids[mt.cursor]
}

// CursorText returns the text of the message under the cursor.
func (mt *MessageThread) CursorText() string {
	return mt.texts[mt.CursorID()]
}

// Peer returns the conversation on screen.
func (mt *MessageThread) Peer() model.PeerRef { return mt.peer }

// SetReplyTo quotes message id in the next send.
func (mt *MessageThread) SetReplyTo(id string) {
	mt.replyTo = id
	mt.renderComposerTitle()
}

// ReplyTo returns the message the next send will quote.
func (mt *MessageThread) ReplyTo() string { return mt.replyTo }

// ClearReply drops the quoted message.
func (mt *MessageThread) ClearReply() {
	mt.replyTo = ""
	mt.renderComposerTitle()
}

// Draft returns the unsent composer text.
func (mt *MessageThread) Draft() string { return mt.composer.GetText() }

// Messages returns the timeline view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView { return mt.messages }

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField { return mt.composer }

// EventText describes a group timeline event.
func EventText(ev model.GroupEvent, names Names) string {
	if ev.Text != "" {
		return ev.Text
	}
	actor := names(ev.ActorID)
	targets := make([]string, len(ev.TargetIDs))
	for i, id := range ev.TargetIDs {
		targets[i] = names(id)
	}
	who := strings.Join(targets, ", ")
	switch ev.Type {
	case model.GroupCreated:
		return actor + " created the group"
	case model.GroupRenamed:
		return actor + " updated the group"
	case model.MemberJoined:
		return actor + " added " + who
	case model.MemberLeft:
		return actor + " left"
	case model.MemberKicked:
		return actor + " removed " + who
	case model.AdminPromoted:
		return actor + " made " + who + " an admin"
	default:
		return string(ev.Type)
	}
}
