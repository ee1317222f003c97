package views

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/tui/ui"
)

// Conversation is one row of the list: a private chat or a group.
type Conversation struct {
	Ref     model.PeerRef
	Name    string
	Preview string
	At      time.Time
	Unread  int
	Online  bool
	Starred bool
}

// Conversations merges chats and groups, most recent first.
func Conversations(chats []model.Chat, groups []model.Group) []Conversation {
	out := make([]Conversation, 0, len(chats)+len(groups))
	for _, c := range chats {
		conv := Conversation{
			Ref:     c.Counterpart.Ref(),
			Name:    c.Counterpart.DisplayName(),
			At:      c.LastActivity(),
			Unread:  c.UnreadCount,
			Online:  c.Counterpart.Online,
			Starred: c.Starred,
		}
		if c.LastMessage != nil {
			conv.Preview = c.LastMessage.Preview()
		}
		out = append(out, conv)
	}
	for _, g := range groups {
		conv := Conversation{Ref: g.Ref(), Name: g.DisplayName(), At: g.UpdatedAt}
		if g.LastMessage != nil {
			conv.Preview = g.LastMessage.Preview()
			conv.At = g.LastMessage.CreatedAt
		}
		out = append(out, conv)
	}
	slices.SortStableFunc(out, func(a, b Conversation) int {
		return b.At.Compare(a.At)
	})
	return out
}

// ConversationList is the main conversation table.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	all     []Conversation
	visible []Conversation
	filter  string
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ConversationList{
		Table: table,
		theme: theme,
	}
	cl.render()
	return cl
}

// Name implements ui.Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// FocusTarget implements ui.Component.
func (cl *ConversationList) FocusTarget() tview.Primitive { return cl }

// Update replaces the rows, keeping the cursor on the same conversation.
func (cl *ConversationList) Update(convs []Conversation) {
	current, hadCurrent := cl.SelectedPeer()
	cl.all = convs
	cl.render()
	if hadCurrent {
		cl.SelectPeer(current)
	}
}

// SetFilter shows only conversations whose name or preview contains filter.
// An empty filter shows everything.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// Filter returns the active filter.
func (cl *ConversationList) Filter() string { return cl.filter }

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" #", 0},
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
		{" TYPE", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	cl.visible = cl.visible[:0]
	for _, c := range cl.all {
		if cl.filter != "" && !containsFold(c.Name, cl.filter) && !containsFold(c.Preview, cl.filter) {
			continue
		}
		cl.visible = append(cl.visible, c)
	}

	for i, c := range cl.visible {
		row := i + 1
		name := c.Name
		if c.Unread > 0 {
			name = fmt.Sprintf("(%d) %s", c.Unread, name)
		}
		if c.Online {
			name += " •"
		}
		if c.Starred {
			name = "★ " + name
		}
		kind := "DM"
		if c.Ref.Kind == model.KindGroup {
			kind = "GROUP"
		}
		fg := cl.theme.FgColor
		cl.SetCell(row, 0, tview.NewTableCell(" "+strconv.Itoa(row)).SetTextColor(cl.theme.MutedColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+display(name)).SetExpansion(1).SetTextColor(fg))
		cl.SetCell(row, 2, tview.NewTableCell(" "+display(c.Preview)).SetExpansion(2).SetTextColor(fg))
		cl.SetCell(row, 3, tview.NewTableCell(formatTimestamp(c.At)).SetTextColor(fg).SetAlign(tview.AlignRight))
		cl.SetCell(row, 4, tview.NewTableCell(kind).SetTextColor(fg).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(cl.visible), len(cl.all), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.all)))
	}
}

// SelectedPeer returns the conversation under the cursor.
func (cl *ConversationList) SelectedPeer() (model.PeerRef, bool) {
	row, _ := cl.GetSelection()
	return cl.PeerByIndex(row)
}

// PeerByIndex returns the Nth visible conversation, 1-based.
func (cl *ConversationList) PeerByIndex(n int) (model.PeerRef, bool) {
	if n < 1 || n > len(cl.visible) {
		return model.PeerRef{}, false
	}
	return cl.visible[n-1].Ref, true
}

// SelectPeer moves the cursor to ref if it is visible.
func (cl *ConversationList) SelectPeer(ref model.PeerRef) {
	i := slices.IndexFunc(cl.visible, func(c Conversation) bool { return c.Ref == ref })
	if i >= 0 {
		cl.Table.Select(i+1, 0)
	}
}

// Visible returns the rows currently shown.
func (cl *ConversationList) Visible() []Conversation {
	return slices.Clone(cl.visible)
}
