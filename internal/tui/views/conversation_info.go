package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/tui/ui"
)

// ConversationInfo shows who is in a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
	title string
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
		title:    "Details",
	}
}

// Name implements ui.Component.
func (ci *ConversationInfo) Name() string { return ci.title }

// FocusTarget implements ui.Component.
func (ci *ConversationInfo) FocusTarget() tview.Primitive { return ci }

func (ci *ConversationInfo) row(label, value string) {
	_, _ = fmt.Fprintf(ci, " [%s::b]%-13s[-:-:-][%s]%s[-]\n",
		ui.Tag(ci.theme.FgColor), label, ui.Tag(ci.theme.CounterColor), display(value))
}

// ShowGroup renders a group's profile and members. Admins are marked and
// listed first; self is the signed-in user.
func (ci *ConversationInfo) ShowGroup(g model.Group, self string, names Names) {
	ci.Clear()
	ci.title = g.Name + " details"
	ci.SetTitle(fmt.Sprintf(" %s ", display(ci.title)))

	_, _ = fmt.Fprintln(ci)
	ci.row("Name:", g.Name)
	if g.Description != "" {
		ci.row("Description:", g.Description)
	}
	ci.row("Members:", fmt.Sprintf("%d", len(g.Members)))
	role := "member"
	if g.IsAdmin(self) {
		role = "admin"
	}
	ci.row("Your role:", role)

	_, _ = fmt.Fprintf(ci, "\n [::b]Members[-:-:-]\n")
	ordered := make([]string, 0, len(g.Members))
	for _, id := range g.Members {
		if g.IsAdmin(id) {
			ordered = append(ordered, id)
		}
	}
	for _, id := range g.Members {
		if !g.IsAdmin(id) {
			ordered = append(ordered, id)
		}
	}
	for _, id := range ordered {
		var tags []string
		if g.IsAdmin(id) {
			tags = append(tags, "admin")
		}
		if id == g.CreatedBy {
			tags = append(tags, "creator")
		}
		line := "   " + display(names(id))
		if len(tags) > 0 {
			line += fmt.Sprintf(" [%s](%s)[-]", ui.Tag(ci.theme.MutedColor), strings.Join(tags, ", "))
		}
		_, _ = fmt.Fprintln(ci, line)
	}
	ci.ScrollToBeginning()
}

// ShowContact renders a private conversation's counterpart.
func (ci *ConversationInfo) ShowContact(c model.Contact) {
	ci.Clear()
	ci.title = c.DisplayName() + " details"
	ci.SetTitle(fmt.Sprintf(" %s ", display(ci.title)))

	presence := "offline"
	if c.Online {
		presence = "online"
	}
	_, _ = fmt.Fprintln(ci)
	ci.row("Name:", c.FullName)
	ci.row("Email:", c.Email)
	ci.row("Presence:", presence)
	ci.ScrollToBeginning()
}
