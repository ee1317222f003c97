package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/chatline/internal/tui/ui"
)

// HelpView displays the key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements ui.Component.
func (hv *HelpView) Name() string { return "Help" }

// FocusTarget implements ui.Component.
func (hv *HelpView) FocusTarget() tview.Primitive { return hv }

var helpSections = []struct {
	title string
	keys  [][2]string
}{
	{"Global", [][2]string{
		{":", "Command mode"},
		{"/", "Filter conversations"},
		{"Esc", "Cancel / go back"},
		{"?", "Help"},
		{"q", "Quit"},
	}},
	{"Conversations", [][2]string{
		{"Enter", "Open conversation"},
		{"1-9", "Open the Nth conversation"},
		{"r", "Reload from the server"},
	}},
	{"Thread", [][2]string{
		{"j / k", "Move between messages"},
		{"i", "Focus composer"},
		{"Enter", "Reply to message"},
		{"e", "Edit message"},
		{"s", "Star / unstar"},
		{"p", "Pin / unpin"},
		{"d / D", "Delete for me / for everyone"},
		{"v", "Select for bulk actions"},
		{"c", "Copy selection"},
		{"g", "Conversation details"},
		{"l", "Show link as QR code"},
	}},
	{"Commands", [][2]string{
		{":chat <name>", "Open a conversation by name"},
		{":forward <name>, …", "Forward message or selection"},
		{":star", "Star the selection"},
		{":delete [everyone]", "Delete the selection"},
		{":group <name>: <member>, …", "Create a group"},
		{":leave", "Leave the open group"},
		{":refresh", "Reload from the server"},
		{":diag [clear]", "Show captured errors"},
		{":logout", "Sign out"},
		{":quit", "Quit"},
	}},
}

func (hv *HelpView) render() {
	kc := ui.Tag(hv.theme.MenuKeyColor)
	var b strings.Builder
	for _, sec := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", sec.title)
		for _, k := range sec.keys {
			fmt.Fprintf(&b, "  [%s]%-26s[-] %s\n", kc, tview.Escape(k[0]), k[1])
		}
	}
	_, _ = fmt.Fprint(hv, b.String())
}
