package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/notify"
	"github.com/matheus3301/chatline/internal/tui/ui"
)

// LinkView shows a conversation's deep link as a scannable QR code.
type LinkView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewLinkView creates a new link view.
func NewLinkView(theme *ui.Theme) *LinkView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation link ")
	tv.SetTitleColor(theme.TitleColor)

	return &LinkView{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements ui.Component.
func (lv *LinkView) Name() string { return "Link" }

// FocusTarget implements ui.Component.
func (lv *LinkView) FocusTarget() tview.Primitive { return lv }

// Show renders the link to ref under base.
func (lv *LinkView) Show(base string, ref model.PeerRef, name string) error {
	lv.Clear()
	link, err := notify.Link(base, notify.Target{Kind: ref.Kind, ID: ref.ID})
	if err != nil {
		return err
	}
	code, err := notify.QR(link)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(lv, "\n  Scan to open [::b]%s[-:-:-] on another device:\n\n%s\n  [%s]%s[-]",
		display(name), code, ui.Tag(lv.theme.MutedColor), tview.Escape(link))
	return nil
}
