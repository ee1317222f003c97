package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/chatline/internal/diag"
	"github.com/matheus3301/chatline/internal/tui/ui"
)

// DiagnosticsView lists failures the daemon captured.
type DiagnosticsView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewDiagnosticsView creates a new diagnostics view.
func NewDiagnosticsView(theme *ui.Theme) *DiagnosticsView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Diagnostics ")
	tv.SetTitleColor(theme.TitleColor)

	return &DiagnosticsView{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements ui.Component.
func (dv *DiagnosticsView) Name() string { return "Diagnostics" }

// FocusTarget implements ui.Component.
func (dv *DiagnosticsView) FocusTarget() tview.Primitive { return dv }

// Update renders entries, newest first.
func (dv *DiagnosticsView) Update(entries []diag.Entry) {
	dv.Clear()
	dv.SetTitle(fmt.Sprintf(" Diagnostics (%d) ", len(entries)))
	if len(entries) == 0 {
		_, _ = fmt.Fprintf(dv, "\n  [%s]Nothing captured.[-]", ui.Tag(dv.theme.MutedColor))
		return
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		kind := "error"
		if e.Panic {
			kind = "panic"
		}
		_, _ = fmt.Fprintf(dv, "\n [%s::b]%s[-:-:-] [%s]%s %s[-]\n %s\n",
			ui.Tag(dv.theme.FlashErrColor), kind,
			ui.Tag(dv.theme.MutedColor), e.Captured.Local().Format("15:04:05"), e.ID,
			tview.Escape(e.Message))
		if e.Stack != "" {
			_, _ = fmt.Fprintf(dv, "[%s]%s[-]\n", ui.Tag(dv.theme.MutedColor), tview.Escape(e.Stack))
		}
	}
	dv.ScrollToBeginning()
}
