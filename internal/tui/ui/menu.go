package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// menuRows is how many hints fit in one column of the header.
const menuRows = 6

// Menu displays keyboard shortcut hints in columns.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint panel.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders hints top to bottom, then left to right.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, m.render(hints))
}

func (m *Menu) render(hints []MenuHint) string {
	if len(hints) == 0 {
		return ""
	}
	width := 0
	for _, h := range hints {
		width = max(width, len(h.Key)+len(h.Description)+3)
	}
	keyColor := Tag(m.theme.MenuKeyColor)
	lines := make([]strings.Builder, min(menuRows, len(hints)))
	for i, h := range hints {
		line := &lines[i%menuRows]
		cell := fmt.Sprintf("<%s> %s", h.Key, h.Description)
		pad := strings.Repeat(" ", width-len(cell)+2)
		fmt.Fprintf(line, "[%s::b]<%s>[-:-:-] %s%s", keyColor, tview.Escape(h.Key), h.Description, pad)
	}
	out := make([]string, len(lines))
	for i := range lines {
		out[i] = strings.TrimRight(lines[i].String(), " ")
	}
	return strings.Join(out, "\n")
}
