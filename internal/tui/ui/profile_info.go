package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// ProfileData holds what the header shows about the connected daemon.
type ProfileData struct {
	Profile string
	User    string
	State   string
	Socket  string
	Chats   int
	Groups  int
	Uptime  time.Duration
}

// ProfileInfo displays profile metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates a new profile info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the profile info.
func (pi *ProfileInfo) Update(data *ProfileData) {
	pi.Clear()
	if data == nil {
		return
	}

	user := data.User
	if user == "" {
		user = "-"
	}
	rows := []struct {
		label string
		value string
	}{
		{"Profile:", data.Profile},
		{"User:", user},
		{"Session:", data.State},
		{"Socket:", data.Socket},
		{"Convos:", fmt.Sprintf("%d chats, %d groups", data.Chats, data.Groups)},
		{"Uptime:", formatDuration(data.Uptime)},
	}
	fg, ct := Tag(pi.theme.FgColor), Tag(pi.theme.CounterColor)
	for i, r := range rows {
		if i > 0 {
			_, _ = fmt.Fprint(pi, "\n")
		}
		_, _ = fmt.Fprintf(pi, "[%s::b]%-9s[-:-:-][%s]%s[-]", fg, r.label, ct, tview.Escape(r.value))
	}
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
