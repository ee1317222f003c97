package views

import (
	"strings"
	"time"
)

// now is replaced in tests.
var now = time.Now

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	n := now().Local()
	if t.Year() == n.Year() && t.YearDay() == n.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
