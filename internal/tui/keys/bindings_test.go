package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"

	"github.com/matheus3301/chatline/internal/tui/ui"
)

func TestViewBindingWinsOverGlobal(t *testing.T) {
	r := NewRegistry()
	var got string
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 's', Description: "Search", Handler: func() { got = "global" }})
	r.AddView("thread", &Action{Key: tcell.KeyRune, Rune: 's', Description: "Star", Handler: func() { got = "view" }})

	ev := tcell.NewEventKey(tcell.KeyRune, 's', tcell.ModNone)
	assert.True(t, r.HandleEvent("thread", ev))
	assert.Equal(t, "view", got)

	assert.True(t, r.HandleEvent("chats", ev))
	assert.Equal(t, "global", got)

	assert.False(t, r.HandleEvent("chats", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)))
}

func TestSpecialKeys(t *testing.T) {
	r := NewRegistry()
	ran := false
	r.AddView("chats", &Action{Key: tcell.KeyEnter, Description: "Open", Handler: func() { ran = true }})

	assert.True(t, r.HandleEvent("chats", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)))
	assert.True(t, ran)
}

func TestHintsKeepOrder(t *testing.T) {
	r := NewRegistry()
	noop := func() {}
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Handler: noop})
	r.AddView("thread", &Action{Key: tcell.KeyRune, Rune: 's', Description: "Star", Handler: noop})
	r.AddView("thread", &Action{Key: tcell.KeyRune, Rune: 'p', Description: "Pin", Handler: noop})
	r.AddView("thread", &Action{Key: tcell.KeyRune, Rune: 'j', Description: "Down", Handler: noop, Hidden: true})
	r.AddView("thread", &Action{Key: tcell.KeyEnter, Label: "Enter", Description: "Reply", Handler: noop})

	assert.Equal(t, []ui.MenuHint{
		{Key: "s", Description: "Star"},
		{Key: "p", Description: "Pin"},
		{Key: "Enter", Description: "Reply"},
		{Key: "q", Description: "Quit"},
	}, r.Hints("thread"))
}
