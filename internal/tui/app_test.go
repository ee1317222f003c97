package tui

import (
	"context"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/chatline/internal/control"
	chat "github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/status"
	"github.com/matheus3301/chatline/internal/tui/model"
	"github.com/matheus3301/chatline/internal/tui/ui"
)

// fakeDaemon answers the reads the shell performs on its own. Calls it does
// not override panic through the nil embedded interface.
type fakeDaemon struct {
	model.Daemon
	status *control.StatusResponse
}

func (f *fakeDaemon) Status(context.Context) (*control.StatusResponse, error) {
	return f.status, nil
}

func (f *fakeDaemon) Chats(context.Context, bool) ([]chat.Chat, error) {
	return []chat.Chat{{Counterpart: chat.Contact{User: chat.User{ID: "u1", FullName: "Ana"}}}}, nil
}

func (f *fakeDaemon) Groups(context.Context, bool) ([]chat.Group, error) {
	return []chat.Group{{ID: "g1", Name: "Team"}}, nil
}

func (f *fakeDaemon) Contacts(context.Context, bool) ([]chat.Contact, error) {
	return nil, nil
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func newTestApp(t *testing.T, state status.State) (*App, *fakeDaemon) {
	t.Helper()
	d := &fakeDaemon{status: &control.StatusResponse{Profile: "test", State: string(state)}}
	if state == status.Authenticated {
		d.status.User = &chat.User{ID: "me", FullName: "Me"}
	}
	a := NewApp(d, "test", "http://localhost:5173/")
	t.Cleanup(a.cancel)

	ctx := context.Background()
	require.NoError(t, a.vm.LoadStatus(ctx))
	if state == status.Authenticated {
		require.NoError(t, a.vm.LoadLists(ctx, false))
	}
	a.render()
	return a, d
}

func TestAppStartsOnAuthWhenSignedOut(t *testing.T) {
	a, _ := newTestApp(t, status.Unauthenticated)
	assert.Equal(t, ui.Component(a.auth), a.pages.Current())

	// Keys belong to the form while signing in.
	assert.NotNil(t, a.handleKey(key('q')))
}

func TestAppShowsConversationsWhenSignedIn(t *testing.T) {
	a, _ := newTestApp(t, status.Authenticated)
	assert.Equal(t, ui.Component(a.convs), a.pages.Current())
	assert.Len(t, a.convs.Visible(), 2)
	assert.Equal(t, []string{"Conversations"}, a.pages.Crumbs())
}

func TestAppSignOutReturnsToAuth(t *testing.T) {
	a, d := newTestApp(t, status.Authenticated)
	d.status = &control.StatusResponse{Profile: "test", State: string(status.Unauthenticated)}
	require.NoError(t, a.vm.LoadStatus(context.Background()))
	a.render()
	assert.Equal(t, ui.Component(a.auth), a.pages.Current())
}

func TestAppHelpAndBack(t *testing.T) {
	a, _ := newTestApp(t, status.Authenticated)

	assert.Nil(t, a.handleKey(key('?')))
	assert.Equal(t, ui.Component(a.help), a.pages.Current())

	assert.Nil(t, a.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
	assert.Equal(t, ui.Component(a.convs), a.pages.Current())
}

func TestAppFilterPrompt(t *testing.T) {
	a, _ := newTestApp(t, status.Authenticated)

	assert.Nil(t, a.handleKey(key('/')))
	assert.Equal(t, ui.PromptFilter, a.prompt.Mode())
	assert.False(t, a.promptHidden())

	// Typing goes to the prompt, not to the bindings.
	assert.NotNil(t, a.handleKey(key('q')))

	a.prompt.SetText("team")
	a.prompt.InputHandler()(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), func(tview.Primitive) {})
	assert.True(t, a.promptHidden())
	assert.Equal(t, "team", a.convs.Filter())
	assert.Len(t, a.convs.Visible(), 1)

	// Esc clears the filter before leaving the page.
	a.back()
	assert.Empty(t, a.convs.Filter())
	assert.Equal(t, ui.Component(a.convs), a.pages.Current())
}

func TestAppUnknownCommand(t *testing.T) {
	a, _ := newTestApp(t, status.Authenticated)
	a.runCommand(ParseCommand("frobnicate"))
	msg := a.vm.Flash.Current()
	require.NotNil(t, msg)
	assert.Equal(t, "Unknown command: frobnicate", msg.Text)

	a.runCommand(ParseCommand("chat nobody"))
	assert.Contains(t, a.vm.Flash.Current().Text, `"nobody"`)
}

func TestAppMenuFollowsView(t *testing.T) {
	a, _ := newTestApp(t, status.Authenticated)
	hints := a.registry.Hints(a.viewOf(a.pages.Current()))
	require.NotEmpty(t, hints)
	assert.Equal(t, "Enter", hints[0].Key)

	var labels []string
	for _, h := range hints {
		labels = append(labels, h.Key)
	}
	assert.Contains(t, labels, "1-9")
	assert.Contains(t, labels, "q")
}
