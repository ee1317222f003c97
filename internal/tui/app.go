package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/chatline/internal/control"
	chat "github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/tui/keys"
	"github.com/matheus3301/chatline/internal/tui/model"
	"github.com/matheus3301/chatline/internal/tui/ui"
	"github.com/matheus3301/chatline/internal/tui/views"
)

// View names used as key binding scopes.
const (
	viewAuth          = "auth"
	viewConversations = "conversations"
	viewThread        = "thread"
	viewDetails       = "details"
	viewHelp          = "help"
	viewLink          = "link"
	viewDiagnostics   = "diagnostics"
)

const (
	headerHeight = 6
	promptHeight = 3
	rewatchDelay = 2 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	vm       *model.ViewModel
	registry *keys.Registry
	profile  string
	appURL   string

	root   *tview.Flex
	info   *ui.ProfileInfo
	menu   *ui.Menu
	crumbs *ui.Crumbs
	pages  *ui.Pages
	flash  *ui.FlashBar
	prompt *ui.Prompt

	auth    *views.AuthView
	convs   *views.ConversationList
	thread  *views.MessageThread
	details *views.ConversationInfo
	help    *views.HelpView
	link    *views.LinkView
	diags   *views.DiagnosticsView

	screen  tcell.Screen
	editing string // message id under edit in the prompt

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI for the daemon serving profile. appURL is the web
// client base used for conversation links.
func NewApp(d model.Daemon, profile, appURL string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		vm:       model.NewViewModel(d),
		registry: keys.NewRegistry(),
		profile:  profile,
		appURL:   appURL,
		info:     ui.NewProfileInfo(theme),
		menu:     ui.NewMenu(theme),
		crumbs:   ui.NewCrumbs(theme),
		pages:    ui.NewPages(),
		flash:    ui.NewFlashBar(theme),
		prompt:   ui.NewPrompt(theme),
		auth:     views.NewAuthView(theme),
		convs:    views.NewConversationList(theme),
		thread:   views.NewMessageThread(theme),
		details:  views.NewConversationInfo(theme),
		help:     views.NewHelpView(theme),
		link:     views.NewLinkView(theme),
		diags:    views.NewDiagnosticsView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	a.pages.Reset(a.auth)

	return a
}

func (a *App) setupBindings() {
	r := a.registry

	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: ':', Description: "Command", Handler: func() {
		a.showPrompt(ui.PromptCommand, "")
	}})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: '?', Description: "Help", Handler: func() {
		a.pages.Push(a.help)
	}})
	r.AddGlobal(&keys.Action{Key: tcell.KeyEscape, Label: "Esc", Description: "Back", Handler: a.back})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Handler: a.Stop})

	r.AddView(viewConversations, &keys.Action{Key: tcell.KeyEnter, Label: "Enter", Description: "Open", Handler: func() {
		if ref, ok := a.convs.SelectedPeer(); ok {
			a.open(ref)
		}
	}})
	r.AddView(viewConversations, &keys.Action{Key: tcell.KeyRune, Rune: '/', Description: "Filter", Handler: func() {
		a.showPrompt(ui.PromptFilter, a.convs.Filter())
	}})
	r.AddView(viewConversations, &keys.Action{Key: tcell.KeyRune, Rune: 'r', Description: "Reload", Handler: func() {
		a.run(func(ctx context.Context) error { return a.vm.LoadLists(ctx, true) }, nil)
	}})
	for n := 1; n <= 9; n++ {
		r.AddView(viewConversations, &keys.Action{
			Key: tcell.KeyRune, Rune: rune('0' + n), Label: "1-9", Description: "Open Nth",
			Hidden:  n > 1,
			Handler: func() { a.openIndex(n) },
		})
	}

	r.AddView(viewThread, &keys.Action{Key: tcell.KeyRune, Rune: 'i', Description: "Compose", Handler: func() {
		a.app.SetFocus(a.thread.Composer())
	}})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyEnter, Label: "Enter", Description: "Reply", Handler: a.reply})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyRune, Rune: 'e', Description: "Edit", Handler: a.edit})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyRune, Rune: 's', Description: "Star", Handler: a.star})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyRune, Rune: 'p', Description: "Pin", Handler: a.pin})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyRune, Rune: 'd', Description: "Delete for me", Handler: func() {
		a.remove(chat.ScopeMe)
	}})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyRune, Rune: 'D', Description: "Delete for all", Handler: func() {
		a.remove(chat.ScopeEveryone)
	}})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyRune, Rune: 'v', Description: "Select", Handler: a.toggleSelect})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyRune, Rune: 'c', Description: "Copy", Handler: a.copy})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyRune, Rune: 'g', Description: "Details", Handler: a.showDetails})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyRune, Rune: 'l', Description: "Link", Handler: a.showLink})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyRune, Rune: 'j', Hidden: true, Handler: func() { a.thread.MoveCursor(1) }})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyDown, Hidden: true, Handler: func() { a.thread.MoveCursor(1) }})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyRune, Rune: 'k', Hidden: true, Handler: func() { a.thread.MoveCursor(-1) }})
	r.AddView(viewThread, &keys.Action{Key: tcell.KeyUp, Hidden: true, Handler: func() { a.thread.MoveCursor(-1) }})

	r.AddView(viewDiagnostics, &keys.Action{Key: tcell.KeyRune, Rune: 'x', Description: "Clear all", Handler: func() {
		a.loadDiagnostics(true)
	}})
}

func (a *App) setupCallbacks() {
	a.pages.SetOnChange(func(top ui.Component, crumbs []string) {
		a.crumbs.Update(crumbs)
		a.menu.Update(a.registry.Hints(a.viewOf(top)))
		if a.promptHidden() {
			a.app.SetFocus(top.FocusTarget())
		}
	})

	a.auth.SetOnSubmit(func(c views.Credentials) {
		a.auth.SetBusy(true)
		go func() {
			var err error
			if c.Mode == views.ModeSignup {
				err = a.vm.Signup(a.ctx, c.FullName, c.Email, c.Password)
			} else {
				err = a.vm.Login(a.ctx, c.Email, c.Password)
			}
			a.app.QueueUpdateDraw(func() {
				a.auth.SetBusy(false)
				if err != nil {
					a.auth.ShowError(control.ErrorMessage(err))
					return
				}
				a.auth.ShowMessage("")
				a.render()
			})
		}()
	})

	a.thread.SetOnSend(func(text, replyTo string) {
		a.run(func(ctx context.Context) error { return a.vm.Send(ctx, text, replyTo) }, nil)
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.convs.SetFilter(text)
		case ui.PromptEdit:
			id := a.editing
			a.editing = ""
			a.run(func(ctx context.Context) error { return a.vm.Edit(ctx, id, text) }, nil)
		}
	})
	a.prompt.SetOnCancel(func() {
		a.editing = ""
		a.hidePrompt()
	})
}

func (a *App) setupLayout() {
	header := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.info, 0, 1, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(ui.NewLogo(a.theme), 16, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerHeight, 0, false).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.flash, 1, 0, false).
		AddItem(a.prompt, 0, 0, false)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
	a.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		a.screen = screen
		return false
	})
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	focused := a.app.GetFocus()
	if focused == a.prompt.InputField {
		return ev
	}
	if focused == a.thread.Composer() {
		if ev.Key() == tcell.KeyEscape {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		return ev
	}
	// The auth form owns every key except the global escape hatch.
	if a.pages.Current() == ui.Component(a.auth) {
		return ev
	}
	if a.registry.HandleEvent(a.viewOf(a.pages.Current()), ev) {
		return nil
	}
	return ev
}

func (a *App) viewOf(c ui.Component) string {
	switch c {
	case ui.Component(a.auth):
		return viewAuth
	case ui.Component(a.convs):
		return viewConversations
	case ui.Component(a.thread):
		return viewThread
	case ui.Component(a.details):
		return viewDetails
	case ui.Component(a.help):
		return viewHelp
	case ui.Component(a.link):
		return viewLink
	case ui.Component(a.diags):
		return viewDiagnostics
	}
	return ""
}

func (a *App) showPrompt(mode ui.PromptMode, initial string) {
	a.prompt.Activate(mode, initial)
	a.root.ResizeItem(a.prompt, promptHeight, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	if top := a.pages.Current(); top != nil {
		a.app.SetFocus(top.FocusTarget())
	}
}

func (a *App) promptHidden() bool {
	return a.app.GetFocus() != a.prompt.InputField
}

// back cancels the innermost pending state: a reply, then a bulk selection,
// then the page on top.
func (a *App) back() {
	if a.pages.Current() == ui.Component(a.thread) {
		if a.thread.ReplyTo() != "" {
			a.thread.ClearReply()
			return
		}
		if len(a.vm.Selected()) > 0 {
			a.run(a.vm.ClearSelection, nil)
			return
		}
	}
	if a.pages.Current() == ui.Component(a.convs) && a.convs.Filter() != "" {
		a.convs.SetFilter("")
		return
	}
	a.pages.Pop()
}

// run executes fn off the UI goroutine, then redraws. A failure is flashed;
// on success done runs on the UI goroutine.
func (a *App) run(fn func(ctx context.Context) error, done func()) {
	go func() {
		err := fn(a.ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.vm.Flash.Err(control.ErrorMessage(err))
			} else if done != nil {
				done()
			}
			a.render()
		})
	}()
}

func (a *App) open(ref chat.PeerRef) {
	a.run(func(ctx context.Context) error { return a.vm.Open(ctx, ref) }, func() {
		a.render()
		a.pages.Reset(a.convs)
		a.pages.Push(a.thread)
	})
}

func (a *App) openIndex(n int) {
	if ref, ok := a.convs.PeerByIndex(n); ok {
		a.open(ref)
	}
}

func (a *App) reply() {
	id := a.thread.CursorID()
	if id == "" {
		return
	}
	a.thread.SetReplyTo(id)
	a.app.SetFocus(a.thread.Composer())
}

func (a *App) edit() {
	m, ok := a.vm.Message(a.thread.CursorID())
	if !ok {
		return
	}
	if m.SenderID != a.vm.Self() || m.DeletedForEveryone {
		a.vm.Flash.Err("Only your own messages can be edited")
		a.renderChrome()
		return
	}
	a.editing = m.ID
	a.showPrompt(ui.PromptEdit, m.Text)
}

func (a *App) star() {
	if len(a.vm.Selected()) > 0 {
		a.bulkStar()
		return
	}
	id := a.thread.CursorID()
	if id == "" {
		return
	}
	a.run(func(ctx context.Context) error {
		_, err := a.vm.ToggleStar(ctx, id)
		return err
	}, nil)
}

func (a *App) pin() {
	id := a.thread.CursorID()
	if id == "" {
		return
	}
	a.run(func(ctx context.Context) error {
		on, err := a.vm.TogglePin(ctx, id)
		if err == nil && on {
			a.vm.Flash.Info("Message pinned")
		}
		return err
	}, nil)
}

func (a *App) remove(scope chat.DeleteScope) {
	if len(a.vm.Selected()) > 0 {
		a.bulkDelete(scope)
		return
	}
	id := a.thread.CursorID()
	if id == "" {
		return
	}
	a.run(func(ctx context.Context) error { return a.vm.Delete(ctx, id, scope) }, nil)
}

func (a *App) toggleSelect() {
	id := a.thread.CursorID()
	if id == "" {
		return
	}
	a.run(func(ctx context.Context) error { return a.vm.ToggleSelect(ctx, id) }, nil)
}

func (a *App) copy() {
	if len(a.vm.Selected()) == 0 {
		a.toClipboard(a.thread.CursorText())
		return
	}
	var text string
	a.run(func(ctx context.Context) error {
		var err error
		text, err = a.vm.BulkCopy(ctx)
		return err
	}, func() { a.toClipboard(text) })
}

func (a *App) toClipboard(text string) {
	if text == "" {
		return
	}
	if a.screen != nil {
		a.screen.SetClipboard([]byte(text))
	}
	a.vm.Flash.Info(fmt.Sprintf("Copied %d characters", len([]rune(text))))
	a.renderChrome()
}

func (a *App) bulkStar() {
	a.run(func(ctx context.Context) error {
		resp, err := a.vm.BulkStar(ctx)
		if err == nil {
			a.flashBulk("Starred", resp)
		}
		return err
	}, nil)
}

func (a *App) bulkDelete(scope chat.DeleteScope) {
	a.run(func(ctx context.Context) error {
		resp, err := a.vm.BulkDelete(ctx, scope)
		if err == nil {
			a.flashBulk("Deleted", resp)
		}
		return err
	}, nil)
}

func (a *App) flashBulk(verb string, resp *control.BulkResponse) {
	if resp.Failed > 0 {
		a.vm.Flash.Err(fmt.Sprintf("%s %d, %d failed", verb, resp.Done, resp.Failed))
		return
	}
	a.vm.Flash.Info(fmt.Sprintf("%s %d message(s)", verb, resp.Done))
}

func (a *App) showDetails() {
	ref, ok := a.vm.ActivePeer()
	if !ok {
		return
	}
	switch ref.Kind {
	case chat.KindGroup:
		g, ok := a.vm.Group(ref.ID)
		if !ok {
			return
		}
		a.details.ShowGroup(g, a.vm.Self(), a.vm.NameOf)
	default:
		c, ok := a.vm.Contact(ref.ID)
		if !ok {
			return
		}
		a.details.ShowContact(c)
	}
	a.pages.Push(a.details)
}

func (a *App) showLink() {
	ref, ok := a.vm.ActivePeer()
	if !ok {
		return
	}
	if err := a.link.Show(a.appURL, ref, a.thread.Name()); err != nil {
		a.vm.Flash.Err(err.Error())
		a.renderChrome()
		return
	}
	a.pages.Push(a.link)
}

func (a *App) loadDiagnostics(clear bool) {
	var resp *control.DiagnosticsResponse
	a.run(func(ctx context.Context) error {
		var err error
		resp, err = a.vm.Diagnostics(ctx, clear)
		return err
	}, func() {
		a.diags.Update(resp.Entries)
		a.pages.Push(a.diags)
	})
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "quit":
		a.Stop()
	case "help":
		a.pages.Push(a.help)
	case "chat":
		ref, ok := a.vm.FindPeer(cmd.Args)
		if !ok {
			a.flashErr(fmt.Sprintf("No conversation named %q", cmd.Args))
			return
		}
		a.open(ref)
	case "forward":
		a.forward(cmd.List())
	case "star":
		a.bulkStar()
	case "delete":
		scope := chat.ScopeMe
		if cmd.Args == "everyone" {
			scope = chat.ScopeEveryone
		}
		a.bulkDelete(scope)
	case "group":
		a.createGroup(cmd.GroupSpec())
	case "leave":
		a.run(a.vm.LeaveGroup, func() {
			a.vm.Flash.Info("Left the group")
			a.pages.Reset(a.convs)
		})
	case "diag":
		a.loadDiagnostics(cmd.Args == "clear")
	case "logout":
		a.run(a.vm.Logout, nil)
	case "refresh":
		a.run(func(ctx context.Context) error { return a.vm.LoadLists(ctx, true) }, nil)
	case "":
	default:
		a.flashErr("Unknown command: " + cmd.Name)
	}
}

func (a *App) forward(names []string) {
	if len(names) == 0 {
		a.flashErr("Usage: :forward <name>, …")
		return
	}
	recipients := make([]chat.PeerRef, 0, len(names))
	for _, name := range names {
		ref, ok := a.vm.FindPeer(name)
		if !ok {
			a.flashErr(fmt.Sprintf("No conversation named %q", name))
			return
		}
		recipients = append(recipients, ref)
	}
	var ids []string
	if len(a.vm.Selected()) == 0 {
		id := a.thread.CursorID()
		if id == "" {
			a.flashErr("Nothing to forward")
			return
		}
		ids = []string{id}
	}
	a.run(func(ctx context.Context) error {
		resp, err := a.vm.Forward(ctx, ids, recipients)
		if err == nil {
			a.flashBulk("Forwarded", resp)
		}
		return err
	}, nil)
}

func (a *App) createGroup(name string, members []string) {
	if name == "" {
		a.flashErr("Usage: :group <name>: <member>, …")
		return
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ref, ok := a.vm.FindPeer(m)
		if !ok || ref.Kind != chat.KindUser {
			a.flashErr(fmt.Sprintf("No contact named %q", m))
			return
		}
		ids = append(ids, ref.ID)
	}
	var g chat.Group
	a.run(func(ctx context.Context) error {
		var err error
		g, err = a.vm.CreateGroup(ctx, name, ids)
		return err
	}, func() { a.open(g.Ref()) })
}

func (a *App) flashErr(msg string) {
	a.vm.Flash.Err(msg)
	a.renderChrome()
}

// render copies the cached state into every view. It runs on the UI
// goroutine.
func (a *App) render() {
	snap := a.vm.Snapshot()
	authed := a.vm.Authenticated()
	onAuth := a.pages.Current() == ui.Component(a.auth)
	switch {
	case !authed && !onAuth && snap.Status != nil:
		a.pages.Reset(a.auth)
	case authed && onAuth:
		a.pages.Reset(a.convs)
	}

	a.convs.Update(views.Conversations(snap.Chats, snap.Groups))
	a.thread.Update(snap.Thread, a.vm.NameOf)
	if snap.Thread == nil && a.pages.Current() == ui.Component(a.thread) {
		a.pages.Reset(a.convs)
	}
	a.renderChrome()
}

// renderChrome refreshes the header, crumbs and flash bar.
func (a *App) renderChrome() {
	snap := a.vm.Snapshot()
	data := &ui.ProfileData{
		Profile: a.profile,
		Chats:   len(snap.Chats),
		Groups:  len(snap.Groups),
	}
	if s := snap.Status; s != nil {
		data.State = s.State
		data.Socket = s.Socket
		data.Uptime = time.Duration(s.UptimeMs) * time.Millisecond
		if s.User != nil {
			data.User = s.User.FullName
			if data.User == "" {
				data.User = s.User.Email
			}
		}
	}
	a.info.Update(data)
	a.crumbs.Update(a.pages.Crumbs())
	a.flash.Update(a.vm.Flash.Current())
}

// Run loads the session, starts following daemon events and blocks until
// the user quits.
func (a *App) Run() error {
	go func() {
		err := a.vm.LoadStatus(a.ctx)
		if err == nil && a.vm.Authenticated() {
			err = a.vm.LoadLists(a.ctx, false)
		}
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.vm.Flash.Err(control.ErrorMessage(err))
			}
			a.render()
		})
	}()
	go a.watch()
	go a.refreshLoop()

	return a.app.Run()
}

// watch follows daemon events, re-subscribing after the stream drops.
func (a *App) watch() {
	for {
		err := a.vm.Watch(a.ctx)
		if a.ctx.Err() != nil {
			return
		}
		if err != nil {
			a.vm.Flash.Err("Lost the daemon event stream: " + control.ErrorMessage(err))
		}
		select {
		case <-a.ctx.Done():
			return
		case <-time.After(rewatchDelay):
		}
		_ = a.vm.LoadStatus(a.ctx)
	}
}

// refreshLoop redraws when the view model changes, and once a second so
// flash messages expire.
func (a *App) refreshLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.vm.RefreshCh():
			a.app.QueueUpdateDraw(a.render)
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.renderChrome)
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
