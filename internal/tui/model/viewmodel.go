// Package model keeps the TUI's copy of daemon state and turns user intent
// into control calls.
package model

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/control"
	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/state"
	"github.com/matheus3301/chatline/internal/status"
	"github.com/matheus3301/chatline/internal/tui/ui"
)

// Daemon is the part of the control client the TUI uses.
type Daemon interface {
	Status(ctx context.Context) (*control.StatusResponse, error)
	Login(ctx context.Context, email, password string) (model.User, error)
	Signup(ctx context.Context, fullName, email, password string) (model.User, error)
	Logout(ctx context.Context) error
	Chats(ctx context.Context, refresh bool) ([]model.Chat, error)
	Groups(ctx context.Context, refresh bool) ([]model.Group, error)
	Contacts(ctx context.Context, refresh bool) ([]model.Contact, error)
	Messages(ctx context.Context, ref *model.PeerRef) (*control.MessagesResponse, error)
	Send(ctx context.Context, req *control.SendRequest) (model.Message, error)
	Edit(ctx context.Context, ref model.PeerRef, id, text string) (model.Message, error)
	Delete(ctx context.Context, ref model.PeerRef, id string, scope model.DeleteScope) error
	Star(ctx context.Context, ref model.PeerRef, id string) (bool, error)
	Pin(ctx context.Context, ref model.PeerRef, id string) (bool, error)
	Forward(ctx context.Context, ids []string, recipients []model.PeerRef) (*control.BulkResponse, error)
	Select(ctx context.Context, req *control.SelectRequest) (*control.SelectResponse, error)
	BulkStar(ctx context.Context, ids []string) (*control.BulkResponse, error)
	BulkDelete(ctx context.Context, ids []string, scope model.DeleteScope) (*control.BulkResponse, error)
	BulkCopy(ctx context.Context, ids []string) (string, error)
	CreateGroup(ctx context.Context, in api.GroupInput) (model.Group, error)
	LeaveGroup(ctx context.Context, groupID string) error
	Diagnostics(ctx context.Context, req *control.DiagnosticsRequest) (*control.DiagnosticsResponse, error)
	Watch(ctx context.Context, prefix string, fn func(control.WatchEvent)) error
}

// ViewModel caches daemon state and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	daemon   Daemon
	Status   *control.StatusResponse
	Chats    []model.Chat
	Groups   []model.Group
	Contacts []model.Contact
	Thread   *control.MessagesResponse
	Flash    *ui.FlashModel

	refreshCh chan struct{}
}

// NewViewModel creates a view model backed by d.
func NewViewModel(d Daemon) *ViewModel {
	return &ViewModel{
		daemon:    d,
		Flash:     ui.NewFlashModel(),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh signals that cached state changed and the UI should redraw.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Snapshot is a consistent copy of the cached state for rendering.
type Snapshot struct {
	Status   *control.StatusResponse
	Chats    []model.Chat
	Groups   []model.Group
	Contacts []model.Contact
	Thread   *control.MessagesResponse
}

// Snapshot returns the cached state. Slices are shared; callers must not
// modify them.
func (vm *ViewModel) Snapshot() Snapshot {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return Snapshot{
		Status:   vm.Status,
		Chats:    vm.Chats,
		Groups:   vm.Groups,
		Contacts: vm.Contacts,
		Thread:   vm.Thread,
	}
}

// Contact returns the cached contact with id.
func (vm *ViewModel) Contact(id string) (model.Contact, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.Contacts {
		if c.ID == id {
			return c, true
		}
	}
	for _, c := range vm.Chats {
		if c.Counterpart.ID == id {
			return c.Counterpart, true
		}
	}
	return model.Contact{}, false
}

// LoadStatus fetches the session status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.daemon.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Status = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadLists fetches chats, groups and contacts. refresh asks the daemon to
// reload them from the server first.
func (vm *ViewModel) LoadLists(ctx context.Context, refresh bool) error {
	chats, err := vm.daemon.Chats(ctx, refresh)
	if err != nil {
		return err
	}
	groups, err := vm.daemon.Groups(ctx, refresh)
	if err != nil {
		return err
	}
	contacts, err := vm.daemon.Contacts(ctx, refresh)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Chats, vm.Groups, vm.Contacts = chats, groups, contacts
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Open makes ref the open conversation and loads its timeline.
func (vm *ViewModel) Open(ctx context.Context, ref model.PeerRef) error {
	resp, err := vm.daemon.Messages(ctx, &ref)
	if err != nil {
		return err
	}
	vm.setThread(resp)
	return nil
}

// LoadThread re-reads the open conversation. It is a no-op when none is open.
func (vm *ViewModel) LoadThread(ctx context.Context) error {
	if _, ok := vm.ActivePeer(); !ok {
		return nil
	}
	resp, err := vm.daemon.Messages(ctx, nil)
	if err != nil {
		return err
	}
	vm.setThread(resp)
	return nil
}

func (vm *ViewModel) setThread(resp *control.MessagesResponse) {
	vm.mu.Lock()
	vm.Thread = resp
	vm.mu.Unlock()
	vm.signalRefresh()
}

// ActivePeer returns the open conversation.
func (vm *ViewModel) ActivePeer() (model.PeerRef, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.Thread == nil || vm.Thread.Peer == nil {
		return model.PeerRef{}, false
	}
	return *vm.Thread.Peer, true
}

// Authenticated reports whether the daemon holds a signed-in session.
func (vm *ViewModel) Authenticated() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Status != nil && vm.Status.State == string(status.Authenticated)
}

// Self returns the signed-in user's id.
func (vm *ViewModel) Self() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.Status == nil || vm.Status.User == nil {
		return ""
	}
	return vm.Status.User.ID
}

// NameOf resolves a user id to a display name.
func (vm *ViewModel) NameOf(id string) string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.Status != nil && vm.Status.User != nil && vm.Status.User.ID == id {
		return "You"
	}
	for _, c := range vm.Contacts {
		if c.ID == id {
			return c.DisplayName()
		}
	}
	for _, c := range vm.Chats {
		if c.Counterpart.ID == id {
			return c.Counterpart.DisplayName()
		}
	}
	return id
}

// Group returns the cached group with id.
func (vm *ViewModel) Group(id string) (model.Group, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, g := range vm.Groups {
		if g.ID == id {
			return g.Clone(), true
		}
	}
	return model.Group{}, false
}

// FindPeer resolves a name typed by the user to a conversation. Exact
// matches win over prefix matches.
func (vm *ViewModel) FindPeer(name string) (model.PeerRef, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return model.PeerRef{}, false
	}
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	var peers []model.Peer
	for _, c := range vm.Contacts {
		peers = append(peers, c)
	}
	for _, c := range vm.Chats {
		peers = append(peers, c.Counterpart)
	}
	for _, g := range vm.Groups {
		peers = append(peers, g)
	}
	for _, p := range peers {
		if strings.ToLower(p.DisplayName()) == name {
			return p.Ref(), true
		}
	}
	for _, p := range peers {
		if strings.HasPrefix(strings.ToLower(p.DisplayName()), name) {
			return p.Ref(), true
		}
	}
	return model.PeerRef{}, false
}

// Message returns the message with id in the open timeline.
func (vm *ViewModel) Message(id string) (model.Message, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.Thread == nil {
		return model.Message{}, false
	}
	for _, it := range vm.Thread.Items {
		if it.Message != nil && it.Message.ID == id {
			return *it.Message, true
		}
	}
	return model.Message{}, false
}

// Selected returns the bulk selection of the open conversation.
func (vm *ViewModel) Selected() []string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.Thread == nil {
		return nil
	}
	return slices.Clone(vm.Thread.Selected)
}

// Login signs in and loads the lists.
func (vm *ViewModel) Login(ctx context.Context, email, password string) error {
	if _, err := vm.daemon.Login(ctx, email, password); err != nil {
		return err
	}
	return vm.afterSignIn(ctx)
}

// Signup creates an account, signs in and loads the lists.
func (vm *ViewModel) Signup(ctx context.Context, fullName, email, password string) error {
	if _, err := vm.daemon.Signup(ctx, fullName, email, password); err != nil {
		return err
	}
	return vm.afterSignIn(ctx)
}

func (vm *ViewModel) afterSignIn(ctx context.Context) error {
	if err := vm.LoadStatus(ctx); err != nil {
		return err
	}
	return vm.LoadLists(ctx, false)
}

// Logout signs out and drops every cached entity.
func (vm *ViewModel) Logout(ctx context.Context) error {
	err := vm.daemon.Logout(ctx)
	vm.mu.Lock()
	vm.Chats, vm.Groups, vm.Contacts, vm.Thread = nil, nil, nil, nil
	vm.mu.Unlock()
	if serr := vm.LoadStatus(ctx); serr != nil && err == nil {
		err = serr
	}
	return err
}

// Send posts text, optionally quoting replyTo, to the open conversation.
func (vm *ViewModel) Send(ctx context.Context, text, replyTo string) error {
	ref, ok := vm.ActivePeer()
	if !ok {
		return errNoConversation
	}
	if _, err := vm.daemon.Send(ctx, &control.SendRequest{Peer: ref, Text: text, ReplyTo: replyTo}); err != nil {
		return err
	}
	return vm.LoadThread(ctx)
}

// Edit replaces the text of message id.
func (vm *ViewModel) Edit(ctx context.Context, id, text string) error {
	ref, ok := vm.ActivePeer()
	if !ok {
		return errNoConversation
	}
	if _, err := vm.daemon.Edit(ctx, ref, id, text); err != nil {
		return err
	}
	return vm.LoadThread(ctx)
}

// Delete removes message id with scope.
func (vm *ViewModel) Delete(ctx context.Context, id string, scope model.DeleteScope) error {
	ref, ok := vm.ActivePeer()
	if !ok {
		return errNoConversation
	}
	if err := vm.daemon.Delete(ctx, ref, id, scope); err != nil {
		return err
	}
	return vm.LoadThread(ctx)
}

// ToggleStar flips the star on message id and reports the new state.
func (vm *ViewModel) ToggleStar(ctx context.Context, id string) (bool, error) {
	return vm.toggle(ctx, id, vm.daemon.Star)
}

// TogglePin flips the pin on message id and reports the new state.
func (vm *ViewModel) TogglePin(ctx context.Context, id string) (bool, error) {
	return vm.toggle(ctx, id, vm.daemon.Pin)
}

func (vm *ViewModel) toggle(ctx context.Context, id string, call func(context.Context, model.PeerRef, string) (bool, error)) (bool, error) {
	ref, ok := vm.ActivePeer()
	if !ok {
		return false, errNoConversation
	}
	on, err := call(ctx, ref, id)
	if err != nil {
		return false, err
	}
	return on, vm.LoadThread(ctx)
}

// ToggleSelect adds or removes id from the bulk selection, entering bulk
// mode if needed.
func (vm *ViewModel) ToggleSelect(ctx context.Context, id string) error {
	on := true
	_, err := vm.daemon.Select(ctx, &control.SelectRequest{Bulk: &on, Toggle: []string{id}})
	if err != nil {
		return err
	}
	return vm.LoadThread(ctx)
}

// ClearSelection leaves bulk mode.
func (vm *ViewModel) ClearSelection(ctx context.Context) error {
	off := false
	if _, err := vm.daemon.Select(ctx, &control.SelectRequest{Clear: true, Bulk: &off}); err != nil {
		return err
	}
	return vm.LoadThread(ctx)
}

// BulkStar stars every selected message.
func (vm *ViewModel) BulkStar(ctx context.Context) (*control.BulkResponse, error) {
	resp, err := vm.daemon.BulkStar(ctx, nil)
	if err != nil {
		return nil, err
	}
	return resp, vm.LoadThread(ctx)
}

// BulkDelete deletes every selected message with scope.
func (vm *ViewModel) BulkDelete(ctx context.Context, scope model.DeleteScope) (*control.BulkResponse, error) {
	resp, err := vm.daemon.BulkDelete(ctx, nil, scope)
	if err != nil {
		return nil, err
	}
	return resp, vm.LoadThread(ctx)
}

// BulkCopy returns the selected messages as text.
func (vm *ViewModel) BulkCopy(ctx context.Context) (string, error) {
	return vm.daemon.BulkCopy(ctx, nil)
}

// Forward sends ids, or the selection when ids is empty, to recipients.
func (vm *ViewModel) Forward(ctx context.Context, ids []string, recipients []model.PeerRef) (*control.BulkResponse, error) {
	resp, err := vm.daemon.Forward(ctx, ids, recipients)
	if err != nil {
		return nil, err
	}
	return resp, vm.LoadLists(ctx, false)
}

// CreateGroup creates a group named name with the given members.
func (vm *ViewModel) CreateGroup(ctx context.Context, name string, members []string) (model.Group, error) {
	g, err := vm.daemon.CreateGroup(ctx, api.GroupInput{Name: name, MemberIDs: members})
	if err != nil {
		return model.Group{}, err
	}
	return g, vm.LoadLists(ctx, false)
}

// LeaveGroup leaves the open group.
func (vm *ViewModel) LeaveGroup(ctx context.Context) error {
	ref, ok := vm.ActivePeer()
	if !ok || ref.Kind != model.KindGroup {
		return errNotGroup
	}
	if err := vm.daemon.LeaveGroup(ctx, ref.ID); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Thread = nil
	vm.mu.Unlock()
	return vm.LoadLists(ctx, false)
}

// Diagnostics lists captured failures; dismissAll clears them first.
func (vm *ViewModel) Diagnostics(ctx context.Context, dismissAll bool) (*control.DiagnosticsResponse, error) {
	return vm.daemon.Diagnostics(ctx, &control.DiagnosticsRequest{DismissAll: dismissAll})
}

// Watch applies daemon events to the cache until ctx ends.
func (vm *ViewModel) Watch(ctx context.Context) error {
	return vm.daemon.Watch(ctx, "", func(evt control.WatchEvent) {
		vm.Apply(ctx, evt)
	})
}

// Apply reloads whatever evt says changed. Failed reloads are dropped; the
// next event or a manual refresh retries them.
func (vm *ViewModel) Apply(ctx context.Context, evt control.WatchEvent) {
	switch {
	case evt.Kind == bus.TopicToast:
		var t state.Toast
		if err := json.Unmarshal(evt.Payload, &t); err == nil {
			vm.Flash.Toast(t)
			vm.signalRefresh()
		}
	case evt.Kind == bus.TopicDiagnostic:
		vm.Flash.Err("An internal error was captured (:diag to inspect)")
		vm.signalRefresh()
	case evt.Kind == bus.TopicSessionStatus, evt.Kind == bus.TopicSocketState,
		evt.Kind == bus.TopicNavigation, evt.Kind == bus.TopicStatePrefix+state.AuthName:
		_ = vm.LoadStatus(ctx)
	case evt.Kind == bus.TopicStatePrefix+state.ChatsName, evt.Kind == bus.TopicStatePrefix+state.GroupsName:
		_ = vm.LoadLists(ctx, false)
		_ = vm.LoadThread(ctx)
	case strings.HasPrefix(evt.Kind, bus.TopicStatePrefix) && evt.Kind != bus.TopicStatePrefix+state.ToastsName:
		_ = vm.LoadThread(ctx)
	}
}
