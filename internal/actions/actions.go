// Package actions holds the user-initiated operations. Each one validates
// locally, updates view state ahead of the server, and reconciles or rolls
// back when the server answers.
package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/inflight"
	"github.com/matheus3301/chatline/internal/logging"
	"github.com/matheus3301/chatline/internal/metrics"
	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/nav"
	"github.com/matheus3301/chatline/internal/optimistic"
	"github.com/matheus3301/chatline/internal/state"
	"github.com/matheus3301/chatline/internal/status"
	"github.com/matheus3301/chatline/internal/store"
)

// DefaultMaxImageBytes is the image ceiling used when none is configured.
const DefaultMaxImageBytes = 5 << 20

var (
	// ErrSignedIn is returned by Login and Signup while a session is active.
	ErrSignedIn = errors.New("already signed in")
	// ErrBusy is returned when the same toggle is already running.
	ErrBusy = errors.New("operation already in progress")
	// ErrNotFound is returned when an action names a message or group the
	// client does not hold.
	ErrNotFound = errors.New("not found")
	// ErrNoConversation is returned by actions that need an open conversation.
	ErrNoConversation = errors.New("no conversation open")
)

// ValidationError is a precondition that failed before any request was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Backend is the server API the actions call.
type Backend interface {
	Login(ctx context.Context, creds api.Credentials) (model.User, error)
	Signup(ctx context.Context, req api.SignupRequest) (model.User, error)
	Logout(ctx context.Context) error
	CheckAuth(ctx context.Context) (model.User, error)

	Contacts(ctx context.Context) ([]model.Contact, error)
	Chats(ctx context.Context) ([]model.Chat, error)
	User(ctx context.Context, id string) (model.Contact, error)
	Messages(ctx context.Context, userID string) ([]model.Message, error)
	SendMessage(ctx context.Context, userID string, out api.Outgoing) (model.Message, error)
	EditMessage(ctx context.Context, id, text string) (model.Message, error)
	DeleteMessage(ctx context.Context, id string, scope model.DeleteScope) (*model.Message, error)
	ToggleStar(ctx context.Context, id string) (model.Message, error)
	TogglePin(ctx context.Context, id string) (model.Message, error)
	Starred(ctx context.Context) ([]model.Message, error)

	Groups(ctx context.Context) ([]model.Group, error)
	Group(ctx context.Context, id string) (model.Group, error)
	CreateGroup(ctx context.Context, in api.GroupInput) (model.Group, error)
	UpdateGroup(ctx context.Context, id string, in api.GroupInput) (model.Group, error)
	GroupMessages(ctx context.Context, id string) (api.GroupTimeline, error)
	SendGroupMessage(ctx context.Context, id string, out api.Outgoing) (model.Message, error)
	AddMembers(ctx context.Context, id string, userIDs []string) (model.Group, error)
	RemoveMember(ctx context.Context, id, userID string) (model.Group, error)
	PromoteAdmin(ctx context.Context, id, userID string) (model.Group, error)
	LeaveGroup(ctx context.Context, id string) error
}

// Session is the bearer token holder.
type Session interface {
	Clear()
	Usable(now time.Time) bool
}

// Socket is the real-time channel as seen by the actions.
type Socket interface {
	Emit(ctx context.Context, ev model.Event) error
	Kick()
}

// Local persists drafts and preferences.
type Local interface {
	SaveDraft(peerKind, peerID, body string) error
	GetDraft(peerKind, peerID string) (*store.Draft, error)
	GetKV(tier store.Tier, key string) (string, bool, error)
	PutKV(tier store.Tier, key, value string) error
}

// Settings are the configurable limits.
type Settings struct {
	MaxImageBytes int64
	RedirectDelay time.Duration
}

// Deps are the collaborators of Actions. Socket and Local may be nil.
type Deps struct {
	API      Backend
	Stores   *state.Stores
	Guard    *inflight.Guard
	Session  Session
	Machine  *status.Machine
	Router   *nav.Router
	Socket   Socket
	Local    Local
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Settings Settings
}

// Actions runs the operations against one session's view state.
type Actions struct {
	api      Backend
	stores   *state.Stores
	guard    *inflight.Guard
	session  Session
	machine  *status.Machine
	router   *nav.Router
	socket   Socket
	local    Local
	runner   *optimistic.Runner
	logger   *zap.Logger
	settings Settings
	now      func() time.Time
}

// New creates the actions.
func New(d Deps) *Actions {
	logger := logging.OrNop(d.Logger).Named("actions")
	if d.Settings.MaxImageBytes <= 0 {
		d.Settings.MaxImageBytes = DefaultMaxImageBytes
	}
	if d.Guard == nil {
		d.Guard = inflight.New()
	}
	return &Actions{
		api:      d.API,
		stores:   d.Stores,
		guard:    d.Guard,
		session:  d.Session,
		machine:  d.Machine,
		router:   d.Router,
		socket:   d.Socket,
		local:    d.Local,
		runner:   optimistic.NewRunner(d.Metrics, logger),
		logger:   logger,
		settings: d.Settings,
		now:      time.Now,
	}
}

// me is the signed-in user's id.
func (a *Actions) me() string {
	return a.stores.Auth.UserID()
}

// fail raises an error toast for err unless the session already expired.
func (a *Actions) fail(err error, fallback string) {
	if err == nil || errors.Is(err, api.ErrUnauthorized) || errors.Is(err, context.Canceled) || errors.Is(err, ErrBusy) {
		return
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		a.stores.Toasts.Error(verr.Message)
		return
	}
	a.stores.Toasts.Error(api.Message(err, fallback))
}

// invalid raises the validation toast and returns the error.
func (a *Actions) invalid(field, msg string) error {
	err := &ValidationError{Field: field, Message: msg}
	a.stores.Toasts.Error(msg)
	return err
}

// emit re-broadcasts ev so other subscribers refresh. Failures are soft.
func (a *Actions) emit(ctx context.Context, ev model.Event) {
	if a.socket == nil {
		return
	}
	if err := a.socket.Emit(ctx, ev); err != nil {
		a.logger.Warn("re-emit event", zap.String("event", ev.EventName()), zap.Error(err))
	}
}

// settle moves the session machine to st, tolerating a state an expiry
// already reached.
func (a *Actions) settle(st status.State) {
	if a.machine.Current() == st {
		return
	}
	if err := a.machine.Transition(st); err != nil {
		a.logger.Debug("session transition skipped", zap.Error(err))
	}
}

// timeline runs fn on the open timeline of ref.
func (a *Actions) timeline(ref model.PeerRef, fn func(*state.Timeline) bool) bool {
	if ref.Kind == model.KindGroup {
		return a.stores.Groups.Mutate(ref.ID, fn)
	}
	return a.stores.Chats.Mutate(ref.ID, fn)
}

// message finds id in the open timeline of ref.
func (a *Actions) message(ref model.PeerRef, id string) (model.Message, bool) {
	if ref.Kind == model.KindGroup {
		if a.stores.Groups.OpenID() != ref.ID {
			return model.Message{}, false
		}
		return a.stores.Groups.Message(id)
	}
	if a.stores.Chats.OpenID() != ref.ID {
		return model.Message{}, false
	}
	return a.stores.Chats.Message(id)
}

// active returns the conversation currently selected.
func (a *Actions) active() (model.PeerRef, error) {
	ref, ok := a.stores.Selection.ActiveRef()
	if !ok {
		return model.PeerRef{}, ErrNoConversation
	}
	return ref, nil
}
