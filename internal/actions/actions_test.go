package actions

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/backendtest"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/inflight"
	"github.com/matheus3301/chatline/internal/metrics"
	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/nav"
	"github.com/matheus3301/chatline/internal/state"
	"github.com/matheus3301/chatline/internal/status"
	"github.com/matheus3301/chatline/internal/store"
	"github.com/matheus3301/chatline/internal/token"
)

// mockCtx matches any context argument.
const mockCtx = mock.Anything

type socketMock struct {
	mock.Mock
}

func (s *socketMock) Emit(ctx context.Context, ev model.Event) error {
	return s.Called(ctx, ev).Error(0)
}

func (s *socketMock) Kick() { s.Called() }

type harness struct {
	srv     *backendtest.Server
	stores  *state.Stores
	tokens  *token.Store
	machine *status.Machine
	router  *nav.Router
	guard   *inflight.Guard
	socket  *socketMock
	db      *store.DB
	act     *Actions
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := backendtest.New(t)
	srv.AddUser("me", "Me", "a@b.com", "secret1")
	srv.AddUser("u1", "Ana", "ana@example.com", "secret1")
	srv.AddUser("u2", "Bia", "bia@example.com", "secret1")
	srv.AddUser("u3", "Caio", "caio@example.com", "secret1")

	db, err := store.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	m := metrics.New()
	stores := &state.Stores{
		Auth:      state.NewAuthStore(b),
		Chats:     state.NewChatStore(b),
		Groups:    state.NewGroupStore(b),
		Selection: state.NewSelectionStore(b),
		Stars:     state.NewStarStore(b),
		Pins:      state.NewPinStore(b),
		Toasts:    state.NewToastStore(b, m, time.Minute),
	}
	tokens := token.New(db, nil)
	machine := status.NewMachine(b)
	router := nav.NewRouter(b)
	guard := inflight.New()

	sock := &socketMock{}
	sock.On("Emit", mock.Anything, mock.Anything).Return(nil).Maybe()
	sock.On("Kick").Return().Maybe()

	expiry := NewExpiry(stores, machine, router, sock, nil)
	client := api.New(srv.APIURL(), tokens, api.WithExpirer(expiry), api.WithMetrics(m))

	act := New(Deps{
		API:     client,
		Stores:  stores,
		Guard:   guard,
		Session: tokens,
		Machine: machine,
		Router:  router,
		Socket:  sock,
		Local:   db,
		Metrics: m,
		Settings: Settings{
			MaxImageBytes: 64,
			RedirectDelay: 100 * time.Millisecond,
		},
	})
	return &harness{
		srv:     srv,
		stores:  stores,
		tokens:  tokens,
		machine: machine,
		router:  router,
		guard:   guard,
		socket:  sock,
		db:      db,
		act:     act,
	}
}

// signIn puts the harness in the state a successful login leaves behind.
func (h *harness) signIn(t *testing.T) {
	t.Helper()
	h.tokens.Set(h.srv.Token("me"))
	h.stores.Auth.SetUser(model.User{ID: "me", FullName: "Me", Email: "a@b.com"})
	require.NoError(t, h.machine.Transition(status.Checking))
	require.NoError(t, h.machine.Transition(status.Authenticated))
	h.router.Navigate(nav.Dashboard)
}

// toasts returns the messages of the active toasts with the given severity.
func (h *harness) toasts(sev state.Severity) []string {
	var out []string
	for _, t := range h.stores.Toasts.Active() {
		if t.Severity == sev {
			out = append(out, t.Message)
		}
	}
	return out
}

func (h *harness) openChat(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, h.act.OpenChat(context.Background(), model.Contact{User: model.User{ID: id}}))
}

func (h *harness) emitted() []model.Event {
	var out []model.Event
	for _, c := range h.socket.Calls {
		if c.Method == "Emit" {
			out = append(out, c.Arguments.Get(1).(model.Event))
		}
	}
	return out
}

func TestLoginSchedulesDashboard(t *testing.T) {
	h := newHarness(t)

	u, err := h.act.Login(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "me", u.ID)
	assert.Equal(t, status.Authenticated, h.machine.Current())
	assert.NotEmpty(t, h.tokens.Get())
	assert.Equal(t, "me", h.stores.Auth.UserID())
	assert.Contains(t, h.toasts(state.SeveritySuccess), "Logged in successfully")
	assert.False(t, h.stores.Auth.Flags().LoggingIn)

	assert.Equal(t, nav.Login, h.router.Current())
	require.Eventually(t, func() bool { return h.router.Current() == nav.Dashboard }, time.Second, 5*time.Millisecond)
	h.socket.AssertCalled(t, "Kick")
}

func TestLoginValidationNeverHitsNetwork(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{"empty email", "", "secret1", "email"},
		{"malformed email", "not-an-email", "secret1", "email"},
		{"display name", "Ana <ana@example.com>", "secret1", "email"},
		{"empty password", "a@b.com", "", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.act.Login(context.Background(), tt.email, tt.password)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Zero(t, h.srv.Requests("POST /api/auth/login"))
			assert.Len(t, h.toasts(state.SeverityError), 1)
		})
	}
}

func TestLoginFailureShowsServerMessage(t *testing.T) {
	h := newHarness(t)

	_, err := h.act.Login(context.Background(), "a@b.com", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, []string{"Invalid credentials"}, h.toasts(state.SeverityError))
	assert.Equal(t, status.Unauthenticated, h.machine.Current())
	assert.Empty(t, h.tokens.Get())
	assert.Equal(t, nav.Login, h.router.Current())
}

func TestLoginWhileSignedIn(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	_, err := h.act.Login(context.Background(), "a@b.com", "secret1")
	require.ErrorIs(t, err, ErrSignedIn)
	assert.Zero(t, h.srv.Requests("POST /api/auth/login"))
}

func TestSignup(t *testing.T) {
	h := newHarness(t)

	_, err := h.act.Signup(context.Background(), "Dora", "dora@example.com", "123")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)

	u, err := h.act.Signup(context.Background(), "Dora", "dora@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Dora", u.FullName)
	assert.Equal(t, status.Authenticated, h.machine.Current())
	assert.Equal(t, 1, h.srv.Requests("POST /api/auth/signup"))
	require.Eventually(t, func() bool { return h.router.Current() == nav.Dashboard }, time.Second, 5*time.Millisecond)
}

func TestUnauthorizedClearsTokenAndRoutesToLogin(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.openChat(t, "u1")
	h.srv.Revoke(h.tokens.Get())

	err := h.act.LoadChats(context.Background())
	require.ErrorIs(t, err, api.ErrUnauthorized)

	assert.Empty(t, h.tokens.Get())
	assert.Equal(t, nav.Login, h.router.Current())
	assert.Equal(t, status.Unauthenticated, h.machine.Current())
	assert.Empty(t, h.stores.Auth.UserID())
	assert.Empty(t, h.stores.Chats.OpenID())
	assert.Empty(t, h.toasts(state.SeverityError))
}

func TestUnauthorizedDuringMutationRollsBackQuietly(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.openChat(t, "u1")
	h.srv.Revoke(h.tokens.Get())

	_, err := h.act.Send(context.Background(), model.PeerRef{Kind: model.KindUser, ID: "u1"}, Compose{Text: "hi"})
	require.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, nav.Login, h.router.Current())
	assert.Empty(t, h.toasts(state.SeverityError))
}

func TestCheckAuthWithoutToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.act.CheckAuth(context.Background())
	require.ErrorIs(t, err, token.ErrNoToken)
	assert.Equal(t, status.Unauthenticated, h.machine.Current())
	assert.Zero(t, h.srv.Requests("GET /api/auth/check"))
}

func TestCheckAuthWithExpiredToken(t *testing.T) {
	h := newHarness(t)
	h.tokens.Set(h.srv.ExpiredToken("me"))

	_, err := h.act.CheckAuth(context.Background())
	require.ErrorIs(t, err, token.ErrNoToken)
	assert.Empty(t, h.tokens.Get())
	assert.Zero(t, h.srv.Requests("GET /api/auth/check"))
}

func TestCheckAuthRestoresSession(t *testing.T) {
	h := newHarness(t)
	h.tokens.Set(h.srv.Token("me"))

	u, err := h.act.CheckAuth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "me", u.ID)
	assert.Equal(t, status.Authenticated, h.machine.Current())
	assert.Equal(t, nav.Dashboard, h.router.Current())
}

func TestLogoutClearsSession(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.openChat(t, "u1")
	tok := h.tokens.Get()

	require.NoError(t, h.act.Logout(context.Background()))
	assert.Empty(t, h.tokens.Get())
	assert.Equal(t, status.Unauthenticated, h.machine.Current())
	assert.Equal(t, nav.Login, h.router.Current())
	_, active := h.stores.Selection.Active()
	assert.False(t, active)
	assert.Contains(t, h.toasts(state.SeveritySuccess), "Logged out successfully")

	// The server session is gone too.
	h.tokens.Set(tok)
	_, err := h.act.CheckAuth(context.Background())
	require.ErrorIs(t, err, api.ErrUnauthorized)
}

func TestLogoutSurvivesServerFailure(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.srv.Fail("POST /api/auth/logout", 500, "down")

	require.NoError(t, h.act.Logout(context.Background()))
	assert.Empty(t, h.tokens.Get())
	assert.Equal(t, nav.Login, h.router.Current())
}

func TestOpenChatByIDUsesCachedChat(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "hello"})
	require.NoError(t, h.act.LoadChats(context.Background()))

	p, err := h.act.OpenChatByID(context.Background(), model.KindUser, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.PeerRef{Kind: model.KindUser, ID: "u1"}, p.Ref())
	assert.Zero(t, h.srv.Requests("GET /api/users/:id"))

	active, ok := h.stores.Selection.ActiveRef()
	require.True(t, ok)
	assert.Equal(t, p.Ref(), active)
}

func TestOpenChatByIDFetchesOnceWhenMissing(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	p, err := h.act.OpenChatByID(context.Background(), model.KindUser, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.DisplayName())
	assert.Equal(t, 1, h.srv.Requests("GET /api/users/:id"))

	active, ok := h.stores.Selection.ActiveRef()
	require.True(t, ok)
	assert.Equal(t, "u1", active.ID)
}

func TestOpenChatByIDGroup(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.srv.AddGroup(model.Group{ID: "g1", Name: "Team", Members: []string{"me", "u1"}, Admins: []string{"me"}})

	p, err := h.act.OpenChatByID(context.Background(), model.KindGroup, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Team", p.DisplayName())
	assert.Equal(t, 1, h.srv.Requests("GET /api/groups/:id"))

	_, err = h.act.OpenChatByID(context.Background(), model.KindGroup, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, h.srv.Requests("GET /api/groups/:id"))
}

func TestOpenChatByIDUnknownUser(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	_, err := h.act.OpenChatByID(context.Background(), model.KindUser, "nobody")
	require.Error(t, err)
	assert.Equal(t, []string{"User not found"}, h.toasts(state.SeverityError))
	_, ok := h.stores.Selection.Active()
	assert.False(t, ok)
}

func TestRestoreLastChat(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.srv.AddMessage(model.Message{SenderID: "u1", ReceiverID: "me", Text: "hello"})

	ok, err := h.act.RestoreLastChat(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	h.openChat(t, "u1")
	h.stores.Chats.Close()
	h.stores.Selection.Close()

	ok, err = h.act.RestoreLastChat(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u1", h.stores.Chats.OpenID())
	assert.Len(t, h.stores.Chats.Messages(), 1)
}

func TestDrafts(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	ref := model.PeerRef{Kind: model.KindUser, ID: "u1"}
	h.openChat(t, "u1")

	require.NoError(t, h.act.SaveDraft(ref, "half a thought"))
	got, err := h.act.Draft(ref)
	require.NoError(t, err)
	assert.Equal(t, "half a thought", got)

	_, err = h.act.Send(context.Background(), ref, Compose{Text: "the whole thought"})
	require.NoError(t, err)
	got, err = h.act.Draft(ref)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExpiryIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	e := NewExpiry(h.stores, h.machine, h.router, nil, nil)

	e.ExpireSession()
	e.ExpireSession()
	assert.Equal(t, nav.Login, h.router.Current())
	assert.Equal(t, status.Unauthenticated, h.machine.Current())
}

func TestValidationErrorMessage(t *testing.T) {
	err := error(&ValidationError{Field: "email", Message: "Email is required"})
	assert.Equal(t, "email: Email is required", err.Error())
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}
