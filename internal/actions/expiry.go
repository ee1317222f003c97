package actions

import (
	"go.uber.org/zap"

	"github.com/matheus3301/chatline/internal/logging"
	"github.com/matheus3301/chatline/internal/nav"
	"github.com/matheus3301/chatline/internal/state"
	"github.com/matheus3301/chatline/internal/status"
)

// Kicker makes the socket drop its connection and redial.
type Kicker interface {
	Kick()
}

// Expiry handles a 401 from any request: the API client has already cleared
// the token, so this drops the session's view state and routes to login.
// It satisfies api.Expirer.
type Expiry struct {
	stores  *state.Stores
	machine *status.Machine
	router  *nav.Router
	socket  Kicker
	logger  *zap.Logger
}

// NewExpiry creates the expiry hook. socket may be nil.
func NewExpiry(stores *state.Stores, machine *status.Machine, router *nav.Router, socket Kicker, logger *zap.Logger) *Expiry {
	return &Expiry{
		stores:  stores,
		machine: machine,
		router:  router,
		socket:  socket,
		logger:  logging.OrNop(logger),
	}
}

// ExpireSession clears the session.
func (e *Expiry) ExpireSession() {
	if !e.machine.Expire() && e.router.Current() == nav.Login {
		return
	}
	e.logger.Info("session expired")
	e.stores.Reset()
	e.router.ForceLogin()
	if e.socket != nil {
		e.socket.Kick()
	}
}
