// Package nav tracks which screen the client is showing.
package nav

import (
	"sync"
	"time"

	"github.com/matheus3301/chatline/internal/bus"
)

// Route is a top-level screen.
type Route string

const (
	Login     Route = "login"
	Signup    Route = "signup"
	Dashboard Route = "dashboard"
)

// Change is the payload published when the route changes.
type Change struct {
	From Route
	To   Route
}

// Router holds the current route. Navigation is the only side effect the
// HTTP adapter performs on authorization failure.
type Router struct {
	mu      sync.Mutex
	current Route
	pending *time.Timer
	bus     *bus.Bus
}

// NewRouter starts on the login screen.
func NewRouter(b *bus.Bus) *Router {
	return &Router{current: Login, bus: b}
}

// Current returns the active route.
func (r *Router) Current() Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Navigate switches to route immediately and cancels any scheduled navigation.
func (r *Router) Navigate(to Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelPendingLocked()
	r.setLocked(to)
}

// Schedule navigates to route after delay. A later Navigate, Schedule or
// ForceLogin supersedes it.
func (r *Router) Schedule(to Route, delay time.Duration) {
	if delay <= 0 {
		r.Navigate(to)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelPendingLocked()
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.pending != t {
			return
		}
		r.pending = nil
		r.setLocked(to)
	})
	r.pending = t
}

// ForceLogin sends the user to the login screen unless an auth screen is
// already showing. It reports whether the route changed.
func (r *Router) ForceLogin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelPendingLocked()
	if r.current == Login || r.current == Signup {
		return false
	}
	r.setLocked(Login)
	return true
}

func (r *Router) setLocked(to Route) {
	if r.current == to {
		return
	}
	from := r.current
	r.current = to
	r.bus.Emit(bus.TopicNavigation, Change{From: from, To: to})
}

func (r *Router) cancelPendingLocked() {
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}
