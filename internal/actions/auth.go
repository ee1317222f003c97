package actions

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/nav"
	"github.com/matheus3301/chatline/internal/state"
	"github.com/matheus3301/chatline/internal/status"
	"github.com/matheus3301/chatline/internal/token"
)

const minPasswordLen = 6

// Login signs in and schedules the move to the dashboard.
func (a *Actions) Login(ctx context.Context, email, password string) (model.User, error) {
	email = strings.TrimSpace(email)
	if err := a.checkCredentials(email, password); err != nil {
		return model.User{}, err
	}
	if a.machine.Current() == status.Authenticated {
		return model.User{}, ErrSignedIn
	}

	if f := a.stores.Auth.Flags(); f.LoggingIn || f.SigningUp {
		return model.User{}, ErrBusy
	}

	a.stores.Auth.SetFlags(func(f *state.AuthFlags) { f.LoggingIn = true })
	defer a.stores.Auth.SetFlags(func(f *state.AuthFlags) { f.LoggingIn = false })
	a.settle(status.Unauthenticated)
	a.settle(status.Authenticating)

	u, err := a.api.Login(ctx, api.Credentials{Email: email, Password: password})
	if err != nil {
		a.settle(status.Unauthenticated)
		a.fail(err, "Login failed")
		return model.User{}, err
	}
	a.signedIn(u, "Logged in successfully")
	return u, nil
}

// Signup creates an account, signs in, and schedules the move to the
// dashboard.
func (a *Actions) Signup(ctx context.Context, fullName, email, password string) (model.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)
	if fullName == "" {
		return model.User{}, a.invalid("fullName", "Full name is required")
	}
	if err := a.checkCredentials(email, password); err != nil {
		return model.User{}, err
	}
	if len(password) < minPasswordLen {
		return model.User{}, a.invalid("password", "Password must be at least 6 characters")
	}
	if a.machine.Current() == status.Authenticated {
		return model.User{}, ErrSignedIn
	}

	if f := a.stores.Auth.Flags(); f.LoggingIn || f.SigningUp {
		return model.User{}, ErrBusy
	}

	a.stores.Auth.SetFlags(func(f *state.AuthFlags) { f.SigningUp = true })
	defer a.stores.Auth.SetFlags(func(f *state.AuthFlags) { f.SigningUp = false })
	a.settle(status.Unauthenticated)
	a.settle(status.Authenticating)

	u, err := a.api.Signup(ctx, api.SignupRequest{FullName: fullName, Email: email, Password: password})
	if err != nil {
		a.settle(status.Unauthenticated)
		a.fail(err, "Signup failed")
		return model.User{}, err
	}
	a.signedIn(u, "Account created successfully")
	return u, nil
}

func (a *Actions) checkCredentials(email, password string) error {
	if email == "" {
		return a.invalid("email", "Email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return a.invalid("email", "Invalid email format")
	}
	if password == "" {
		return a.invalid("password", "Password is required")
	}
	return nil
}

func (a *Actions) signedIn(u model.User, msg string) {
	a.stores.Auth.SetUser(u)
	a.settle(status.Authenticated)
	a.stores.Toasts.Success(msg)
	a.router.Schedule(nav.Dashboard, a.settings.RedirectDelay)
	if a.socket != nil {
		a.socket.Kick()
	}
}

// Logout ends the session. Local state is cleared even when the server
// call fails.
func (a *Actions) Logout(ctx context.Context) error {
	a.stores.Auth.SetFlags(func(f *state.AuthFlags) { f.LoggingOut = true })
	defer a.stores.Auth.SetFlags(func(f *state.AuthFlags) { f.LoggingOut = false })

	err := a.api.Logout(ctx)
	if err != nil && !errors.Is(err, api.ErrUnauthorized) {
		a.logger.Warn("server logout failed", zap.Error(err))
	}

	a.session.Clear()
	a.stores.Reset()
	a.machine.Expire()
	a.router.Navigate(nav.Login)
	if a.socket != nil {
		a.socket.Kick()
	}
	a.stores.Toasts.Success("Logged out successfully")
	return nil
}

// CheckAuth restores the session from the stored token. It returns
// token.ErrNoToken when there is nothing to restore.
func (a *Actions) CheckAuth(ctx context.Context) (model.User, error) {
	a.stores.Auth.SetFlags(func(f *state.AuthFlags) { f.CheckingAuth = true })
	defer a.stores.Auth.SetFlags(func(f *state.AuthFlags) { f.CheckingAuth = false })
	a.settle(status.Checking)

	if !a.session.Usable(a.now()) {
		a.session.Clear()
		a.settle(status.Unauthenticated)
		return model.User{}, token.ErrNoToken
	}

	u, err := a.api.CheckAuth(ctx)
	if err != nil {
		a.stores.Auth.ClearUser()
		a.settle(status.Unauthenticated)
		return model.User{}, err
	}
	a.stores.Auth.SetUser(u)
	a.settle(status.Authenticated)
	a.router.Navigate(nav.Dashboard)
	if a.socket != nil {
		a.socket.Kick()
	}
	return u, nil
}
