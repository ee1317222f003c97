package state

import (
	"sync"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/model"
)

// AuthFlags are the in-progress markers of the auth screens.
type AuthFlags struct {
	CheckingAuth bool
	LoggingIn    bool
	SigningUp    bool
	LoggingOut   bool
}

// AuthStore holds the signed-in user.
type AuthStore struct {
	mu    sync.RWMutex
	user  *model.User
	flags AuthFlags
	notifier
}

// NewAuthStore creates an empty store.
func NewAuthStore(b *bus.Bus) *AuthStore {
	return &AuthStore{notifier: notifier{bus: b, name: AuthName}}
}

// User returns the signed-in user.
func (s *AuthStore) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// UserID returns the signed-in user's id or "".
func (s *AuthStore) UserID() string {
	u, _ := s.User()
	return u.ID
}

// SetUser records the signed-in user.
func (s *AuthStore) SetUser(u model.User) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
}

// ClearUser forgets the signed-in user.
func (s *AuthStore) ClearUser() {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
}

// Flags returns the current flags.
func (s *AuthStore) Flags() AuthFlags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags
}

// SetFlags mutates the flags.
func (s *AuthStore) SetFlags(fn func(*AuthFlags)) {
	defer s.changed()
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.flags)
}
