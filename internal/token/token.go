// Package token keeps the bearer token used for every backend request.
//
// The token is mirrored into two tiers under the same key: a session tier in
// process memory and a persisted tier in the local database. Reads prefer the
// session tier and fall back to the persisted one, so a daemon restart keeps
// the user signed in while a cleared session is never resurrected from memory.
package token

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/matheus3301/chatline/internal/logging"
	"github.com/matheus3301/chatline/internal/store"
	"go.uber.org/zap"
)

// Key is the fixed storage key for the bearer token.
const Key = "chat-token"

// ErrNoToken is returned by Claims when no token is stored.
var ErrNoToken = errors.New("no token stored")

// Persister is the persisted storage tier.
type Persister interface {
	GetKV(tier store.Tier, key string) (string, bool, error)
	PutKV(tier store.Tier, key, value string) error
	DeleteKV(tier store.Tier, key string) error
}

// Store mirrors the bearer token across the session and persisted tiers.
type Store struct {
	mu      sync.RWMutex
	session string
	local   Persister
	logger  *zap.Logger
}

// New creates a token store. local may be nil, leaving only the session tier.
func New(local Persister, logger *zap.Logger) *Store {
	return &Store{local: local, logger: logging.OrNop(logger)}
}

// Get returns the current token, or "" when signed out.
func (s *Store) Get() string {
	s.mu.RLock()
	tok := s.session
	s.mu.RUnlock()
	if tok != "" || s.local == nil {
		return tok
	}

	tok, ok, err := s.local.GetKV(store.TierLocal, Key)
	if err != nil {
		s.logger.Warn("read persisted token", zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	s.mu.Lock()
	if s.session == "" {
		s.session = tok
	}
	s.mu.Unlock()
	return tok
}

// Set writes tok to both tiers. An empty tok clears them.
func (s *Store) Set(tok string) {
	if tok == "" {
		s.Clear()
		return
	}
	s.mu.Lock()
	s.session = tok
	s.mu.Unlock()
	if s.local != nil {
		if err := s.local.PutKV(store.TierLocal, Key, tok); err != nil {
			s.logger.Warn("persist token", zap.Error(err))
		}
	}
}

// Clear removes the token from both tiers.
func (s *Store) Clear() {
	s.mu.Lock()
	s.session = ""
	s.mu.Unlock()
	if s.local != nil {
		if err := s.local.DeleteKV(store.TierLocal, Key); err != nil {
			s.logger.Warn("delete persisted token", zap.Error(err))
		}
	}
}

// Claims holds the unverified identity fields carried by the token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that has passed.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Claims decodes the stored token without verifying its signature. The
// backend remains the judge of validity; this only lets the client skip a
// doomed session check at boot.
func (s *Store) Claims() (*Claims, error) {
	raw := s.Get()
	if raw == "" {
		return nil, ErrNoToken
	}
	return ParseClaims(raw)
}

// ParseClaims decodes raw without verifying its signature.
func ParseClaims(raw string) (*Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mc); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}

	c := &Claims{}
	if sub, err := mc.GetSubject(); err == nil && sub != "" {
		c.Subject = sub
	} else if id, ok := mc["userId"].(string); ok {
		c.Subject = id
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// Usable reports whether a token is stored and not known to be expired.
func (s *Store) Usable(now time.Time) bool {
	c, err := s.Claims()
	if errors.Is(err, ErrNoToken) {
		return false
	}
	if err != nil {
		// Opaque tokens are not JWTs; let the backend decide.
		return true
	}
	return !c.Expired(now)
}
