// Package inflight deduplicates concurrent operations that share a key.
package inflight

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Guard runs at most one operation per key at a time. A caller arriving
// while the key is held waits for the outstanding operation and receives its
// result instead of starting a second one.
type Guard struct {
	group singleflight.Group

	mu   sync.Mutex
	busy map[string]int
}

// New creates an empty guard.
func New() *Guard {
	return &Guard{busy: make(map[string]int)}
}

// Membership operations that must not run twice for the same member.
const (
	OpRemoveMember = "remove-member"
	OpPromoteAdmin = "promote-admin"
)

// MemberKey is the key of a membership operation on userID in groupID.
func MemberKey(op, groupID, userID string) string {
	return Key(op, groupID, userID)
}

// Key joins parts into a guard key, e.g. Key("remove", groupID, userID).
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Do runs fn under key. shared reports whether the result came from an
// operation started by another caller; the caller whose fn ran always gets
// shared == false. ctx only bounds the wait; fn runs to completion for the
// caller that started it.
func (g *Guard) Do(ctx context.Context, key string, fn func() (any, error)) (v any, shared bool, err error) {
	// Only the leader's closure runs. The channel receive orders the write
	// to ran before the read below.
	var ran bool
	ch := g.group.DoChan(key, func() (any, error) {
		ran = true
		g.hold(key)
		defer g.release(key)
		return fn()
	})
	select {
	case r := <-ch:
		return r.Val, !ran, r.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Busy reports whether an operation for key is outstanding.
func (g *Guard) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy[key] > 0
}

// BusyKeys returns the keys currently held.
func (g *Guard) BusyKeys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := make([]string, 0, len(g.busy))
	for k := range g.busy {
		keys = append(keys, k)
	}
	return keys
}

func (g *Guard) hold(key string) {
	g.mu.Lock()
	g.busy[key]++
	g.mu.Unlock()
}

func (g *Guard) release(key string) {
	g.mu.Lock()
	if g.busy[key]--; g.busy[key] <= 0 {
		delete(g.busy, key)
	}
	g.mu.Unlock()
}
