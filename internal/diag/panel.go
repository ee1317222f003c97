// Package diag collects errors nothing else handled, including recovered
// panics, so they can be shown in a dismissible panel. It never touches view
// state.
package diag

import (
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/logging"
)

// DefaultCapacity bounds the number of entries kept.
const DefaultCapacity = 50

// Entry is one captured failure.
type Entry struct {
	ID       string    `json:"id"`
	Message  string    `json:"message"`
	Stack    string    `json:"stack,omitempty"`
	Panic    bool      `json:"panic"`
	Captured time.Time `json:"captured"`
}

// Panel holds captured entries, oldest first.
type Panel struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	bus      *bus.Bus
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Panel keeping at most capacity entries. capacity <= 0 means
// DefaultCapacity.
func New(b *bus.Bus, capacity int, logger *zap.Logger) *Panel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Panel{
		capacity: capacity,
		bus:      b,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// Capture records err. A nil error is ignored.
func (p *Panel) Capture(err error) {
	if err == nil {
		return
	}
	p.add(Entry{Message: err.Error()})
}

// Recover captures a panic in progress. It must be deferred directly:
//
//	defer panel.Recover()
func (p *Panel) Recover() {
	r := recover()
	if r == nil {
		return
	}
	var msg string
	switch v := r.(type) {
	case error:
		msg = v.Error()
	default:
		msg = fmt.Sprint(v)
	}
	p.add(Entry{Message: msg, Stack: string(debug.Stack()), Panic: true})
}

// Go runs fn on a new goroutine with panics captured.
func (p *Panel) Go(fn func()) {
	go func() {
		defer p.Recover()
		fn()
	}()
}

func (p *Panel) add(e Entry) {
	e.ID = uuid.NewString()
	e.Captured = p.now()

	p.mu.Lock()
	p.entries = append(p.entries, e)
	if over := len(p.entries) - p.capacity; over > 0 {
		p.entries = slices.Delete(p.entries, 0, over)
	}
	p.mu.Unlock()

	p.logger.Error("unhandled failure",
		zap.String("entry", e.ID),
		zap.String("message", e.Message),
		zap.Bool("panic", e.Panic),
	)
	p.bus.Emit(bus.TopicDiagnostic, e)
}

// Entries returns a copy of the captured entries.
func (p *Panel) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.entries)
}

// ErrUnknownEntry is returned by Dismiss for ids that are not held.
var ErrUnknownEntry = errors.New("diag: unknown entry")

// Dismiss removes one entry. An empty id dismisses everything.
func (p *Panel) Dismiss(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == "" {
		p.entries = nil
		return nil
	}
	i := slices.IndexFunc(p.entries, func(e Entry) bool { return e.ID == id })
	if i < 0 {
		return ErrUnknownEntry
	}
	p.entries = slices.Delete(p.entries, i, i+1)
	return nil
}
