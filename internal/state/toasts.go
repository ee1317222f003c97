package state

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/metrics"
)

// Severity of a toast.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Toast is a transient notification.
type Toast struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Severity  Severity      `json:"severity"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Expired reports whether the toast's display time has passed.
func (t Toast) Expired(now time.Time) bool {
	return t.Duration > 0 && !now.Before(t.CreatedAt.Add(t.Duration))
}

// ToastStore is the queue of toasts. Expired toasts are dropped lazily.
type ToastStore struct {
	mu       sync.Mutex
	toasts   []Toast
	duration time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
	notifier
}

// NewToastStore creates a queue whose toasts last d.
func NewToastStore(b *bus.Bus, m *metrics.Metrics, d time.Duration) *ToastStore {
	return &ToastStore{
		duration: d,
		metrics:  m,
		now:      time.Now,
		notifier: notifier{bus: b, name: ToastsName},
	}
}

// Raise queues a toast and returns it.
func (s *ToastStore) Raise(sev Severity, msg string) Toast {
	t := Toast{
		ID:        uuid.NewString(),
		Message:   msg,
		Severity:  sev,
		Duration:  s.duration,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	s.toasts = append(s.pruneLocked(), t)
	s.mu.Unlock()

	s.metrics.Toast(string(sev))
	s.bus.Emit(bus.TopicToast, t)
	s.changed()
	return t
}

// Info raises an informational toast.
func (s *ToastStore) Info(msg string) Toast { return s.Raise(SeverityInfo, msg) }

// Success raises a success toast.
func (s *ToastStore) Success(msg string) Toast { return s.Raise(SeveritySuccess, msg) }

// Error raises an error toast.
func (s *ToastStore) Error(msg string) Toast { return s.Raise(SeverityError, msg) }

// Active returns the unexpired toasts, oldest first.
func (s *ToastStore) Active() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts = s.pruneLocked()
	return slices.Clone(s.toasts)
}

// Latest returns the newest unexpired toast.
func (s *ToastStore) Latest() (Toast, bool) {
	active := s.Active()
	if len(active) == 0 {
		return Toast{}, false
	}
	return active[len(active)-1], true
}

// Dismiss removes a toast before it expires.
func (s *ToastStore) Dismiss(id string) bool {
	s.mu.Lock()
	n := len(s.toasts)
	s.toasts = slices.DeleteFunc(s.toasts, func(t Toast) bool { return t.ID == id })
	removed := len(s.toasts) != n
	s.mu.Unlock()
	if removed {
		s.changed()
	}
	return removed
}

func (s *ToastStore) pruneLocked() []Toast {
	now := s.now()
	return slices.DeleteFunc(s.toasts, func(t Toast) bool { return t.Expired(now) })
}
