package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/chatline/internal/bus"
)

// State is the lifecycle state of the client's authenticated session.
type State string

const (
	Booting         State = "BOOTING"
	Checking        State = "CHECKING"
	Unauthenticated State = "UNAUTHENTICATED"
	Authenticating  State = "AUTHENTICATING"
	Authenticated   State = "AUTHENTICATED"
)

// validTransitions defines allowed state transitions. Any state may fall to
// Unauthenticated because a 401 can arrive on any request.
var validTransitions = map[State][]State{
	Booting:         {Checking, Unauthenticated},
	Checking:        {Authenticated, Unauthenticated},
	Unauthenticated: {Authenticating, Checking},
	Authenticating:  {Authenticated, Unauthenticated},
	Authenticated:   {Unauthenticated, Checking},
}

// Machine tracks and enforces session state transitions. There is at most
// one session per client context, so there is exactly one Machine.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Booting, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Emit(bus.TopicSessionStatus, StatusChange{From: from, To: to})
	return nil
}

// Expire moves to Unauthenticated from wherever the session is. It reports
// whether a transition happened.
func (m *Machine) Expire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == Unauthenticated {
		return false
	}
	from := m.current
	m.current = Unauthenticated
	m.bus.Emit(bus.TopicSessionStatus, StatusChange{From: from, To: Unauthenticated})
	return true
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
