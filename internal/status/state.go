package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/chatroom/internal/bus"
)

// State is the synchronization status of a chat session.
type State string

const (
	Loading    State = "LOADING"
	CacheReady State = "CACHE_READY"
	Online     State = "ONLINE"
	Offline    State = "OFFLINE"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Loading:    {CacheReady},
	CacheReady: {Online, Offline},
	Online:     {Offline},
	Offline:    {Online},
}

// Machine tracks the sync status of one session.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Loading state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Loading,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition moves to a new state. Re-entering the current state is a no-op
// and publishes nothing. Returns an error if the transition is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	from := m.current
	if from == to {
		m.mu.Unlock()
		return nil
	}
	if !slices.Contains(validTransitions[from], to) {
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	m.current = to
	m.mu.Unlock()

	m.bus.Emit(bus.KindStatusChanged, StatusChange{From: from, To: to})
	return nil
}

// Reset returns the machine to Loading for a new session run.
func (m *Machine) Reset() {
	m.mu.Lock()
	from := m.current
	m.current = Loading
	m.mu.Unlock()

	if from != Loading {
		m.bus.Emit(bus.KindStatusChanged, StatusChange{From: from, To: Loading})
	}
}

// IsOffline reports whether the session is serving stale cached data.
func (m *Machine) IsOffline() bool {
	return m.Current() == Offline
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
