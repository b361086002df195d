package status

import (
	"testing"
	"time"

	"github.com/matheus3301/chatroom/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Loading {
		t.Errorf("initial state = %s, want LOADING", m.Current())
	}
}

// walkTo drives m along the shortest legal path to target.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Loading:    {},
		CacheReady: {CacheReady},
		Online:     {CacheReady, Online},
		Offline:    {CacheReady, Offline},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walk to %s: %v", target, err)
		}
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Loading, CacheReady},
		{CacheReady, Online},
		{CacheReady, Offline},
		{Online, Offline},
		{Offline, Online},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Loading, Online},
		{Loading, Offline},
		{Online, Loading},
		{Offline, CacheReady},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err == nil {
				t.Errorf("Transition(%s -> %s) should fail", tt.from, tt.to)
			}
			if m.Current() != tt.from {
				t.Errorf("state = %s, want unchanged %s", m.Current(), tt.from)
			}
		})
	}
}

func TestSameStateIsSilentNoop(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	walkTo(t, m, Online)

	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	if err := m.Transition(Online); err != nil {
		t.Fatalf("Transition(ONLINE -> ONLINE) error = %v", err)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(CacheReady); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindStatusChanged {
			t.Errorf("kind = %q, want %q", evt.Kind, bus.KindStatusChanged)
		}
		sc, ok := evt.Payload.(StatusChange)
		if !ok {
			t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
		}
		if sc.From != Loading || sc.To != CacheReady {
			t.Errorf("payload = %+v, want LOADING -> CACHE_READY", sc)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status event")
	}
}

func TestIsOffline(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Offline)
	if !m.IsOffline() {
		t.Error("IsOffline() = false in OFFLINE")
	}
	if err := m.Transition(Online); err != nil {
		t.Fatal(err)
	}
	if m.IsOffline() {
		t.Error("IsOffline() = true in ONLINE")
	}
}

func TestReset(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	walkTo(t, m, Online)

	ch, unsub := b.Subscribe(bus.KindStatusChanged, 4)
	defer unsub()

	m.Reset()
	if m.Current() != Loading {
		t.Fatalf("state after Reset = %s, want LOADING", m.Current())
	}
	evt := <-ch
	change, ok := evt.Payload.(StatusChange)
	if !ok || change.From != Online || change.To != Loading {
		t.Errorf("payload = %#v", evt.Payload)
	}

	m.Reset()
	select {
	case evt := <-ch:
		t.Errorf("Reset from LOADING published %#v", evt)
	default:
	}
	if err := m.Transition(CacheReady); err != nil {
		t.Errorf("Transition after Reset: %v", err)
	}
}
