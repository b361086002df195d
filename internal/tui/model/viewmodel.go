package model

import (
	"sync"
	"time"

	"github.com/matheus3301/chatroom/internal/bus"
	chat "github.com/matheus3301/chatroom/internal/model"
	"github.com/matheus3301/chatroom/internal/status"
	chatsync "github.com/matheus3301/chatroom/internal/sync"
)

// Room is the read side of an open chat session.
type Room interface {
	Identity() chat.Identity
	Status() status.State
	Messages() []chat.Message
}

// ViewModel folds bus events and session reads into the state the views
// render, and signals the UI when it changed.
type ViewModel struct {
	mu sync.RWMutex

	room     Room
	identity *chat.Identity
	state    status.State
	messages []chat.Message
	lastSync time.Time
	lastErr  error

	refreshCh chan struct{}
}

// NewViewModel creates an empty view model.
func NewViewModel() *ViewModel {
	return &ViewModel{
		state:     status.Loading,
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Attach binds the view model to an opened room and reads its current state.
func (vm *ViewModel) Attach(r Room) {
	id := r.Identity()
	vm.mu.Lock()
	vm.room = r
	vm.identity = &id
	vm.state = r.Status()
	vm.messages = r.Messages()
	vm.lastErr = nil
	vm.mu.Unlock()
	vm.signalRefresh()
}

// Detach forgets the room and the signed-in user.
func (vm *ViewModel) Detach() {
	vm.mu.Lock()
	vm.room = nil
	vm.identity = nil
	vm.state = status.Loading
	vm.messages = nil
	vm.lastSync = time.Time{}
	vm.lastErr = nil
	vm.mu.Unlock()
	vm.signalRefresh()
}

// SetLastSync seeds the last sync time, typically from the cache.
func (vm *ViewModel) SetLastSync(t time.Time) {
	vm.mu.Lock()
	vm.lastSync = t
	vm.mu.Unlock()
}

// Apply folds one bus event into the view model. It returns true when the
// event changed something the views render.
func (vm *ViewModel) Apply(evt bus.Event) bool {
	vm.mu.Lock()
	changed := vm.apply(evt)
	vm.mu.Unlock()
	if changed {
		vm.signalRefresh()
	}
	return changed
}

func (vm *ViewModel) apply(evt bus.Event) bool {
	switch evt.Kind {
	case bus.KindStatusChanged:
		sc, ok := evt.Payload.(status.StatusChange)
		if !ok {
			return false
		}
		vm.state = sc.To
		if sc.To == status.Online {
			vm.lastErr = nil
		}
		return true
	case bus.KindCacheLoaded, bus.KindSnapshotApplied:
		if vm.room == nil {
			return false
		}
		vm.messages = vm.room.Messages()
		if applied, ok := evt.Payload.(chatsync.SnapshotApplied); ok {
			vm.lastSync = applied.ReadAt
		}
		return true
	case bus.KindSubscriptionError:
		err, _ := evt.Payload.(error)
		vm.lastErr = err
		return true
	case bus.KindSignedOut:
		vm.room = nil
		vm.identity = nil
		vm.messages = nil
		vm.state = status.Loading
		return true
	}
	return false
}

// Snapshot is a consistent copy of the view model for rendering.
type Snapshot struct {
	Identity *chat.Identity
	State    status.State
	Messages []chat.Message
	LastSync time.Time
	LastErr  error
}

// Offline reports whether the room is serving cached messages only.
func (s Snapshot) Offline() bool {
	return s.State == status.Offline
}

// Snapshot returns the current state.
func (vm *ViewModel) Snapshot() Snapshot {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return Snapshot{
		Identity: vm.identity,
		State:    vm.state,
		Messages: vm.messages,
		LastSync: vm.lastSync,
		LastErr:  vm.lastErr,
	}
}
