package memstore

import (
	"sync"

	"github.com/matheus3301/chatroom/internal/remote"
)

// stream queues events without blocking the store and hands them to a single
// delivery goroutine, preserving emission order.
type stream struct {
	query  remote.Query
	forget func(*stream)

	mu      sync.Mutex
	pending []remote.StreamEvent
	wake    chan struct{}

	out      chan remote.StreamEvent
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

func newStream(q remote.Query, forget func(*stream)) *stream {
	return &stream{
		query:  q,
		forget: forget,
		wake:   make(chan struct{}, 1),
		out:    make(chan remote.StreamEvent),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

func (st *stream) Events() <-chan remote.StreamEvent {
	return st.out
}

// Cancel stops delivery and waits for the delivery goroutine to exit.
func (st *stream) Cancel() {
	st.stopOnce.Do(func() {
		close(st.done)
		st.forget(st)
	})
	<-st.exited
}

func (st *stream) push(ev remote.StreamEvent) {
	st.mu.Lock()
	st.pending = append(st.pending, ev)
	st.mu.Unlock()

	select {
	case st.wake <- struct{}{}:
	default:
	}
}

func (st *stream) run() {
	defer close(st.exited)
	defer close(st.out)

	for {
		st.mu.Lock()
		batch := st.pending
		st.pending = nil
		st.mu.Unlock()

		for _, ev := range batch {
			select {
			case st.out <- ev:
			case <-st.done:
				return
			}
		}

		select {
		case <-st.wake:
		case <-st.done:
			return
		}
	}
}
