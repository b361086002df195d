package redisstore

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/chatroom/internal/remote"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// reconnectDelay paces Receive while the connection is down. The go-redis
// pub/sub client reconnects and resubscribes on the next Receive.
const reconnectDelay = 500 * time.Millisecond

type stream struct {
	store  *Store
	query  remote.Query
	pubsub *redis.PubSub

	out    chan remote.StreamEvent
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe opens a live query on q's collection. The first event is the
// current snapshot; every change notification yields a fresh full snapshot.
func (s *Store) Subscribe(ctx context.Context, q remote.Query) (remote.Stream, error) {
	pubsub := s.client.Subscribe(ctx, s.channel(q.Collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.Background())
	st := &stream{
		store:  s,
		query:  q,
		pubsub: pubsub,
		out:    make(chan remote.StreamEvent),
		ctx:    sctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.streams[st] = struct{}{}
	s.mu.Unlock()

	go st.run()
	return st, nil
}

func (st *stream) Events() <-chan remote.StreamEvent {
	return st.out
}

// Cancel unsubscribes and waits for the reader to exit.
func (st *stream) Cancel() {
	st.once.Do(func() {
		st.cancel()
		_ = st.pubsub.Close()
		st.store.mu.Lock()
		delete(st.store.streams, st)
		st.store.mu.Unlock()
	})
	<-st.done
}

func (st *stream) run() {
	defer close(st.done)
	defer close(st.out)

	logger := st.store.logger.With(zap.String("collection", st.query.Collection))
	failing := false

	refresh := func() bool {
		snap, err := st.store.snapshot(st.ctx, st.query)
		if err != nil {
			if st.ctx.Err() != nil {
				return false
			}
			logger.Warn("snapshot read failed", zap.Error(err))
			failing = true
			return st.emit(remote.StreamEvent{Err: err})
		}
		failing = false
		return st.emit(remote.StreamEvent{Snapshot: snap})
	}

	if !refresh() {
		return
	}
	for {
		msg, err := st.pubsub.Receive(st.ctx)
		if err != nil {
			if st.ctx.Err() != nil {
				return
			}
			if !failing {
				logger.Warn("subscription interrupted", zap.Error(err))
				failing = true
				if !st.emit(remote.StreamEvent{Err: err}) {
					return
				}
			}
			select {
			case <-time.After(reconnectDelay):
				continue
			case <-st.ctx.Done():
				return
			}
		}

		switch msg.(type) {
		case *redis.Message, *redis.Subscription:
			if !refresh() {
				return
			}
		}
	}
}

func (st *stream) emit(ev remote.StreamEvent) bool {
	select {
	case st.out <- ev:
		return true
	case <-st.ctx.Done():
		return false
	}
}
