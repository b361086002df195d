package app

import (
	"context"
	gosync "sync"

	"github.com/matheus3301/chatroom/internal/bus"
	"github.com/matheus3301/chatroom/internal/cache"
	"github.com/matheus3301/chatroom/internal/media"
	"github.com/matheus3301/chatroom/internal/model"
	"github.com/matheus3301/chatroom/internal/remote"
	"github.com/matheus3301/chatroom/internal/sync"
	"go.uber.org/zap"
)

// Sessions creates sync sessions and keeps at most one open at a time.
type Sessions struct {
	store  remote.DocumentStore
	cache  *cache.Store
	gate   *media.Gate
	cfg    sync.Config
	bus    *bus.Bus
	logger *zap.Logger

	mu      gosync.Mutex
	current *sync.Session
}

func NewSessions(p Params, store remote.DocumentStore, c *cache.Store, gate *media.Gate, b *bus.Bus, logger *zap.Logger) *Sessions {
	return &Sessions{
		store: store,
		cache: c,
		gate:  gate,
		cfg: sync.Config{
			Collection:         p.Config.Chat.Room,
			HistoryLimit:       p.Config.Chat.HistoryLimit,
			PlaceholderCaption: p.Config.Media.PlaceholderCaption,
		},
		bus:    b,
		logger: logger,
	}
}

// Open closes the current session, if any, and opens a new one for id.
// Subscription failures leave the returned session offline and are
// reported alongside it.
func (s *Sessions) Open(ctx context.Context, id model.Identity) (*sync.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Close()
	}
	sess := sync.NewSession(id, s.store, s.cache, s.gate, s.cfg, s.bus, s.logger)
	s.current = sess
	return sess, sess.Open(ctx)
}

// Current returns the open session, or nil.
func (s *Sessions) Current() *sync.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// CloseAll tears down the open session.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
}
