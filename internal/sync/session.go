// Package sync keeps the visible message list of a chat room in step with the
// remote store, hydrating from the local cache first and falling back to it
// while offline.
package sync

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/matheus3301/chatroom/internal/bus"
	"github.com/matheus3301/chatroom/internal/logging"
	"github.com/matheus3301/chatroom/internal/media"
	"github.com/matheus3301/chatroom/internal/model"
	"github.com/matheus3301/chatroom/internal/remote"
	"github.com/matheus3301/chatroom/internal/status"
	"go.uber.org/zap"
)

// DefaultPlaceholderCaption is the text of an image message sent without one.
const DefaultPlaceholderCaption = "📷 Photo"

// Cache is the durable mirror of the last applied snapshot.
type Cache interface {
	Load(ctx context.Context) []model.Message
	Save(ctx context.Context, msgs []model.Message)
}

// Encoder turns picked assets into inline payloads.
type Encoder interface {
	Encode(ctx context.Context, asset *media.Asset) (*model.EncodedMedia, error)
}

// Config selects the room and how it is presented.
type Config struct {
	Collection         string
	HistoryLimit       int
	PlaceholderCaption string
}

// SnapshotApplied is the payload of KindSnapshotApplied events.
type SnapshotApplied struct {
	Count  int
	ReadAt time.Time
}

// MessageSent is the payload of KindMessageSent events.
type MessageSent struct {
	ID       string
	HasImage bool
}

// wireMessage is the record appended to the remote collection. The id and
// timestamp are assigned by the store.
type wireMessage struct {
	Text       string `json:"text"`
	AuthorName string `json:"authorName"`
	AuthorID   string `json:"authorId"`
	ImageData  string `json:"imageData,omitempty"`
}

type subscription struct {
	stream remote.Stream
	done   chan struct{}
}

// Session is one signed-in user's view of the room. It is the only writer of
// its message list, its status and the message cache.
type Session struct {
	identity model.Identity
	store    remote.DocumentStore
	cache    Cache
	gate     Encoder
	cfg      Config
	bus      *bus.Bus
	logger   *zap.Logger
	status   *status.Machine

	mu       gosync.Mutex
	messages []model.Message
	gen      uint64
	sub      *subscription
}

func NewSession(identity model.Identity, store remote.DocumentStore, cache Cache, gate Encoder, cfg Config, b *bus.Bus, logger *zap.Logger) *Session {
	if cfg.Collection == "" {
		cfg.Collection = "messages"
	}
	if cfg.PlaceholderCaption == "" {
		cfg.PlaceholderCaption = DefaultPlaceholderCaption
	}
	return &Session{
		identity: identity,
		store:    store,
		cache:    cache,
		gate:     gate,
		cfg:      cfg,
		bus:      b,
		logger:   logging.OrNop(logger).Named("sync").With(zap.String("room", cfg.Collection)),
		status:   status.NewMachine(b),
		messages: []model.Message{},
	}
}

// Identity returns the user the session sends as.
func (s *Session) Identity() model.Identity {
	return s.identity
}

// Status returns the current sync status.
func (s *Session) Status() status.State {
	return s.status.Current()
}

// Messages returns a copy of the visible message list.
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Open hydrates the list from the cache and then opens the live
// subscription. Any subscription left by a previous Open is cancelled first.
// A failed subscribe leaves the session Offline showing cached messages and
// returns a *SubscriptionError.
func (s *Session) Open(ctx context.Context) error {
	s.Close()
	s.status.Reset()

	cached := s.cache.Load(ctx)

	s.mu.Lock()
	s.messages = cached
	gen := s.gen
	s.mu.Unlock()

	if err := s.status.Transition(status.CacheReady); err != nil {
		return err
	}
	s.bus.Emit(bus.KindCacheLoaded, len(cached))
	s.logger.Info("cache loaded", zap.Int("messages", len(cached)))

	stream, err := s.store.Subscribe(ctx, remote.Query{Collection: s.cfg.Collection, Limit: s.cfg.HistoryLimit})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.fail(gen, err)
		return &SubscriptionError{Err: err}
	}

	sub := &subscription{stream: stream, done: make(chan struct{})}
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		stream.Cancel()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()

	go s.read(context.WithoutCancel(ctx), gen, sub)
	return nil
}

// Close cancels the live subscription and waits for its reader to exit.
// Events that arrive afterwards are ignored. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	s.gen++
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub == nil {
		return
	}
	sub.stream.Cancel()
	<-sub.done
	s.logger.Debug("subscription closed")
}

func (s *Session) read(ctx context.Context, gen uint64, sub *subscription) {
	defer close(sub.done)
	for ev := range sub.stream.Events() {
		switch {
		case ev.Err != nil:
			s.fail(gen, ev.Err)
		case ev.Snapshot != nil:
			s.apply(ctx, gen, ev.Snapshot)
		}
	}
}

// apply replaces the whole list with the snapshot and mirrors it to the cache.
func (s *Session) apply(ctx context.Context, gen uint64, snap *remote.Snapshot) {
	msgs := make([]model.Message, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		var w wireMessage
		if err := doc.Decode(&w); err != nil {
			s.logger.Warn("skipping undecodable message", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		msgs = append(msgs, model.Message{
			ID:         doc.ID,
			Text:       w.Text,
			AuthorName: w.AuthorName,
			AuthorID:   w.AuthorID,
			CreatedAt:  doc.CreatedAt,
			ImageData:  w.ImageData,
		})
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.messages = msgs
	s.mu.Unlock()

	// Close waits for this reader, so the save cannot outlive teardown.
	s.cache.Save(ctx, msgs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	if err := s.status.Transition(status.Online); err != nil {
		s.logger.Error("status transition failed", zap.Error(err))
	}
	s.bus.Emit(bus.KindSnapshotApplied, SnapshotApplied{Count: len(msgs), ReadAt: snap.ReadAt})
	s.logger.Debug("snapshot applied", zap.Int("messages", len(msgs)))
}

// fail marks the session offline and keeps the visible list as it is.
func (s *Session) fail(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.logger.Warn("subscription error, serving cached messages", zap.Error(err))
	if terr := s.status.Transition(status.Offline); terr != nil {
		s.logger.Error("status transition failed", zap.Error(terr))
	}
	s.bus.Emit(bus.KindSubscriptionError, &SubscriptionError{Err: err})
}

// SendText appends a text message. The visible list is not touched; the
// message appears with the next snapshot.
func (s *Session) SendText(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	return s.send(ctx, wireMessage{Text: text})
}

// SendImage encodes asset and appends it as an image message. Assets the
// gate rejects never reach the network. An empty caption is replaced by the
// placeholder caption.
func (s *Session) SendImage(ctx context.Context, asset *media.Asset, caption string) (string, error) {
	enc, err := s.gate.Encode(ctx, asset)
	if err != nil {
		return "", err
	}
	caption = strings.TrimSpace(caption)
	if caption == "" {
		caption = s.cfg.PlaceholderCaption
	}
	return s.send(ctx, wireMessage{Text: caption, ImageData: enc.Payload})
}

func (s *Session) send(ctx context.Context, w wireMessage) (string, error) {
	w.AuthorName = s.identity.Username
	w.AuthorID = s.identity.ID

	id, err := s.store.Append(ctx, s.cfg.Collection, w)
	if err != nil {
		s.logger.Warn("send failed", zap.Error(err))
		s.bus.Emit(bus.KindSendFailed, err)
		return "", fmt.Errorf("send message: %w", err)
	}
	s.bus.Emit(bus.KindMessageSent, MessageSent{ID: id, HasImage: w.ImageData != ""})
	s.logger.Debug("message sent", zap.String("id", id))
	return id, nil
}
