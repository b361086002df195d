// Package memstore is an in-process remote backend. It backs the "memory"
// backend and gives tests a controllable remote with fault injection.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatroom/internal/remote"
)

type document struct {
	id        string
	seq       uint64
	createdAt *time.Time
	data      json.RawMessage
}

// Store implements remote.Backend in memory.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]*document
	streams     map[*stream]struct{}
	seq         uint64
	now         func() time.Time

	streamErr  error
	requestErr error

	accounts map[string]*account
	current  *remote.Account
}

var _ remote.Backend = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]*document),
		streams:     make(map[*stream]struct{}),
		accounts:    make(map[string]*account),
		now:         time.Now,
	}
}

// SetClock replaces the server clock used to stamp appended documents.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailStreams delivers err to every live subscription and makes new
// subscriptions fail the same way until Recover.
func (s *Store) FailStreams(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamErr = err
	for st := range s.streams {
		st.push(remote.StreamEvent{Err: err})
	}
}

// FailRequests makes every non-streaming call return err until Recover.
func (s *Store) FailRequests(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestErr = err
}

// Recover clears injected faults and pushes a fresh snapshot to every live
// subscription.
func (s *Store) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamErr = nil
	s.requestErr = nil
	for st := range s.streams {
		st.push(remote.StreamEvent{Snapshot: s.snapshotLocked(st.query)})
	}
}

// Close cancels every live subscription.
func (s *Store) Close() error {
	s.mu.Lock()
	streams := make([]*stream, 0, len(s.streams))
	for st := range s.streams {
		streams = append(streams, st)
	}
	s.mu.Unlock()

	for _, st := range streams {
		st.Cancel()
	}
	return nil
}

// Append stores data under a fresh id stamped with the server clock.
func (s *Store) Append(ctx context.Context, collection string, data any) (string, error) {
	id := uuid.NewString()
	if err := s.write(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

// Set creates or overwrites document id.
func (s *Store) Set(ctx context.Context, collection, id string, data any) error {
	return s.write(ctx, collection, id, data, false)
}

// Create stores document id unless it already exists.
func (s *Store) Create(ctx context.Context, collection, id string, data any) error {
	return s.write(ctx, collection, id, data, true)
}

func (s *Store) write(ctx context.Context, collection, id string, data any, exclusive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requestErr != nil {
		return s.requestErr
	}

	docs := s.collections[collection]
	if docs == nil {
		docs = make(map[string]*document)
		s.collections[collection] = docs
	}
	existing, ok := docs[id]
	if ok && exclusive {
		return remote.ErrAlreadyExists
	}

	s.seq++
	doc := &document{id: id, seq: s.seq, data: raw}
	if ok {
		doc.seq = existing.seq
		doc.createdAt = existing.createdAt
	} else {
		created := s.now().UTC()
		doc.createdAt = &created
	}
	docs[id] = doc
	s.notifyLocked(collection)
	return nil
}

// Get returns document id, or nil if it does not exist.
func (s *Store) Get(ctx context.Context, collection, id string) (*remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requestErr != nil {
		return nil, s.requestErr
	}
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, nil
	}
	out := doc.export()
	return &out, nil
}

// Delete removes document id. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requestErr != nil {
		return s.requestErr
	}
	if _, ok := s.collections[collection][id]; !ok {
		return nil
	}
	delete(s.collections[collection], id)
	s.notifyLocked(collection)
	return nil
}

// Subscribe opens a live query. The current snapshot, or the injected stream
// fault, is delivered first.
func (s *Store) Subscribe(ctx context.Context, q remote.Query) (remote.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := newStream(q, s.forget)

	s.mu.Lock()
	s.streams[st] = struct{}{}
	if s.streamErr != nil {
		st.push(remote.StreamEvent{Err: s.streamErr})
	} else {
		st.push(remote.StreamEvent{Snapshot: s.snapshotLocked(q)})
	}
	s.mu.Unlock()

	go st.run()
	return st, nil
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

func (s *Store) forget(st *stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, st)
}

func (s *Store) notifyLocked(collection string) {
	if s.streamErr != nil {
		return
	}
	for st := range s.streams {
		if st.query.Collection == collection {
			st.push(remote.StreamEvent{Snapshot: s.snapshotLocked(st.query)})
		}
	}
}

func (s *Store) snapshotLocked(q remote.Query) *remote.Snapshot {
	docs := make([]*document, 0, len(s.collections[q.Collection]))
	for _, d := range s.collections[q.Collection] {
		docs = append(docs, d)
	}
	slices.SortFunc(docs, compareDocuments)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[len(docs)-q.Limit:]
	}

	out := make([]remote.Document, len(docs))
	for i, d := range docs {
		out[i] = d.export()
	}
	return &remote.Snapshot{Documents: out, ReadAt: s.now().UTC()}
}

func compareDocuments(a, b *document) int {
	switch {
	case a.createdAt == nil && b.createdAt != nil:
		return 1
	case a.createdAt != nil && b.createdAt == nil:
		return -1
	case a.createdAt != nil && b.createdAt != nil:
		if c := a.createdAt.Compare(*b.createdAt); c != 0 {
			return c
		}
	}
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	}
	return 0
}

func (d *document) export() remote.Document {
	out := remote.Document{ID: d.id, Data: slices.Clone(d.data)}
	if d.createdAt != nil {
		t := *d.createdAt
		out.CreatedAt = &t
	}
	return out
}
