package sync

import (
	"context"
	"errors"
	"slices"
	gosync "sync"
	"testing"
	"time"

	"github.com/matheus3301/chatroom/internal/bus"
	"github.com/matheus3301/chatroom/internal/media"
	"github.com/matheus3301/chatroom/internal/model"
	"github.com/matheus3301/chatroom/internal/remote"
	"github.com/matheus3301/chatroom/internal/remote/memstore"
	"github.com/matheus3301/chatroom/internal/status"
)

var bob = model.Identity{ID: "uid-bob", Email: "bob@example.com", Username: "bob"}

// fakeCache records saves and fails the test on writes after seal. When hold
// is set, Save signals entered and waits for hold to close.
type fakeCache struct {
	t       *testing.T
	mu      gosync.Mutex
	stored  []model.Message
	saves   int
	sealed  bool
	hold    chan struct{}
	entered chan struct{}
}

func (c *fakeCache) Load(context.Context) []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.stored)
}

func (c *fakeCache) Save(_ context.Context, msgs []model.Message) {
	if c.hold != nil {
		select {
		case c.entered <- struct{}{}:
		default:
		}
		<-c.hold
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		c.t.Errorf("cache written after teardown: %d messages", len(msgs))
	}
	c.stored = slices.Clone(msgs)
	c.saves++
}

func (c *fakeCache) seal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
}

func (c *fakeCache) saveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func (c *fakeCache) snapshot() []model.Message {
	return c.Load(context.Background())
}

// countingStore counts appends reaching the remote.
type countingStore struct {
	remote.DocumentStore
	mu      gosync.Mutex
	appends int
	lastQ   remote.Query
}

func (s *countingStore) Append(ctx context.Context, collection string, data any) (string, error) {
	s.mu.Lock()
	s.appends++
	s.mu.Unlock()
	return s.DocumentStore.Append(ctx, collection, data)
}

func (s *countingStore) Subscribe(ctx context.Context, q remote.Query) (remote.Stream, error) {
	s.mu.Lock()
	s.lastQ = q
	s.mu.Unlock()
	return s.DocumentStore.Subscribe(ctx, q)
}

func (s *countingStore) appendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends
}

type failingStore struct {
	remote.DocumentStore
	err error
}

func (s failingStore) Subscribe(context.Context, remote.Query) (remote.Stream, error) {
	return nil, s.err
}

type fixture struct {
	remote *memstore.Store
	store  *countingStore
	cache  *fakeCache
	bus    *bus.Bus
	sess   *Session
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	rs := memstore.New()
	f := &fixture{
		remote: rs,
		store:  &countingStore{DocumentStore: rs},
		cache:  &fakeCache{t: t},
		bus:    bus.New(),
	}
	gate := media.NewGate(media.Options{}, nil)
	f.sess = NewSession(bob, f.store, f.cache, gate, cfg, f.bus, nil)
	t.Cleanup(f.sess.Close)
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func (f *fixture) appendText(t *testing.T, text string) string {
	t.Helper()
	id, err := f.remote.Append(context.Background(), "messages", wireMessage{Text: text, AuthorName: "alice", AuthorID: "uid-alice"})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestOpenHydratesFromCacheThenGoesOnline(t *testing.T) {
	f := newFixture(t, Config{})
	f.cache.stored = []model.Message{{ID: "cached", Text: "from last run"}}
	remoteID := f.appendText(t, "live")

	changes, unsub := f.bus.Subscribe(bus.KindStatusChanged, 16)
	defer unsub()
	loaded, unsubLoaded := f.bus.Subscribe(bus.KindCacheLoaded, 1)
	defer unsubLoaded()

	if err := f.sess.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if evt := <-loaded; evt.Payload != 1 {
		t.Errorf("cache_loaded payload = %v, want 1", evt.Payload)
	}
	waitFor(t, "online", func() bool { return f.sess.Status() == status.Online })

	got := f.sess.Messages()
	if len(got) != 1 || got[0].ID != remoteID || got[0].Text != "live" {
		t.Errorf("Messages() = %+v, want only the remote message", got)
	}
	if cached := f.cache.snapshot(); len(cached) != 1 || cached[0].ID != remoteID {
		t.Errorf("cache = %v, want mirror of snapshot", ids(cached))
	}

	var seen []status.State
	for len(changes) > 0 {
		seen = append(seen, (<-changes).Payload.(status.StatusChange).To)
	}
	want := []status.State{status.CacheReady, status.Online}
	if !slices.Equal(seen, want) {
		t.Errorf("transitions = %v, want %v", seen, want)
	}
}

func TestSnapshotReplacesWholeList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	a := f.appendText(t, "a")
	b := f.appendText(t, "b")

	if err := f.sess.Open(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "two messages", func() bool { return len(f.sess.Messages()) == 2 })

	if err := f.remote.Delete(ctx, "messages", a); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "deletion applied", func() bool {
		return slices.Equal(ids(f.sess.Messages()), []string{b})
	})
	if got := ids(f.cache.snapshot()); !slices.Equal(got, []string{b}) {
		t.Errorf("cache = %v, want [%s]", got, b)
	}
}

func TestSubscriptionErrorKeepsListAndGoesOffline(t *testing.T) {
	f := newFixture(t, Config{})
	f.appendText(t, "one")
	f.appendText(t, "two")

	if err := f.sess.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "online", func() bool { return f.sess.Status() == status.Online && len(f.sess.Messages()) == 2 })
	before := f.sess.Messages()
	saves := f.cache.saveCount()

	errs, unsub := f.bus.Subscribe(bus.KindSubscriptionError, 1)
	defer unsub()

	f.remote.FailStreams(errors.New("connection reset"))
	waitFor(t, "offline", func() bool { return f.sess.Status() == status.Offline })

	if got := f.sess.Messages(); !slices.Equal(ids(got), ids(before)) {
		t.Errorf("Messages() = %v, want unchanged %v", ids(got), ids(before))
	}
	if f.cache.saveCount() != saves {
		t.Error("cache rewritten on subscription error")
	}
	evt := <-errs
	var se *SubscriptionError
	if err, ok := evt.Payload.(error); !ok || !errors.As(err, &se) {
		t.Errorf("payload = %#v, want *SubscriptionError", evt.Payload)
	}

	f.remote.Recover()
	waitFor(t, "back online", func() bool { return f.sess.Status() == status.Online })
}

func TestFirstSubscriptionFailureServesCache(t *testing.T) {
	f := newFixture(t, Config{})
	f.cache.stored = []model.Message{{ID: "c1"}, {ID: "c2"}}
	f.remote.FailStreams(errors.New("offline"))

	if err := f.sess.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "offline", func() bool { return f.sess.Status() == status.Offline })
	if got := ids(f.sess.Messages()); !slices.Equal(got, []string{"c1", "c2"}) {
		t.Errorf("Messages() = %v, want cached list", got)
	}
}

func TestSubscribeRejectedAtOpen(t *testing.T) {
	boom := errors.New("permission denied")
	cache := &fakeCache{t: t, stored: []model.Message{{ID: "c1"}}}
	sess := NewSession(bob, failingStore{err: boom}, cache, media.NewGate(media.Options{}, nil), Config{}, nil, nil)

	err := sess.Open(context.Background())
	var se *SubscriptionError
	if !errors.As(err, &se) || !errors.Is(err, boom) {
		t.Fatalf("Open() err = %v, want *SubscriptionError wrapping cause", err)
	}
	if sess.Status() != status.Offline {
		t.Errorf("Status() = %s, want OFFLINE", sess.Status())
	}
	if got := ids(sess.Messages()); !slices.Equal(got, []string{"c1"}) {
		t.Errorf("Messages() = %v", got)
	}
}

func TestCloseStopsWrites(t *testing.T) {
	f := newFixture(t, Config{})
	if err := f.sess.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "online", func() bool { return f.sess.Status() == status.Online })

	f.sess.Close()
	f.cache.seal()
	f.sess.Close()

	if n := f.remote.Subscribers(); n != 0 {
		t.Errorf("Subscribers() after Close = %d", n)
	}
	f.appendText(t, "after teardown")
	time.Sleep(50 * time.Millisecond)
	if got := f.sess.Messages(); len(got) != 0 {
		t.Errorf("Messages() changed after Close: %v", ids(got))
	}
}

func TestSlowCacheSaveDoesNotBlockReaders(t *testing.T) {
	f := newFixture(t, Config{})
	f.cache.hold = make(chan struct{})
	f.cache.entered = make(chan struct{}, 1)
	release := gosync.OnceFunc(func() { close(f.cache.hold) })
	t.Cleanup(release)
	id := f.appendText(t, "hello")

	if err := f.sess.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case <-f.cache.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot never reached the cache")
	}

	got := make(chan []model.Message, 1)
	go func() { got <- f.sess.Messages() }()
	select {
	case msgs := <-got:
		if !slices.Equal(ids(msgs), []string{id}) {
			t.Errorf("Messages() = %v, want [%s]", ids(msgs), id)
		}
	case <-time.After(time.Second):
		t.Fatal("Messages() blocked behind the cache save")
	}
	if s := f.sess.Status(); s == status.Online {
		t.Error("Online before the snapshot was mirrored")
	}

	release()
	waitFor(t, "online", func() bool { return f.sess.Status() == status.Online })
	if cached := ids(f.cache.snapshot()); !slices.Equal(cached, []string{id}) {
		t.Errorf("cache = %v, want [%s]", cached, id)
	}
}

func TestReopenKeepsSingleSubscription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	for range 3 {
		if err := f.sess.Open(ctx); err != nil {
			t.Fatal(err)
		}
		if n := f.remote.Subscribers(); n != 1 {
			t.Fatalf("Subscribers() = %d, want 1", n)
		}
	}
	waitFor(t, "online", func() bool { return f.sess.Status() == status.Online })
}

func TestHistoryLimitReachesQuery(t *testing.T) {
	f := newFixture(t, Config{Collection: "general", HistoryLimit: 50})
	if err := f.sess.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.store.mu.Lock()
	q := f.store.lastQ
	f.store.mu.Unlock()
	if q.Collection != "general" || q.Limit != 50 {
		t.Errorf("query = %+v", q)
	}
}

func TestSendTextIsNotOptimistic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	if _, err := f.sess.SendText(ctx, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("SendText(blank) err = %v, want ErrEmptyMessage", err)
	}

	id, err := f.sess.SendText(ctx, " hello ")
	if err != nil {
		t.Fatal(err)
	}
	if got := f.sess.Messages(); len(got) != 0 {
		t.Errorf("message inserted locally before any snapshot: %v", ids(got))
	}

	doc, err := f.remote.Get(ctx, "messages", id)
	if err != nil || doc == nil {
		t.Fatalf("Get() = %v, %v", doc, err)
	}
	var w wireMessage
	if err := doc.Decode(&w); err != nil {
		t.Fatal(err)
	}
	if w.Text != "hello" || w.AuthorName != "bob" || w.AuthorID != "uid-bob" {
		t.Errorf("stored = %+v", w)
	}

	if err := f.sess.Open(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "own message via snapshot", func() bool {
		msgs := f.sess.Messages()
		return len(msgs) == 1 && msgs[0].ID == id && msgs[0].CreatedAt != nil
	})
}

func TestSendFailure(t *testing.T) {
	f := newFixture(t, Config{})
	boom := errors.New("unavailable")
	f.remote.FailRequests(boom)

	failed, unsub := f.bus.Subscribe(bus.KindSendFailed, 1)
	defer unsub()

	if _, err := f.sess.SendText(context.Background(), "hi"); !errors.Is(err, boom) {
		t.Errorf("SendText() err = %v, want %v", err, boom)
	}
	select {
	case <-failed:
	default:
		t.Error("no send_failed event")
	}
}

func TestSendImage(t *testing.T) {
	ctx := context.Background()

	t.Run("cancelled pick", func(t *testing.T) {
		f := newFixture(t, Config{})
		if _, err := f.sess.SendImage(ctx, nil, "caption"); !errors.Is(err, media.ErrNoAssetSelected) {
			t.Errorf("err = %v, want ErrNoAssetSelected", err)
		}
		if f.store.appendCount() != 0 {
			t.Error("cancelled pick reached the network")
		}
	})

	t.Run("oversized", func(t *testing.T) {
		f := newFixture(t, Config{})
		asset := &media.Asset{MimeType: "image/jpeg", Data: make([]byte, 786349)}
		var se *media.SizeExceededError
		if _, err := f.sess.SendImage(ctx, asset, ""); !errors.As(err, &se) {
			t.Errorf("err = %v, want *SizeExceededError", err)
		}
		if f.store.appendCount() != 0 {
			t.Error("rejected image reached the network")
		}
	})

	t.Run("placeholder caption", func(t *testing.T) {
		f := newFixture(t, Config{PlaceholderCaption: "[image]"})
		asset := &media.Asset{MimeType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
		id, err := f.sess.SendImage(ctx, asset, "  ")
		if err != nil {
			t.Fatal(err)
		}
		doc, _ := f.remote.Get(ctx, "messages", id)
		var w wireMessage
		_ = doc.Decode(&w)
		if w.Text != "[image]" {
			t.Errorf("Text = %q, want placeholder", w.Text)
		}
		if w.ImageData != "data:image/jpeg;base64,/9j/" {
			t.Errorf("ImageData = %q", w.ImageData)
		}
	})
}
