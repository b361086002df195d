package bus

import "time"

// Event kinds published by the engine.
const (
	KindStatusChanged     = "sync.status_changed"
	KindSnapshotApplied   = "sync.snapshot_applied"
	KindSubscriptionError = "sync.subscription_error"
	KindCacheLoaded       = "sync.cache_loaded"
	KindMessageSent       = "message.sent"
	KindSendFailed        = "message.send_failed"
	KindSignedIn          = "account.signed_in"
	KindSignedOut         = "account.signed_out"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
