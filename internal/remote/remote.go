// Package remote defines the collaborators the client needs from its backend:
// a document store with live ordered queries and an authentication provider.
package remote

import (
	"context"
	"encoding/json"
	"time"
)

// Document is one stored record. CreatedAt is the server-assigned timestamp
// and is nil until the server has resolved it.
type Document struct {
	ID        string
	CreatedAt *time.Time
	Data      json.RawMessage
}

// Decode unmarshals the document body into v.
func (d *Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Query selects a collection ordered by server timestamp ascending.
// Limit keeps only the most recent documents; zero means unlimited.
type Query struct {
	Collection string
	Limit      int
}

// Snapshot is the complete ordered result set of a query at one moment.
type Snapshot struct {
	Documents []Document
	ReadAt    time.Time
}

// StreamEvent carries either a snapshot or a subscription error. An error
// does not end the stream; a later snapshot means the query recovered.
type StreamEvent struct {
	Snapshot *Snapshot
	Err      error
}

// Stream is a live query. Events are delivered in emission order on a
// single channel that is closed after Cancel.
type Stream interface {
	Events() <-chan StreamEvent
	Cancel()
}

// DocumentStore is the remote document database.
type DocumentStore interface {
	// Append stores data under a new id with a server timestamp.
	Append(ctx context.Context, collection string, data any) (string, error)
	// Set creates or overwrites the document id.
	Set(ctx context.Context, collection, id string, data any) error
	// Create stores the document id, failing with ErrAlreadyExists if it exists.
	Create(ctx context.Context, collection, id string, data any) error
	// Get returns the document id, or nil when it does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)
	Delete(ctx context.Context, collection, id string) error
	Subscribe(ctx context.Context, q Query) (Stream, error)
}

// Account is an authenticated remote user.
type Account struct {
	UID   string
	Email string
	Token string
}

// AuthProvider is the remote email/password authentication service.
type AuthProvider interface {
	CreateAccount(ctx context.Context, email, password string) (*Account, error)
	SignIn(ctx context.Context, email, password string) (*Account, error)
	SignOut(ctx context.Context) error
	// DeleteAccount removes the signed-in account and ends its session.
	DeleteAccount(ctx context.Context) error
}

// Backend bundles the collaborators of one remote deployment.
type Backend interface {
	DocumentStore
	AuthProvider
	Close() error
}
