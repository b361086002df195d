package model

import (
	"slices"
	"strings"
	"time"
)

// Message is a chat room message as delivered by the remote store.
type Message struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	AuthorName string     `json:"authorName"`
	AuthorID   string     `json:"authorId"`
	CreatedAt  *time.Time `json:"createdAt"` // nil until the server assigns it
	ImageData  string     `json:"imageData,omitempty"`
}

// HasImage reports whether the message carries an inline image payload.
func (m *Message) HasImage() bool {
	return m.ImageData != ""
}

// Credentials are the login secrets replayed by auto-login.
type Credentials struct {
	Identifier string
	Secret     string
}

// Identity is the resolved user returned after authentication.
// Username doubles as the display name and is always lower-case.
type Identity struct {
	ID        string    `json:"uid"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// EncodedMedia is an image ready to be embedded in a message record.
type EncodedMedia struct {
	MimeType string
	Payload  string // data URI
}

// Size returns the encoded payload length in bytes.
func (e *EncodedMedia) Size() int {
	return len(e.Payload)
}

// CompareMessages orders messages ascending by CreatedAt. Messages without a
// server timestamp sort after all resolved ones; ties fall back to ID.
func CompareMessages(a, b Message) int {
	switch {
	case a.CreatedAt == nil && b.CreatedAt == nil:
		return strings.Compare(a.ID, b.ID)
	case a.CreatedAt == nil:
		return 1
	case b.CreatedAt == nil:
		return -1
	}
	if c := a.CreatedAt.Compare(*b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// SortMessages sorts msgs in place in visible order.
func SortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, CompareMessages)
}
