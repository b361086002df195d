package model

import (
	"testing"
	"time"
)

func ts(sec int64) *time.Time {
	t := time.Unix(sec, 0).UTC()
	return &t
}

func TestSortMessages(t *testing.T) {
	msgs := []Message{
		{ID: "pending"},
		{ID: "c", CreatedAt: ts(30)},
		{ID: "a", CreatedAt: ts(10)},
		{ID: "b2", CreatedAt: ts(20)},
		{ID: "b1", CreatedAt: ts(20)},
	}
	SortMessages(msgs)

	want := []string{"a", "b1", "b2", "c", "pending"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Errorf("msgs[%d].ID = %q, want %q", i, msgs[i].ID, id)
		}
	}
}

func TestHasImage(t *testing.T) {
	m := Message{Text: "hi"}
	if m.HasImage() {
		t.Error("HasImage() = true for text message")
	}
	m.ImageData = "data:image/jpeg;base64,AAAA"
	if !m.HasImage() {
		t.Error("HasImage() = false for image message")
	}
}
