package views

import (
	"strings"
	"testing"
	"time"

	chat "github.com/matheus3301/chatroom/internal/model"
	"github.com/matheus3301/chatroom/internal/status"
	"github.com/matheus3301/chatroom/internal/tui/model"
	"github.com/matheus3301/chatroom/internal/tui/ui"
)

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello", "hello"},
		{"👍\U0001F3FB", "👍"},
		{"👨\u200d👩", "👨👩"},
		{"❤️", "❤"},
		{"📷 Photo", "📷 Photo"},
	}
	for _, tt := range tests {
		if got := sanitizeForTerminal(tt.in); got != tt.want {
			t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2026, 5, 10, 18, 0, 0, 0, time.Local)
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2026, 5, 10, 9, 30, 0, 0, time.Local), "09:30"},
		{time.Date(2026, 5, 9, 9, 30, 0, 0, time.Local), "May 09 09:30"},
		{time.Date(2025, 12, 31, 23, 59, 0, 0, time.Local), "2025-12-31 23:59"},
	}
	for _, tt := range tests {
		if got := formatTimestamp(tt.at, now); got != tt.want {
			t.Errorf("formatTimestamp(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
}

func TestStatusBarLine(t *testing.T) {
	sb := NewStatusBar(ui.DefaultTheme(), "work")
	id := &chat.Identity{ID: "u1", Username: "bob"}

	tests := []struct {
		name     string
		snap     model.Snapshot
		contains []string
		excludes []string
	}{
		{
			name:     "signed out",
			snap:     model.Snapshot{State: status.Loading},
			contains: []string{"work", "signed out", "loading"},
		},
		{
			name:     "online",
			snap:     model.Snapshot{Identity: id, State: status.Online},
			contains: []string{"@bob", "online"},
			excludes: []string{OfflineBanner},
		},
		{
			name:     "offline shows banner",
			snap:     model.Snapshot{Identity: id, State: status.Offline},
			contains: []string{OfflineBanner},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := sb.line(tt.snap)
			for _, s := range tt.contains {
				if !strings.Contains(line, s) {
					t.Errorf("line %q missing %q", line, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(line, s) {
					t.Errorf("line %q should not contain %q", line, s)
				}
			}
		})
	}
}

func TestRenderMessage(t *testing.T) {
	mt := NewMessageThread(ui.DefaultTheme(), "messages")
	now := time.Date(2026, 5, 10, 18, 0, 0, 0, time.Local)
	at := time.Date(2026, 5, 10, 9, 30, 0, 0, time.Local)

	own := mt.render(chat.Message{ID: "1", Text: "hi [red]", AuthorName: "bob", AuthorID: "u1", CreatedAt: &at}, "u1", now)
	if !strings.Contains(own, "You") || !strings.Contains(own, "09:30") {
		t.Errorf("own message = %q", own)
	}
	if !strings.Contains(own, "hi [red[]") {
		t.Errorf("text should be escaped: %q", own)
	}

	pending := mt.render(chat.Message{ID: "2", Text: "x", AuthorName: "amy", AuthorID: "u2"}, "u1", now)
	if !strings.Contains(pending, "amy") || !strings.Contains(pending, "sending") {
		t.Errorf("pending message = %q", pending)
	}

	img := mt.render(chat.Message{ID: "3", AuthorID: "u2", ImageData: "data:image/jpeg;base64,AAAA"}, "u1", now)
	if !strings.Contains(img, "image/jpeg 3 B, id 3") {
		t.Errorf("image message = %q", img)
	}
}
