package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// Level is the severity of a flash notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

var lifetimes = map[Level]time.Duration{
	LevelInfo:  5 * time.Second,
	LevelWarn:  8 * time.Second,
	LevelError: 10 * time.Second,
}

// Notice is one transient line on the flash bar.
type Notice struct {
	Text  string
	Level Level
	Until time.Time
}

// Flash holds the latest notice. Posting replaces whatever was shown.
type Flash struct {
	mu      sync.RWMutex
	notice  Notice
	now     func() time.Time
	changed chan struct{}
}

// NewFlash creates an empty flash.
func NewFlash() *Flash {
	return &Flash{
		now:     time.Now,
		changed: make(chan struct{}, 1),
	}
}

// Post shows text at level for the level's lifetime.
func (f *Flash) Post(level Level, text string) {
	f.mu.Lock()
	f.notice = Notice{Text: text, Level: level, Until: f.now().Add(lifetimes[level])}
	f.mu.Unlock()
	select {
	case f.changed <- struct{}{}:
	default:
	}
}

func (f *Flash) Info(text string) { f.Post(LevelInfo, text) }
func (f *Flash) Warn(text string) { f.Post(LevelWarn, text) }
func (f *Flash) Err(err error)    { f.Post(LevelError, err.Error()) }

// Current returns the live notice; ok is false once it expired.
func (f *Flash) Current() (n Notice, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.notice.Text == "" || f.now().After(f.notice.Until) {
		return Notice{}, false
	}
	return f.notice, true
}

// Changed signals after every Post. Signals coalesce.
func (f *Flash) Changed() <-chan struct{} {
	return f.changed
}

// FlashBar renders the current notice on one line.
type FlashBar struct {
	*tview.TextView
	colors map[Level]string
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &FlashBar{
		TextView: tv,
		colors: map[Level]string{
			LevelInfo:  colorName(theme.FlashInfoColor),
			LevelWarn:  colorName(theme.FlashWarnColor),
			LevelError: colorName(theme.FlashErrColor),
		},
	}
}

// Render draws f's current notice, or clears the bar.
func (fb *FlashBar) Render(f *Flash) {
	fb.Clear()
	if n, ok := f.Current(); ok {
		_, _ = fmt.Fprintf(fb, " [%s]%s[-]", fb.colors[n.Level], tview.Escape(n.Text))
	}
}
