package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/chatroom/internal/status"
	"github.com/matheus3301/chatroom/internal/tui/model"
	"github.com/matheus3301/chatroom/internal/tui/ui"
	"github.com/rivo/tview"
)

// OfflineBanner is shown while the room serves cached messages only.
const OfflineBanner = "Offline - showing cached messages"

// StatusBar displays the profile, the signed-in user and the sync status.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	profile string
	now     func() time.Time
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme, profile string) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{
		TextView: tv,
		theme:    theme,
		profile:  profile,
		now:      time.Now,
	}
}

// Update re-renders the bar from a view model snapshot.
func (sb *StatusBar) Update(snap model.Snapshot) {
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.line(snap))
}

func (sb *StatusBar) line(snap model.Snapshot) string {
	user := "signed out"
	if snap.Identity != nil {
		user = "@" + snap.Identity.Username
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s",
		tview.Escape(sb.profile), tview.Escape(user), sb.stateLabel(snap))

	if !snap.LastSync.IsZero() {
		line += " | synced " + formatTimestamp(snap.LastSync, sb.now())
	}
	return line
}

func (sb *StatusBar) stateLabel(snap model.Snapshot) string {
	switch snap.State {
	case status.Online:
		return fmt.Sprintf("[%s]online[-]", ui.ColorTag(sb.theme.OnlineColor))
	case status.Offline:
		return fmt.Sprintf("[%s::b]%s[-:-:-]", ui.ColorTag(sb.theme.OfflineColor), OfflineBanner)
	case status.CacheReady:
		return "connecting..."
	default:
		return "loading..."
	}
}
