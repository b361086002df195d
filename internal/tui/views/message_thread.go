package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/chatroom/internal/media"
	chat "github.com/matheus3301/chatroom/internal/model"
	"github.com/matheus3301/chatroom/internal/tui/model"
	"github.com/matheus3301/chatroom/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays the room's messages above a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *Composer
	room     string
	now      func() time.Time
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme, room string) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(fmt.Sprintf(" #%s ", room))
	messages.SetTitleColor(theme.TitleColor)

	composer := NewComposer(theme)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, false).
		AddItem(composer, 3, 0, true)

	return &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
		room:     room,
		now:      time.Now,
	}
}

// Hints returns the menu hints for the thread page.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Send"},
		{Key: "Tab", Description: "Scroll/Compose"},
		{Key: "/img", Description: "Image"},
	}
}

// Update re-renders the thread from a view model snapshot.
func (mt *MessageThread) Update(snap model.Snapshot) {
	self := ""
	if snap.Identity != nil {
		self = snap.Identity.ID
	}

	title := fmt.Sprintf(" #%s (%d) ", mt.room, len(snap.Messages))
	if snap.Offline() {
		title = fmt.Sprintf(" #%s (%d) [%s]offline[-] ", mt.room, len(snap.Messages), ui.ColorTag(mt.theme.OfflineColor))
	}
	mt.messages.SetTitle(title)

	mt.messages.Clear()
	if len(snap.Messages) == 0 {
		_, _ = fmt.Fprintf(mt.messages, "\n  [%s]No messages yet. Say hello![-]", ui.ColorTag(mt.theme.MutedColor))
		return
	}

	now := mt.now()
	var b strings.Builder
	for _, m := range snap.Messages {
		b.WriteString(mt.render(m, self, now))
	}
	_, _ = fmt.Fprint(mt.messages, b.String())
	mt.messages.ScrollToEnd()
}

func (mt *MessageThread) render(m chat.Message, self string, now time.Time) string {
	author := m.AuthorName
	if author == "" {
		author = m.AuthorID
	}
	color := ui.ColorTag(mt.theme.AuthorColor)
	if m.AuthorID == self {
		author = "You"
		color = ui.ColorTag(mt.theme.OwnAuthorColor)
	}

	ts := "sending"
	if m.CreatedAt != nil {
		ts = formatTimestamp(*m.CreatedAt, now)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]\n",
		color, tview.Escape(sanitizeForTerminal(author)), ts)
	if m.HasImage() {
		fmt.Fprintf(&b, "[%s]%s[-]\n", ui.ColorTag(mt.theme.MenuKeyColor), tview.Escape(imageLabel(m)))
	}
	if m.Text != "" {
		b.WriteString(tview.Escape(sanitizeForTerminal(m.Text)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// imageLabel describes an inline image, since the terminal cannot show it.
func imageLabel(m chat.Message) string {
	mime, data, err := media.Decode(m.ImageData)
	if err != nil {
		return "[unreadable image]"
	}
	return fmt.Sprintf("[%s %s, id %s]", mime, humanSize(len(data)), m.ID)
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// formatTimestamp shows the time for today's messages and the date otherwise.
func formatTimestamp(t, now time.Time) string {
	t = t.Local()
	now = now.Local()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	if t.Year() == now.Year() {
		return t.Format("Jan 02 15:04")
	}
	return t.Format("2006-01-02 15:04")
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer (for focus management).
func (mt *MessageThread) Composer() *Composer {
	return mt.composer
}
