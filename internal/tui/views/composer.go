package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatroom/internal/tui/ui"
	"github.com/rivo/tview"
)

// Composer is the text input for messages and slash commands.
type Composer struct {
	*tview.InputField
	onSubmit func(text string)
}

// NewComposer creates a new message composer.
func NewComposer(theme *ui.Theme) *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0).
		SetPlaceholder("message, /img <path> [caption], /logout, /help")
	input.SetBorder(true)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)
	input.SetTitle(" Compose ")
	input.SetTitleColor(theme.TitleColor)

	c := &Composer{InputField: input}

	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || c.onSubmit == nil {
			return
		}
		text := c.GetText()
		if text != "" {
			c.SetText("")
			c.onSubmit(text)
		}
	})

	return c
}

// SetOnSubmit sets the callback invoked with the entered line on Enter.
func (c *Composer) SetOnSubmit(fn func(text string)) {
	c.onSubmit = fn
}
