package views

import (
	"fmt"

	"github.com/matheus3301/chatroom/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays key binding and command reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Hints returns the menu hints for the help page.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{{Key: "Esc", Description: "Back"}}
}

func (hv *HelpView) render() {
	kc := ui.ColorTag(hv.theme.MenuKeyColor)

	_, _ = fmt.Fprintf(hv, `
  [::b]Keys[-:-:-]

  [%[1]s]Tab[-:-:-]     Switch between the message list and the composer
  [%[1]s]Enter[-:-:-]   Send the composed message
  [%[1]s]Esc[-:-:-]     Close this help
  [%[1]s]Ctrl-C[-:-:-]  Quit

  [::b]Commands[-:-:-]

  [%[1]s]/img <path> [caption[][-:-:-]  Send an image (downscaled, max ~1 MB encoded)
  [%[1]s]/logout[-:-:-]                Sign out and clear this profile's local data
  [%[1]s]/help[-:-:-]                  Show this help
  [%[1]s]/quit[-:-:-]                  Quit
  [%[1]s]//text[-:-:-]                 Send text starting with a slash

  [::b]Offline[-:-:-]

  When the server is unreachable the cached messages stay visible and the
  status bar reads "%[2]s". Messages sent while
  offline fail with an error and are not queued.
`, kc, OfflineBanner)
}
