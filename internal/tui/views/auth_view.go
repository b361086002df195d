package views

import (
	"fmt"

	"github.com/matheus3301/chatroom/internal/tui/ui"
	"github.com/rivo/tview"
)

// AuthMode selects which form the auth view shows.
type AuthMode int

const (
	ModeLogin AuthMode = iota
	ModeRegister
)

// AuthView is the sign-in and sign-up screen.
type AuthView struct {
	*tview.Flex
	theme   *ui.Theme
	form    *tview.Form
	message *tview.TextView
	mode    AuthMode

	onLogin    func(identifier, password string)
	onRegister func(username, email, password string)
}

// NewAuthView creates a new auth view in login mode.
func NewAuthView(theme *ui.Theme) *AuthView {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetTitleColor(theme.TitleColor)
	form.SetFieldBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	form.SetLabelColor(theme.FgColor)
	form.SetButtonBackgroundColor(theme.BorderColor)

	message := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	message.SetBackgroundColor(theme.BgColor)

	column := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.NewLogo(theme), 6, 0, false).
		AddItem(form, 13, 0, true).
		AddItem(message, 2, 0, false)

	flex := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(column, 60, 0, true).
		AddItem(nil, 0, 1, false)

	av := &AuthView{
		Flex:    flex,
		theme:   theme,
		form:    form,
		message: message,
	}
	av.SetMode(ModeLogin)
	return av
}

// SetOnLogin sets the callback for the login form.
func (av *AuthView) SetOnLogin(fn func(identifier, password string)) {
	av.onLogin = fn
}

// SetOnRegister sets the callback for the registration form.
func (av *AuthView) SetOnRegister(fn func(username, email, password string)) {
	av.onRegister = fn
}

// Mode returns the form currently shown.
func (av *AuthView) Mode() AuthMode {
	return av.mode
}

// SetMode rebuilds the form for mode and clears any message.
func (av *AuthView) SetMode(mode AuthMode) {
	av.mode = mode
	av.form.Clear(true)
	av.message.Clear()

	switch mode {
	case ModeRegister:
		av.form.SetTitle(" Create account ")
		av.form.
			AddInputField("Username", "", 32, nil, nil).
			AddInputField("Email", "", 32, nil, nil).
			AddPasswordField("Password", "", 32, '*', nil).
			AddButton("Register", av.submit).
			AddButton("Have an account?", func() { av.SetMode(ModeLogin) })
	default:
		av.form.SetTitle(" Sign in ")
		av.form.
			AddInputField("Username or email", "", 32, nil, nil).
			AddPasswordField("Password", "", 32, '*', nil).
			AddButton("Sign in", av.submit).
			AddButton("Create account", func() { av.SetMode(ModeRegister) })
	}
	av.form.SetFocus(0)
}

func (av *AuthView) submit() {
	switch av.mode {
	case ModeRegister:
		if av.onRegister != nil {
			av.onRegister(av.field("Username"), av.field("Email"), av.field("Password"))
		}
	default:
		if av.onLogin != nil {
			av.onLogin(av.field("Username or email"), av.field("Password"))
		}
	}
}

func (av *AuthView) field(label string) string {
	item := av.form.GetFormItemByLabel(label)
	if input, ok := item.(*tview.InputField); ok {
		return input.GetText()
	}
	return ""
}

// ShowMessage displays a neutral status line under the form.
func (av *AuthView) ShowMessage(msg string) {
	av.message.Clear()
	_, _ = fmt.Fprintf(av.message, "[%s]%s[-]", ui.ColorTag(av.theme.FgColor), tview.Escape(msg))
}

// ShowError displays an error line under the form.
func (av *AuthView) ShowError(err error) {
	av.message.Clear()
	_, _ = fmt.Fprintf(av.message, "[%s]%s[-]", ui.ColorTag(av.theme.FlashErrColor), tview.Escape(err.Error()))
}

// Hints returns the menu hints for the auth page.
func (av *AuthView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Submit"},
	}
}
