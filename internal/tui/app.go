// Package tui is the terminal front end. It drives an in-process client:
// the sign-in form, the room thread and the status bar all render from bus
// events folded into a view model.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	chatapp "github.com/matheus3301/chatroom/internal/app"
	"github.com/matheus3301/chatroom/internal/bus"
	"github.com/matheus3301/chatroom/internal/media"
	chat "github.com/matheus3301/chatroom/internal/model"
	chatsync "github.com/matheus3301/chatroom/internal/sync"
	"github.com/matheus3301/chatroom/internal/tui/keys"
	"github.com/matheus3301/chatroom/internal/tui/model"
	"github.com/matheus3301/chatroom/internal/tui/ui"
	"github.com/matheus3301/chatroom/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// Page names.
const (
	PageAuth = "auth"
	PageRoom = "room"
	PageHelp = "help"
)

const requestTimeout = 15 * time.Second

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	client    *chatapp.Client
	logger    *zap.Logger
	theme     *ui.Theme
	vm        *model.ViewModel
	flash     *ui.Flash
	registry  *keys.Registry
	statusBar *views.StatusBar
	flashBar  *ui.FlashBar
	menu      *ui.Menu
	thread    *views.MessageThread
	authView  *views.AuthView
	helpView  *views.HelpView
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application over a started client.
func NewApp(c *chatapp.Client) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		client:    c,
		logger:    c.Logger.Named("tui"),
		theme:     theme,
		vm:        model.NewViewModel(),
		flash:     ui.NewFlash(),
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(theme, c.Profile),
		flashBar:  ui.NewFlashBar(theme),
		menu:      ui.NewMenu(theme),
		thread:    views.NewMessageThread(theme, c.Config.Chat.Room),
		authView:  views.NewAuthView(theme),
		helpView:  views.NewHelpView(theme),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyCtrlC, Label: "Ctrl-C", Description: "Quit",
		Handler: a.Stop,
	})
	a.registry.AddPage(PageRoom, &keys.Action{
		Key: tcell.KeyTab, Label: "Tab", Description: "Scroll/Compose",
		Handler: a.toggleFocus,
	})
	a.registry.AddPage(PageRoom, &keys.Action{
		Key: tcell.KeyCtrlR, Label: "Ctrl-R", Description: "Reconnect",
		Handler: a.reconnect,
	})
	a.registry.AddPage(PageRoom, &keys.Action{
		Key: tcell.KeyF1, Label: "F1", Description: "Help",
		Handler: func() { a.showPage(PageHelp) },
	})
	a.registry.AddPage(PageHelp, &keys.Action{
		Key: tcell.KeyEscape, Label: "Esc", Description: "Back",
		Handler: func() { a.showPage(PageRoom) },
	})
}

func (a *App) setupCallbacks() {
	a.authView.SetOnLogin(func(identifier, password string) {
		a.authView.ShowMessage("Signing in...")
		go a.signIn(func(ctx context.Context) (*chat.Identity, error) {
			return a.client.Accounts.Login(ctx, identifier, password)
		})
	})
	a.authView.SetOnRegister(func(username, email, password string) {
		a.authView.ShowMessage("Creating account...")
		go a.signIn(func(ctx context.Context) (*chat.Identity, error) {
			return a.client.Accounts.Register(ctx, username, email, password)
		})
	})
	a.thread.Composer().SetOnSubmit(a.submit)
}

func (a *App) setupLayout() {
	a.pages.AddPage(PageAuth, a.authView, true, true)
	a.pages.AddPage(PageRoom, a.thread, true, false)
	a.pages.AddPage(PageHelp, a.helpView, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.menu, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		page, _ := a.pages.GetFrontPage()
		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

func (a *App) showPage(page string) {
	a.pages.SwitchToPage(page)
	switch page {
	case PageRoom:
		a.thread.Update(a.vm.Snapshot())
		a.app.SetFocus(a.thread.Composer())
		a.menu.Update(append(a.thread.Hints(), a.registry.Hints(page)...))
	case PageAuth:
		a.app.SetFocus(a.authView)
		a.menu.Update(append(a.authView.Hints(), a.registry.Hints(page)...))
	case PageHelp:
		a.app.SetFocus(a.helpView)
		a.menu.Update(a.registry.Hints(page))
	}
}

func (a *App) toggleFocus() {
	if a.app.GetFocus() == a.thread.Messages() {
		a.app.SetFocus(a.thread.Composer())
		return
	}
	a.app.SetFocus(a.thread.Messages())
}

// signIn runs an account operation off the UI goroutine and enters the room
// on success.
func (a *App) signIn(op func(ctx context.Context) (*chat.Identity, error)) {
	ctx, cancel := context.WithTimeout(a.ctx, requestTimeout)
	id, err := op(ctx)
	cancel()
	if err != nil {
		a.logger.Info("sign-in failed", zap.Error(err))
		a.app.QueueUpdateDraw(func() { a.authView.ShowError(err) })
		return
	}
	a.enter(id)
}

// enter opens the room for id and switches to the thread. A subscription
// failure still enters the room, showing cached messages offline.
func (a *App) enter(id *chat.Identity) {
	sess, err := a.client.Enter(a.ctx, id)
	a.attach(sess, err)
}

func (a *App) attach(sess *chatsync.Session, err error) {
	if sess == nil {
		if err != nil {
			a.app.QueueUpdateDraw(func() { a.authView.ShowError(err) })
		}
		return
	}
	if last, ok := a.client.Cache.LastSync(a.ctx); ok {
		a.vm.SetLastSync(last)
	}
	a.vm.Attach(sess)

	var subErr *chatsync.SubscriptionError
	if errors.As(err, &subErr) {
		a.flash.Warn(views.OfflineBanner)
	} else if err != nil {
		a.flash.Err(err)
	}
	a.app.QueueUpdateDraw(func() {
		a.authView.SetMode(views.ModeLogin)
		a.showPage(PageRoom)
	})
}

func (a *App) reconnect() {
	id := a.client.Accounts.Current()
	if id == nil {
		return
	}
	a.flash.Info("Reconnecting...")
	go a.enter(id)
}

// submit handles one composer line: a slash command or a text message.
func (a *App) submit(line string) {
	cmd, text, isCmd := ParseInput(line)
	if !isCmd {
		go a.sendText(text)
		return
	}

	switch cmd.Name {
	case CmdImage:
		path, caption := ImageArgs(cmd.Args)
		go a.sendImage(path, caption)
	case CmdLogout:
		go a.logout()
	case CmdHelp:
		a.showPage(PageHelp)
	case CmdQuit:
		a.Stop()
	default:
		a.flash.Warn(fmt.Sprintf("unknown command /%s", cmd.Name))
	}
}

func (a *App) sendText(text string) {
	sess := a.client.Sessions.Current()
	if sess == nil {
		return
	}
	ctx, cancel := context.WithTimeout(a.ctx, requestTimeout)
	defer cancel()
	if _, err := sess.SendText(ctx, text); err != nil {
		if !errors.Is(err, chatsync.ErrEmptyMessage) {
			a.flash.Err(err)
		}
	}
}

func (a *App) sendImage(path, caption string) {
	sess := a.client.Sessions.Current()
	if sess == nil {
		return
	}
	asset, err := media.PickFile(path)
	if err != nil {
		a.flash.Err(err)
		return
	}
	ctx, cancel := context.WithTimeout(a.ctx, requestTimeout)
	defer cancel()
	if _, err := sess.SendImage(ctx, asset, caption); err != nil {
		if errors.Is(err, media.ErrNoAssetSelected) {
			a.flash.Info("usage: /img <path> [caption]")
			return
		}
		a.flash.Err(err)
		return
	}
	a.flash.Info("Image sent")
}

func (a *App) logout() {
	ctx, cancel := context.WithTimeout(a.ctx, requestTimeout)
	a.client.Logout(ctx)
	cancel()
	a.vm.Detach()
	a.app.QueueUpdateDraw(func() {
		a.authView.SetMode(views.ModeLogin)
		a.authView.ShowMessage("Signed out. Local data cleared.")
		a.showPage(PageAuth)
	})
}

// Run restores the previous session, if any, and starts the UI loop.
func (a *App) Run() error {
	events, unsub := a.client.Bus.Subscribe("", 256)
	defer unsub()

	go a.consume(events)
	go a.refreshLoop()
	go a.resume()

	a.showPage(PageAuth)
	a.render()
	return a.app.Run()
}

func (a *App) resume() {
	a.app.QueueUpdateDraw(func() { a.authView.ShowMessage("Restoring session...") })
	sess, err := a.client.Resume(a.ctx)
	if sess == nil {
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.authView.ShowError(err)
				return
			}
			a.authView.ShowMessage("")
		})
		return
	}
	a.attach(sess, err)
}

func (a *App) consume(events <-chan bus.Event) {
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			a.vm.Apply(evt)
			if evt.Kind == bus.KindSendFailed {
				a.logger.Debug("send failed", zap.Any("err", evt.Payload))
			}
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
			a.app.QueueUpdateDraw(a.render)
		case <-a.flash.Changed():
			a.app.QueueUpdateDraw(a.renderChrome)
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.renderChrome)
		case <-a.ctx.Done():
			return
		}
	}
}

// render redraws everything, including the thread.
func (a *App) render() {
	a.renderChrome()
	if page, _ := a.pages.GetFrontPage(); page == PageRoom {
		a.thread.Update(a.vm.Snapshot())
	}
}

// renderChrome redraws the status and flash bars only, leaving the thread's
// scroll position alone.
func (a *App) renderChrome() {
	a.statusBar.Update(a.vm.Snapshot())
	a.flashBar.Render(a.flash)
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
