package keys

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatroom/internal/tui/ui"
)

// Action represents a keybinding action.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Label       string // key as shown in the menu, e.g. "Ctrl-L"
	Description string
	Handler     func()
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Registry holds keybindings organized by page, in registration order.
type Registry struct {
	global []*Action
	pages  map[string][]*Action
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string][]*Action)}
}

// AddGlobal registers a binding active on every page.
func (r *Registry) AddGlobal(action *Action) {
	r.global = append(r.global, action)
}

// AddPage registers a binding active on one page.
func (r *Registry) AddPage(page string, action *Action) {
	r.pages[page] = append(r.pages[page], action)
}

// Hints returns menu hints for a page: page bindings first, then globals.
// Actions without a label are hidden.
func (r *Registry) Hints(page string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, group := range [][]*Action{r.pages[page], r.global} {
		for _, a := range group {
			if a.Label != "" {
				hints = append(hints, ui.MenuHint{Key: a.Label, Description: a.Description})
			}
		}
	}
	return hints
}

// HandleEvent dispatches a key event to the first matching action on the
// page, falling back to global bindings. Returns true if a handler ran.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	for _, group := range [][]*Action{r.pages[page], r.global} {
		for _, a := range group {
			if a.Matches(ev) {
				a.Handler()
				return true
			}
		}
	}
	return false
}
