package events

import "fmt"

// Registry remembers the tabs the extension has reported and answers which
// tab is active in the focused window. It is not safe for concurrent use.
type Registry struct {
	tabs    map[int]Tab
	active  map[int]int // window id -> tab id
	focused int
}

// NewRegistry returns an empty Registry with no focused window.
func NewRegistry() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.tabs = make(map[int]Tab)
	r.active = make(map[int]int)
	r.focused = WindowNone
}

// Apply folds ev into the registry. Events that do not describe tabs or
// windows are ignored.
func (r *Registry) Apply(ev Event) error {
	switch ev.Type {
	case TypeActivated:
		tab := r.tabs[ev.TabID]
		tab.ID = ev.TabID
		if ev.WindowID > 0 {
			tab.WindowID = ev.WindowID
		}
		if ev.URL != "" {
			tab.URL = ev.URL
		}
		r.tabs[tab.ID] = tab
		r.active[tab.WindowID] = tab.ID
		// Activation is a user action in the window that has focus.
		r.focused = tab.WindowID

	case TypeUpdated:
		tab := r.tabs[ev.TabID]
		tab.ID = ev.TabID
		if ev.WindowID > 0 {
			tab.WindowID = ev.WindowID
		}
		if ev.ChangeInfo != nil && ev.ChangeInfo.URL != "" {
			tab.URL = ev.ChangeInfo.URL
		}
		r.tabs[tab.ID] = tab

	case TypeRemoved:
		delete(r.tabs, ev.TabID)
		for window, id := range r.active {
			if id == ev.TabID {
				delete(r.active, window)
			}
		}

	case TypeFocusChanged:
		r.focused = ev.WindowID

	case TypeStartup:
		r.reset()

	case TypeSnapshot:
		r.reset()
		for _, tab := range ev.Tabs {
			r.tabs[tab.ID] = tab
			if tab.Active {
				r.active[tab.WindowID] = tab.ID
			}
		}
		r.focused = ev.WindowID
		if r.focused == 0 {
			for _, tab := range ev.Tabs {
				if tab.Active {
					r.focused = tab.WindowID
					break
				}
			}
		}

	case TypeSuspend, TypeClear, TypeQuery:

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}

// ActiveTab returns the active tab of the focused window. It reports false
// when no window has focus or the active tab is unknown.
func (r *Registry) ActiveTab() (Tab, bool) {
	if r.focused == WindowNone {
		return Tab{}, false
	}
	id, ok := r.active[r.focused]
	if !ok {
		return Tab{}, false
	}
	tab, ok := r.tabs[id]
	return tab, ok
}

// Len returns the number of known tabs.
func (r *Registry) Len() int {
	return len(r.tabs)
}
