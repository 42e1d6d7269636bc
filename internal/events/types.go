// Package events decodes browser tab and window events delivered over the
// native messaging protocol and tracks which tab is currently active.
package events

// Type names an event kind.
type Type string

// Event types sent by the browser extension.
const (
	TypeActivated    Type = "activated"
	TypeUpdated      Type = "updated"
	TypeRemoved      Type = "removed"
	TypeFocusChanged Type = "focusChanged"
	TypeStartup      Type = "startup"
	TypeSuspend      Type = "suspend"
	TypeSnapshot     Type = "snapshot"
	TypeClear        Type = "clear"
	TypeQuery        Type = "query"
)

// WindowNone is the window id reported when no browser window has focus.
const WindowNone = -1

// Tab is the metadata the extension reports for a tab.
type Tab struct {
	ID       int    `json:"id"`
	WindowID int    `json:"windowId,omitempty"`
	URL      string `json:"url,omitempty"`
	Active   bool   `json:"active,omitempty"`
}

// ChangeInfo carries the fields of a tab update.
type ChangeInfo struct {
	URL    string `json:"url,omitempty"`
	Status string `json:"status,omitempty"`
}

// Event is one message from the extension.
type Event struct {
	Type       Type        `json:"type"`
	TabID      int         `json:"tabId,omitempty"`
	WindowID   int         `json:"windowId,omitempty"`
	URL        string      `json:"url,omitempty"`
	ChangeInfo *ChangeInfo `json:"changeInfo,omitempty"`
	Tabs       []Tab       `json:"tabs,omitempty"`

	// Query fields: Period is "today", "week" or "all"; Key optionally
	// selects a specific day or week.
	Period string `json:"period,omitempty"`
	Key    string `json:"key,omitempty"`
	// ID is echoed back in the reply to a query.
	ID string `json:"id,omitempty"`
}

// Reply is sent back to the extension in answer to a query or clear.
type Reply struct {
	ID     string           `json:"id,omitempty"`
	Type   string           `json:"type"`
	Period string           `json:"period,omitempty"`
	Key    string           `json:"key,omitempty"`
	Totals map[string]int64 `json:"totals,omitempty"`
	Error  string           `json:"error,omitempty"`
}
