package model

// WatchID is the identifier a notification backend assigns to a registered path.
type WatchID int

// NoWatch marks backend events that are not bound to a registration,
// such as a kernel queue overflow.
const NoWatch WatchID = -1

// Callback receives the watched directory, the affected file name relative to
// it and the single action that occurred.
type Callback func(path string, fileName string, action Action)

// RawEvent is one undecoded backend notification.
type RawEvent struct {
	ID   WatchID
	Code uint32
	Name string
}

// WatchEntry binds a watched directory to its mask and callback.
// Entries are immutable once registered.
type WatchEntry struct {
	ID       WatchID
	Path     string
	Actions  Action
	Callback Callback
}

// Accepts reports whether the entry subscribed to action.
func (e *WatchEntry) Accepts(action Action) bool {
	return e.Actions&action != 0
}

// Info returns a read-only view of the entry.
func (e *WatchEntry) Info() WatchInfo {
	return WatchInfo{
		ID:          e.ID,
		Path:        e.Path,
		Actions:     e.Actions,
		ActionNames: e.Actions.Names(),
	}
}

// WatchInfo describes an active watch
type WatchInfo struct {
	ID          WatchID  `json:"id"`
	Path        string   `json:"path"`
	Actions     Action   `json:"actions"`
	ActionNames []string `json:"actionNames"`
}

// ChainCallbacks returns a callback that invokes each non-nil callback in order
func ChainCallbacks(callbacks ...Callback) Callback {
	chain := make([]Callback, 0, len(callbacks))
	for _, cb := range callbacks {
		if cb != nil {
			chain = append(chain, cb)
		}
	}
	return func(path, fileName string, action Action) {
		for _, cb := range chain {
			cb(path, fileName, action)
		}
	}
}
