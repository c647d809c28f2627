package outbound

import (
	"github.com/ajkula/dirmon/domain/model"
)

// NotificationBackend is an OS change-notification facility.
// Implementations hold no state of their own; everything lives in the
// handles they open.
type NotificationBackend interface {
	// returns a short identifier such as "inotify" or "fsnotify"
	Name() string

	// allocates a new notification handle
	Open() (NotificationHandle, error)

	// maps a native event code to a portable action, false when the code
	// has no counterpart in the action vocabulary
	Translate(code uint32) (model.Action, bool)
}

// NotificationHandle is one open instance of the backend facility.
// Wait and ReadEvents are only ever called from a single goroutine.
type NotificationHandle interface {
	// registers a directory and returns the backend's identifier for it
	AddWatch(path string, actions model.Action) (model.WatchID, error)

	// unregisters a previously added watch
	RemoveWatch(id model.WatchID) error

	// creates a cancellation channel usable with Wait
	NewWakeup() (Wakeup, error)

	// blocks until events are readable or the wakeup is signaled.
	// Returns true when the wakeup fired.
	Wait(wakeup Wakeup) (bool, error)

	// reads one batch of events in arrival order; may be empty
	ReadEvents() ([]model.RawEvent, error)

	// releases the handle
	Close() error
}

// Wakeup interrupts a blocked Wait.
type Wakeup interface {
	// wakes the waiter; calling it more than once is harmless
	Signal() error

	// releases the underlying resource
	Close() error
}
