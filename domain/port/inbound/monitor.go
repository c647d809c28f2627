package inbound

import (
	"github.com/ajkula/dirmon/domain/model"
)

// DirectoryMonitor defines the public watch API
type DirectoryMonitor interface {
	// Watch registers a directory. The callback runs on the monitor's event
	// loop goroutine, never before Watch returns.
	Watch(path string, callback model.Callback, actions model.Action) (model.WatchInfo, error)

	// Unwatch removes the watch for path. Returns false when path is not watched.
	// Removing the last watch blocks until the event loop has exited.
	Unwatch(path string) (bool, error)

	// ActionName renders an action mask
	ActionName(actions model.Action) string

	// Watches lists the active watches sorted by path
	Watches() []model.WatchInfo

	// IsRunning reports whether the event loop is alive
	IsRunning() bool

	// LastError returns the most recent event loop failure
	LastError() error

	// Close removes every watch and stops the event loop
	Close() error
}
