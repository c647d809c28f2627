// Package backend selects the notification backend named in the configuration.
package backend

import (
	"fmt"

	"github.com/ajkula/dirmon/adapter/outbound/filewatcher"
	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

const (
	Auto     = "auto"
	Inotify  = "inotify"
	FSNotify = "fsnotify"
)

// Options tunes the backend buffers. Zero values keep the backend defaults.
type Options struct {
	// ReadBufferSize is the inotify read buffer size in bytes
	ReadBufferSize int
	// EventBufferSize is the fsnotify event channel capacity
	EventBufferSize uint
}

// New returns the backend registered under name. An empty name means Auto.
func New(name string, opts Options) (outbound.NotificationBackend, error) {
	switch name {
	case "", Auto:
		return platformDefault(opts), nil
	case FSNotify:
		return filewatcher.NewFSBackend(opts.EventBufferSize), nil
	case Inotify:
		return newInotify(opts)
	}
	return nil, fmt.Errorf("%w: unknown backend %q", model.ErrInvalidArgument, name)
}

// Default returns the preferred backend of the running platform.
func Default() outbound.NotificationBackend {
	return platformDefault(Options{})
}
