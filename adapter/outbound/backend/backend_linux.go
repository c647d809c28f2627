//go:build linux

package backend

import (
	"github.com/ajkula/dirmon/adapter/outbound/inotify"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

func platformDefault(opts Options) outbound.NotificationBackend {
	backend, _ := newInotify(opts)
	return backend
}

func newInotify(opts Options) (outbound.NotificationBackend, error) {
	if opts.ReadBufferSize > 0 {
		return inotify.NewWithBufferSize(opts.ReadBufferSize), nil
	}
	return inotify.New(), nil
}
