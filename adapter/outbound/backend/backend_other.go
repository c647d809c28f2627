//go:build !linux

package backend

import (
	"fmt"
	"runtime"

	"github.com/ajkula/dirmon/adapter/outbound/filewatcher"
	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

func platformDefault(opts Options) outbound.NotificationBackend {
	return filewatcher.NewFSBackend(opts.EventBufferSize)
}

func newInotify(Options) (outbound.NotificationBackend, error) {
	return nil, fmt.Errorf("%w: inotify is not available on %s", model.ErrInvalidArgument, runtime.GOOS)
}
