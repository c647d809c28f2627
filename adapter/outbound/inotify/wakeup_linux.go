//go:build linux

package inotify

import (
	"encoding/binary"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// eventfdWakeup is readable once signalled. It is never drained, so a poll on
// it keeps returning immediately after the first Signal.
type eventfdWakeup struct {
	fd   int
	once sync.Once
}

func newEventfdWakeup() (*eventfdWakeup, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, os.NewSyscallError("eventfd", err)
	}
	return &eventfdWakeup{fd: fd}, nil
}

func (w *eventfdWakeup) Signal() error {
	var err error
	w.once.Do(func() {
		buf := make([]byte, 8)
		binary.NativeEndian.PutUint64(buf, 1)
		if _, werr := unix.Write(w.fd, buf); werr != nil {
			err = os.NewSyscallError("write", werr)
		}
	})
	return err
}

func (w *eventfdWakeup) Close() error {
	if err := unix.Close(w.fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}
