//go:build linux

package inotify

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

// DefaultBufferSize holds a few thousand events with short names
const DefaultBufferSize = unix.SizeofInotifyEvent * 4096

type Backend struct {
	bufferSize int
}

func New() *Backend {
	return NewWithBufferSize(DefaultBufferSize)
}

// NewWithBufferSize sets the size of the per-handle read buffer. It must hold at
// least one event with a maximum length name.
func NewWithBufferSize(size int) *Backend {
	if minSize := unix.SizeofInotifyEvent + unix.PathMax; size < minSize {
		size = minSize
	}
	return &Backend{bufferSize: size}
}

func (b *Backend) Name() string {
	return "inotify"
}

func (b *Backend) Open() (outbound.NotificationHandle, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		if errors.Is(err, unix.EMFILE) {
			return nil, fmt.Errorf("%w (raise fs.inotify.max_user_instances)", os.NewSyscallError("inotify_init1", err))
		}
		return nil, os.NewSyscallError("inotify_init1", err)
	}

	return &handle{
		fd:  fd,
		buf: make([]byte, b.bufferSize),
	}, nil
}

func (b *Backend) Translate(code uint32) (model.Action, bool) {
	return translate(code)
}

type handle struct {
	fd int

	// only touched by the event loop goroutine
	buf []byte
}

func (h *handle) AddWatch(path string, actions model.Action) (model.WatchID, error) {
	wd, err := unix.InotifyAddWatch(h.fd, path, filter(actions)|unix.IN_ONLYDIR|inMaskCreate)
	if err != nil {
		switch {
		case errors.Is(err, unix.EEXIST):
			return 0, fmt.Errorf("%w: %s", model.ErrDuplicateWatch, path)
		case errors.Is(err, unix.ENOSPC):
			return 0, fmt.Errorf("%w (raise fs.inotify.max_user_watches)", &os.PathError{Op: "inotify_add_watch", Path: path, Err: err})
		}
		return 0, &os.PathError{Op: "inotify_add_watch", Path: path, Err: err}
	}

	return model.WatchID(wd), nil
}

func (h *handle) RemoveWatch(id model.WatchID) error {
	_, err := unix.InotifyRmWatch(h.fd, uint32(id))
	// EINVAL: the kernel already dropped it (directory deleted or unmounted)
	if err != nil && !errors.Is(err, unix.EINVAL) {
		return os.NewSyscallError("inotify_rm_watch", err)
	}
	return nil
}

func (h *handle) NewWakeup() (outbound.Wakeup, error) {
	return newEventfdWakeup()
}

func (h *handle) Wait(wakeup outbound.Wakeup) (bool, error) {
	w, ok := wakeup.(*eventfdWakeup)
	if !ok {
		return false, fmt.Errorf("inotify: unsupported wakeup %T", wakeup)
	}

	fds := []unix.PollFd{
		{Fd: int32(h.fd), Events: unix.POLLIN},
		{Fd: int32(w.fd), Events: unix.POLLIN},
	}

	for {
		fds[0].Revents = 0
		fds[1].Revents = 0

		_, err := unix.Poll(fds, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			return false, os.NewSyscallError("poll", err)
		}

		if fds[1].Revents != 0 {
			return true, nil
		}

		if fds[0].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
			return false, fmt.Errorf("inotify: descriptor error (revents %#x)", fds[0].Revents)
		}

		if fds[0].Revents&unix.POLLIN != 0 {
			return false, nil
		}
	}
}

func (h *handle) ReadEvents() ([]model.RawEvent, error) {
	var n int
	for {
		var err error
		n, err = unix.Read(h.fd, h.buf)
		if err == nil {
			break
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			return nil, nil
		}
		return nil, os.NewSyscallError("read", err)
	}

	if n == 0 {
		return nil, errors.New("inotify: descriptor closed")
	}

	return parseEvents(h.buf[:n])
}

func (h *handle) Close() error {
	if err := unix.Close(h.fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

// parseEvents decodes a buffer filled by read(2). Names are NUL padded by the kernel.
func parseEvents(buf []byte) ([]model.RawEvent, error) {
	var events []model.RawEvent

	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buf) {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))

		nameStart := offset + unix.SizeofInotifyEvent
		nameEnd := nameStart + int(raw.Len)
		if nameEnd > len(buf) {
			return events, errors.New("inotify: short read")
		}

		events = append(events, model.RawEvent{
			ID:   model.WatchID(raw.Wd),
			Code: raw.Mask,
			Name: strings.TrimRight(string(buf[nameStart:nameEnd]), "\x00"),
		})

		offset = nameEnd
	}

	return events, nil
}
