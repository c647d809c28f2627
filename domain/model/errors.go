package model

import "errors"

var (
	ErrInvalidPath      = errors.New("invalid watch path")
	ErrDuplicateWatch   = errors.New("directory already has a watcher")
	ErrReentrancy       = errors.New("cannot remove a watcher from the event loop goroutine")
	ErrUnsupportedEvent = errors.New("unsupported backend event")
	ErrBackendIO        = errors.New("notification backend i/o failure")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrMonitorClosed    = errors.New("directory monitor closed")
)
