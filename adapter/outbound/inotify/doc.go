// Package inotify implements the notification backend on top of Linux inotify.
//
// A handle is one inotify instance opened non-blocking. The event loop waits with
// poll(2) on the inotify descriptor and an eventfd used as the wakeup, so the
// only blocking call is the poll itself.
package inotify
