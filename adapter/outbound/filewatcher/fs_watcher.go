package filewatcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

// splitOps are the fsnotify operations a single event may combine
var splitOps = []fsnotify.Op{
	fsnotify.Create,
	fsnotify.Write,
	fsnotify.Remove,
	fsnotify.Rename,
	fsnotify.Chmod,
}

// FsBackend is the portable notification backend built on fsnotify.
// fsnotify reports renames as a removal of the old name only, so
// FILE_RENAME_NEW_NAME is never produced; the new name shows up as a create.
type FsBackend struct {
	bufferSize uint
}

func NewFSBackend(bufferSize uint) *FsBackend {
	return &FsBackend{bufferSize: bufferSize}
}

func (b *FsBackend) Name() string {
	return "fsnotify"
}

func (b *FsBackend) Open() (outbound.NotificationHandle, error) {
	var (
		watcher *fsnotify.Watcher
		err     error
	)
	if b.bufferSize > 0 {
		watcher, err = fsnotify.NewBufferedWatcher(b.bufferSize)
	} else {
		watcher, err = fsnotify.NewWatcher()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FsWatcher{
		watcher:     watcher,
		watchedDirs: make(map[string]model.WatchID),
		paths:       make(map[model.WatchID]string),
	}, nil
}

func (b *FsBackend) Translate(code uint32) (model.Action, bool) {
	switch fsnotify.Op(code) {
	case fsnotify.Create:
		return model.ActionCreate, true
	case fsnotify.Remove:
		return model.ActionDelete, true
	case fsnotify.Write:
		return model.ActionModify, true
	case fsnotify.Rename:
		return model.ActionRenameOldName, true
	}
	return model.ActionNone, false
}

// FsWatcher is one fsnotify watcher serving every watched directory
type FsWatcher struct {
	watcher *fsnotify.Watcher

	mu          sync.RWMutex
	watchedDirs map[string]model.WatchID
	paths       map[model.WatchID]string
	nextID      model.WatchID

	// events received by Wait, handed out by the next ReadEvents
	pending []model.RawEvent
}

func (fw *FsWatcher) AddWatch(path string, actions model.Action) (model.WatchID, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, exists := fw.watchedDirs[absPath]; exists {
		return 0, fmt.Errorf("%w: %s", model.ErrDuplicateWatch, absPath)
	}

	if err := fw.watcher.Add(absPath); err != nil {
		return 0, fmt.Errorf("failed to watch directory %s: %w", absPath, err)
	}

	fw.nextID++
	id := fw.nextID
	fw.watchedDirs[absPath] = id
	fw.paths[id] = absPath

	return id, nil
}

func (fw *FsWatcher) RemoveWatch(id model.WatchID) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	path, ok := fw.paths[id]
	if !ok {
		return nil
	}
	delete(fw.paths, id)
	delete(fw.watchedDirs, path)

	// a deleted directory drops out of the watch list on its own
	if err := fw.watcher.Remove(path); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return fmt.Errorf("failed to unwatch directory %s: %w", path, err)
	}
	return nil
}

func (fw *FsWatcher) NewWakeup() (outbound.Wakeup, error) {
	return &chanWakeup{ch: make(chan struct{})}, nil
}

func (fw *FsWatcher) Wait(wakeup outbound.Wakeup) (bool, error) {
	w, ok := wakeup.(*chanWakeup)
	if !ok {
		return false, fmt.Errorf("fsnotify: unsupported wakeup %T", wakeup)
	}

	for {
		// a pending wakeup wins over queued events
		select {
		case <-w.ch:
			return true, nil
		default:
		}

		select {
		case <-w.ch:
			return true, nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return false, fsnotify.ErrClosed
			}
			fw.stash(event)
			if len(fw.pending) > 0 {
				return false, nil
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return false, fsnotify.ErrClosed
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				fw.pending = append(fw.pending, model.RawEvent{ID: model.NoWatch})
				return false, nil
			}
			return false, err
		}
	}
}

func (fw *FsWatcher) ReadEvents() ([]model.RawEvent, error) {
	// pick up whatever else is already queued
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fw.takePending(), nil
			}
			fw.stash(event)
			continue
		default:
		}
		break
	}

	return fw.takePending(), nil
}

func (fw *FsWatcher) Close() error {
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close fsnotify watcher: %w", err)
	}
	return nil
}

// watchedPaths returns the absolute paths currently watched
func (fw *FsWatcher) watchedPaths() []string {
	fw.mu.RLock()
	defer fw.mu.RUnlock()

	paths := make([]string, 0, len(fw.watchedDirs))
	for path := range fw.watchedDirs {
		paths = append(paths, path)
	}
	return paths
}

// stash converts event into one raw event per operation bit. Events for
// directories that are no longer watched are dropped.
func (fw *FsWatcher) stash(event fsnotify.Event) {
	id, name, ok := fw.resolve(event.Name)
	if !ok {
		return
	}

	for _, op := range splitOps {
		if event.Has(op) {
			fw.pending = append(fw.pending, model.RawEvent{
				ID:   id,
				Code: uint32(op),
				Name: name,
			})
		}
	}
}

// resolve maps an event path to its watch and the name relative to it.
// An event on the watched directory itself has an empty name.
func (fw *FsWatcher) resolve(eventPath string) (model.WatchID, string, bool) {
	fw.mu.RLock()
	defer fw.mu.RUnlock()

	if id, ok := fw.watchedDirs[eventPath]; ok {
		return id, "", true
	}

	if id, ok := fw.watchedDirs[filepath.Dir(eventPath)]; ok {
		return id, filepath.Base(eventPath), true
	}

	return 0, "", false
}

func (fw *FsWatcher) takePending() []model.RawEvent {
	events := fw.pending
	fw.pending = nil
	return events
}

type chanWakeup struct {
	ch   chan struct{}
	once sync.Once
}

func (w *chanWakeup) Signal() error {
	w.once.Do(func() { close(w.ch) })
	return nil
}

func (w *chanWakeup) Close() error {
	return nil
}
