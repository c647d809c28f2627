package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/inbound"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

// MonitorOptions carries the optional collaborators of a MonitorService
type MonitorOptions struct {
	Logger  outbound.Logger
	Metrics outbound.MetricsRecorder

	// OnError is called from the event loop goroutine when the loop stops
	// because of a backend failure.
	OnError func(error)
}

// MonitorService owns the watch registry, the notification handle and the
// event loop goroutine that serves every watch.
//
// Callbacks are invoked after the registry lock has been released. Watch may be
// called from inside a callback, and Unwatch calls for other paths made on other
// goroutines proceed while a callback runs. An event resolved just before a
// concurrent Unwatch of a non-last watch may still be delivered once; removing
// the last watch joins the loop, so no callback runs after that Unwatch returns.
//
// A Watch that arrives while the last Unwatch is joining the loop waits for the
// old loop to exit and its handle to close before starting a new one. The one
// exception is a Watch made from a callback of the exiting loop: waiting there
// would deadlock the join, so the new loop starts while the old goroutine
// returns from its callback and exits without dispatching anything else.
type MonitorService struct {
	backend outbound.NotificationBackend
	logger  outbound.Logger
	metrics outbound.MetricsRecorder
	onError func(error)

	mu      sync.Mutex
	entries map[model.WatchID]*model.WatchEntry
	handle  outbound.NotificationHandle
	wakeup  outbound.Wakeup
	done    chan struct{}
	failure error
	lastErr error
	closed  bool

	// closed once the shutdown in progress has released its handle
	stopping chan struct{}

	// goroutine id of the running event loop, 0 when idle
	workerID atomic.Int64
}

var _ inbound.DirectoryMonitor = (*MonitorService)(nil)

func NewMonitorService(backend outbound.NotificationBackend, opts MonitorOptions) *MonitorService {
	if backend == nil {
		panic("dirmon: nil notification backend")
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = outbound.NopMetrics{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	return &MonitorService{
		backend: backend,
		logger:  logger,
		metrics: metrics,
		onError: opts.OnError,
		entries: make(map[model.WatchID]*model.WatchEntry),
	}
}

// Watch registers a directory and starts the event loop if it is the first one.
func (s *MonitorService) Watch(path string, callback model.Callback, actions model.Action) (model.WatchInfo, error) {
	if path == "" {
		return model.WatchInfo{}, fmt.Errorf("%w: path is required", model.ErrInvalidArgument)
	}
	if callback == nil {
		return model.WatchInfo{}, fmt.Errorf("%w: callback is required", model.ErrInvalidArgument)
	}
	if !actions.Valid() {
		return model.WatchInfo{}, fmt.Errorf("%w: invalid action mask %#x", model.ErrInvalidArgument, uint32(actions))
	}

	path = filepath.Clean(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	for s.stopping != nil && !s.onWorker() {
		stopping := s.stopping
		s.mu.Unlock()
		<-stopping
		s.mu.Lock()
	}

	if s.closed {
		return model.WatchInfo{}, model.ErrMonitorClosed
	}

	if err := s.recoverLocked(); err != nil {
		return model.WatchInfo{}, err
	}

	if s.findLocked(path) != nil {
		return model.WatchInfo{}, fmt.Errorf("%w: %s", model.ErrDuplicateWatch, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return model.WatchInfo{}, fmt.Errorf("%w: %w", model.ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return model.WatchInfo{}, fmt.Errorf("%w: %s is not a directory", model.ErrInvalidPath, path)
	}

	created := false
	if s.handle == nil {
		if s.done != nil || len(s.entries) != 0 {
			panic("dirmon: registry has a worker or entries but no notification handle")
		}

		handle, err := s.backend.Open()
		if err != nil {
			return model.WatchInfo{}, fmt.Errorf("%w: cannot create %s instance: %w", model.ErrBackendIO, s.backend.Name(), err)
		}
		s.handle = handle
		created = true
	}

	id, err := s.handle.AddWatch(path, actions)
	if err != nil {
		if created {
			s.releaseIdleHandleLocked()
		}
		if errors.Is(err, model.ErrDuplicateWatch) {
			return model.WatchInfo{}, err
		}
		s.logger.Warn("Cannot add watch", "path", path, "error", err)
		return model.WatchInfo{}, fmt.Errorf("%w: cannot add watch %s: %w", model.ErrInvalidPath, path, err)
	}

	if existing, ok := s.entries[id]; ok {
		// same directory reached through another path; backends that replace
		// the filter of a watched inode get the original one back
		if _, err := s.handle.AddWatch(existing.Path, existing.Actions); err != nil && !errors.Is(err, model.ErrDuplicateWatch) {
			s.logger.Warn("Cannot restore watch filter", "path", existing.Path, "error", err)
		}
		return model.WatchInfo{}, fmt.Errorf("%w: %s is the same directory as %s", model.ErrDuplicateWatch, path, existing.Path)
	}

	entry := &model.WatchEntry{
		ID:       id,
		Path:     path,
		Actions:  actions,
		Callback: callback,
	}
	s.entries[id] = entry

	if s.done == nil {
		if err := s.startLoopLocked(); err != nil {
			delete(s.entries, id)
			if rmErr := s.handle.RemoveWatch(id); rmErr != nil {
				s.logger.Warn("Cannot remove watch", "path", path, "error", rmErr)
			}
			if len(s.entries) == 0 {
				s.releaseIdleHandleLocked()
			}
			return model.WatchInfo{}, err
		}
	}

	s.metrics.SetActiveWatches(len(s.entries))
	s.logger.Info("Watch added", "path", path, "id", int(id), "actions", model.ActionName(actions))

	return entry.Info(), nil
}

// Unwatch removes the watch registered for path.
func (s *MonitorService) Unwatch(path string) (bool, error) {
	if s.onWorker() {
		return false, model.ErrReentrancy
	}

	path = filepath.Clean(path)

	s.mu.Lock()
	if err := s.recoverLocked(); err != nil {
		s.mu.Unlock()
		return false, err
	}

	entry := s.findLocked(path)
	if entry == nil {
		s.mu.Unlock()
		return false, nil
	}

	s.removeAndUnlock(entry)
	return true, nil
}

func (s *MonitorService) ActionName(actions model.Action) string {
	return model.ActionName(actions)
}

func (s *MonitorService) Watches() []model.WatchInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	watches := make([]model.WatchInfo, 0, len(s.entries))
	for _, entry := range s.entries {
		watches = append(watches, entry.Info())
	}
	sort.Slice(watches, func(i, j int) bool {
		return watches[i].Path < watches[j].Path
	})
	return watches
}

func (s *MonitorService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil && s.failure == nil
}

func (s *MonitorService) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close removes every watch and waits for the event loop to exit.
// Watch fails with ErrMonitorClosed afterwards.
func (s *MonitorService) Close() error {
	if s.onWorker() {
		return model.ErrReentrancy
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.recoverLocked()

	for len(s.entries) > 0 {
		var entry *model.WatchEntry
		for _, e := range s.entries {
			entry = e
			break
		}
		s.removeAndUnlock(entry)
		s.mu.Lock()
	}
	s.mu.Unlock()

	s.logger.Info("Directory monitor closed")
	return err
}

func (s *MonitorService) findLocked(path string) *model.WatchEntry {
	for _, entry := range s.entries {
		if entry.Path == path {
			return entry
		}
	}
	return nil
}

// removeAndUnlock must be called with s.mu held and returns with it released.
// Removing the last entry runs the shutdown sequence: signal the wakeup, drop
// the lock, join the loop, then release the handle and the wakeup.
func (s *MonitorService) removeAndUnlock(entry *model.WatchEntry) {
	if err := s.handle.RemoveWatch(entry.ID); err != nil {
		s.logger.Warn("Cannot remove watch", "path", entry.Path, "error", err)
	}
	delete(s.entries, entry.ID)
	s.metrics.SetActiveWatches(len(s.entries))
	s.logger.Info("Watch removed", "path", entry.Path, "id", int(entry.ID))

	if len(s.entries) > 0 {
		s.mu.Unlock()
		return
	}

	handle, wakeup, done := s.handle, s.wakeup, s.done
	s.handle, s.wakeup, s.done = nil, nil, nil
	stopping := make(chan struct{})
	s.stopping = stopping

	if err := wakeup.Signal(); err != nil {
		s.logger.Error("Cannot signal event loop", "error", err)
	}
	s.mu.Unlock()

	<-done

	if err := handle.Close(); err != nil {
		s.logger.Warn("Cannot close notification handle", "error", err)
	}
	if err := wakeup.Close(); err != nil {
		s.logger.Warn("Cannot close wakeup", "error", err)
	}

	s.mu.Lock()
	if s.stopping == stopping {
		s.stopping = nil
	}
	s.mu.Unlock()
	close(stopping)

	s.logger.Debug("Event loop stopped", "backend", s.backend.Name())
}

// recoverLocked tears down a registry whose loop died and reports the failure once.
func (s *MonitorService) recoverLocked() error {
	if s.failure == nil {
		return nil
	}

	failure := s.failure
	s.failure = nil

	// the loop records the failure as its last locked step, so this does not wait long
	<-s.done

	for id := range s.entries {
		delete(s.entries, id)
	}
	if err := s.handle.Close(); err != nil {
		s.logger.Warn("Cannot close notification handle", "error", err)
	}
	if err := s.wakeup.Close(); err != nil {
		s.logger.Warn("Cannot close wakeup", "error", err)
	}
	s.handle, s.wakeup, s.done = nil, nil, nil
	s.metrics.SetActiveWatches(0)

	if errors.Is(failure, model.ErrBackendIO) {
		return failure
	}
	return fmt.Errorf("%w: %w", model.ErrBackendIO, failure)
}

func (s *MonitorService) releaseIdleHandleLocked() {
	if err := s.handle.Close(); err != nil {
		s.logger.Warn("Cannot close unused notification handle", "error", err)
	}
	s.handle = nil
}

func (s *MonitorService) onWorker() bool {
	id := s.workerID.Load()
	return id != 0 && id == goid.Get()
}

type nopLogger struct{}

func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
