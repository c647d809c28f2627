package service

import (
	"fmt"

	"github.com/petermattis/goid"

	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

// startLoopLocked creates a fresh wakeup and starts the loop goroutine.
// It returns once the goroutine has published its id.
func (s *MonitorService) startLoopLocked() error {
	wakeup, err := s.handle.NewWakeup()
	if err != nil {
		return fmt.Errorf("%w: cannot create wakeup: %w", model.ErrBackendIO, err)
	}

	done := make(chan struct{})
	started := make(chan struct{})

	s.wakeup = wakeup
	s.done = done

	go s.run(s.handle, wakeup, done, started)
	<-started

	return nil
}

func (s *MonitorService) run(handle outbound.NotificationHandle, wakeup outbound.Wakeup, done chan struct{}, started chan<- struct{}) {
	id := goid.Get()
	s.workerID.Store(id)
	defer func() {
		s.workerID.CompareAndSwap(id, 0)
		close(done)
	}()
	close(started)

	s.metrics.LoopStarted()
	s.logger.Debug("Event loop started", "backend", s.backend.Name())

	for {
		cancelled, err := handle.Wait(wakeup)
		if err != nil {
			s.fail(done, fmt.Errorf("%w: wait failed: %w", model.ErrBackendIO, err))
			return
		}

		if cancelled {
			return
		}

		events, err := handle.ReadEvents()
		if err != nil {
			s.fail(done, fmt.Errorf("%w: read failed: %w", model.ErrBackendIO, err))
			return
		}

		for _, event := range events {
			if !s.dispatch(done, event) {
				return
			}
		}
	}
}

// dispatch delivers one raw event. It returns false when this loop generation
// has been retired and must stop.
func (s *MonitorService) dispatch(done chan struct{}, event model.RawEvent) bool {
	s.mu.Lock()
	if s.done != done {
		s.mu.Unlock()
		return false
	}
	entry, ok := s.entries[event.ID]
	s.mu.Unlock()

	if !ok {
		if event.ID == model.NoWatch {
			s.logger.Warn("Notification queue overflow, events were lost", "backend", s.backend.Name())
			s.metrics.EventDiscarded(outbound.DiscardOverflow)
			return true
		}
		// watch removed while its events were in flight
		s.metrics.EventDiscarded(outbound.DiscardUnknownWatch)
		return true
	}

	action, ok := s.backend.Translate(event.Code)
	if !ok {
		s.logger.Debug("Discarding event",
			"error", fmt.Errorf("%w: code %#x", model.ErrUnsupportedEvent, event.Code),
			"path", entry.Path,
			"name", event.Name)
		s.metrics.EventDiscarded(outbound.DiscardUnsupported)
		return true
	}

	if !entry.Accepts(action) {
		s.metrics.EventDiscarded(outbound.DiscardFiltered)
		return true
	}

	s.invoke(entry, event.Name, action)
	return true
}

func (s *MonitorService) invoke(entry *model.WatchEntry, name string, action model.Action) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("callback for %s panicked: %v", entry.Path, r)
			s.logger.Error("Watch callback panicked", "path", entry.Path, "name", name, "error", err)
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
		}
	}()

	entry.Callback(entry.Path, name, action)
	s.metrics.EventDelivered(action)
}

// fail records a fatal loop error. The registry keeps its handle until the next
// API call observes the failure and resets it.
// The failure is published last so that recoverLocked, which waits for the
// loop to exit while holding the lock, never waits on OnError.
func (s *MonitorService) fail(done chan struct{}, err error) {
	s.metrics.LoopFailed()
	s.logger.Error("Event loop stopped", "backend", s.backend.Name(), "error", err)

	if s.onError != nil {
		s.onError(err)
	}

	s.mu.Lock()
	if s.done == done {
		s.failure = err
	}
	s.lastErr = err
	s.mu.Unlock()
}
