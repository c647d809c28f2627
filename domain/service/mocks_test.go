package service

import (
	"errors"
	"math/bits"
	"sync"

	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (m *mockLogger) Error(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) Warn(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}

func (m *mockLogger) Info(msg string, args ...any)  {}
func (m *mockLogger) Debug(msg string, args ...any) {}

func (m *mockLogger) warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.warns...)
}

type recordingMetrics struct {
	mu        sync.Mutex
	delivered []model.Action
	discarded []string
	started   int
	failed    int
	active    int
}

func (m *recordingMetrics) EventDelivered(action model.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, action)
}

func (m *recordingMetrics) EventDiscarded(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discarded = append(m.discarded, reason)
}

func (m *recordingMetrics) LoopStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *recordingMetrics) LoopFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
}

func (m *recordingMetrics) SetActiveWatches(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = n
}

type metricsSnapshot struct {
	delivered []model.Action
	discarded []string
	started   int
	failed    int
	active    int
}

func (m *recordingMetrics) snapshot() metricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return metricsSnapshot{
		delivered: append([]model.Action(nil), m.delivered...),
		discarded: append([]string(nil), m.discarded...),
		started:   m.started,
		failed:    m.failed,
		active:    m.active,
	}
}

// fakeBackend hands out scriptable in-memory handles. Event codes are
// model.Action values; any code that is not a single action is unsupported.
type fakeBackend struct {
	mu        sync.Mutex
	handles   []*fakeHandle
	openErr   error
	addErr    error
	wakeupErr error
	sameWatch map[string]model.WatchID
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{sameWatch: make(map[string]model.WatchID)}
}

func (b *fakeBackend) Name() string {
	return "fake"
}

func (b *fakeBackend) Open() (outbound.NotificationHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openErr != nil {
		return nil, b.openErr
	}

	h := &fakeHandle{
		backend: b,
		watches: make(map[model.WatchID]string),
		queue:   make(chan fakeBatch, 64),
	}
	b.handles = append(b.handles, h)
	return h, nil
}

func (b *fakeBackend) Translate(code uint32) (model.Action, bool) {
	action := model.Action(code)
	if !action.Valid() || bits.OnesCount32(code) != 1 {
		return model.ActionNone, false
	}
	return action, true
}

func (b *fakeBackend) opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

func (b *fakeBackend) last() *fakeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.handles) == 0 {
		return nil
	}
	return b.handles[len(b.handles)-1]
}

type fakeBatch struct {
	events  []model.RawEvent
	waitErr error
	readErr error
}

type fakeHandle struct {
	backend *fakeBackend

	mu      sync.Mutex
	nextID  model.WatchID
	watches map[model.WatchID]string
	removed []model.WatchID
	wakeups []*fakeWakeup
	closed  bool

	queue   chan fakeBatch
	current fakeBatch
}

func (h *fakeHandle) AddWatch(path string, actions model.Action) (model.WatchID, error) {
	h.backend.mu.Lock()
	addErr := h.backend.addErr
	sameID, same := h.backend.sameWatch[path]
	h.backend.mu.Unlock()

	if addErr != nil {
		return 0, addErr
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if same {
		return sameID, nil
	}

	h.nextID++
	h.watches[h.nextID] = path
	return h.nextID, nil
}

func (h *fakeHandle) RemoveWatch(id model.WatchID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.watches, id)
	h.removed = append(h.removed, id)
	return nil
}

func (h *fakeHandle) NewWakeup() (outbound.Wakeup, error) {
	h.backend.mu.Lock()
	wakeupErr := h.backend.wakeupErr
	h.backend.mu.Unlock()

	if wakeupErr != nil {
		return nil, wakeupErr
	}

	w := &fakeWakeup{ch: make(chan struct{})}
	h.mu.Lock()
	h.wakeups = append(h.wakeups, w)
	h.mu.Unlock()
	return w, nil
}

func (h *fakeHandle) Wait(wakeup outbound.Wakeup) (bool, error) {
	w := wakeup.(*fakeWakeup)

	select {
	case <-w.ch:
		return true, nil
	case batch := <-h.queue:
		h.current = batch
		if batch.waitErr != nil {
			return false, batch.waitErr
		}
		return false, nil
	}
}

func (h *fakeHandle) ReadEvents() ([]model.RawEvent, error) {
	batch := h.current
	h.current = fakeBatch{}
	return batch.events, batch.readErr
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("fake handle closed twice")
	}
	h.closed = true
	return nil
}

func (h *fakeHandle) emit(events ...model.RawEvent) {
	h.queue <- fakeBatch{events: events}
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) lastWakeup() *fakeWakeup {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.wakeups) == 0 {
		return nil
	}
	return h.wakeups[len(h.wakeups)-1]
}

type fakeWakeup struct {
	ch      chan struct{}
	once    sync.Once
	mu      sync.Mutex
	signals int
	closed  bool
}

func (w *fakeWakeup) Signal() error {
	w.mu.Lock()
	w.signals++
	w.mu.Unlock()
	w.once.Do(func() { close(w.ch) })
	return nil
}

func (w *fakeWakeup) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWakeup) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
