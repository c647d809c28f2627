package service

import (
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/dirmon/domain/model"
)

type scriptedSettings struct {
	mu       sync.Mutex
	settings *model.MonitorSettings
	err      error
	loads    int
}

func (s *scriptedSettings) set(settings *model.MonitorSettings, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings, s.err = settings, err
}

func (s *scriptedSettings) load() (*model.MonitorSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return s.settings, s.err
}

func (s *scriptedSettings) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

type levelRecorder struct {
	mu     sync.Mutex
	levels []string
}

func (l *levelRecorder) UpdateLevel(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels = append(l.levels, level)
}

func (l *levelRecorder) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.levels...)
}

type configWatcherFixture struct {
	svc      *MonitorService
	backend  *fakeBackend
	watcher  *ConfigWatcherService
	settings *scriptedSettings
	levels   *levelRecorder
	logger   *mockLogger
	events   <-chan delivery
	dir      string
}

func newConfigWatcherFixture(t *testing.T) *configWatcherFixture {
	t.Helper()

	svc, backend, _ := newTestMonitor(t)
	cb, events := collector()
	f := &configWatcherFixture{
		svc:      svc,
		backend:  backend,
		settings: &scriptedSettings{},
		levels:   &levelRecorder{},
		logger:   &mockLogger{},
		events:   events,
		dir:      t.TempDir(),
	}

	watcher, err := NewConfigWatcherService(svc, filepath.Join(f.dir, "dirmon.yaml"), f.settings.load, cb, ConfigWatcherOptions{
		Logger:      f.logger,
		Levels:      f.levels,
		MinInterval: time.Millisecond,
	})
	require.NoError(t, err)
	f.watcher = watcher
	t.Cleanup(func() { watcher.Stop() })

	return f
}

func (f *configWatcherFixture) watched() map[string]model.Action {
	out := make(map[string]model.Action)
	for _, w := range f.svc.Watches() {
		out[w.Path] = w.Actions
	}
	return out
}

func (f *configWatcherFixture) idOf(t *testing.T, path string) model.WatchID {
	t.Helper()
	for _, w := range f.svc.Watches() {
		if w.Path == path {
			return w.ID
		}
	}
	t.Fatalf("%s is not watched", path)
	return 0
}

func TestConfigWatcher_StartWithoutFollow(t *testing.T) {
	f := newConfigWatcherFixture(t)
	a, b := t.TempDir(), t.TempDir()

	err := f.watcher.Start(&model.MonitorSettings{
		LogLevel: "info",
		Watches: []model.WatchSpec{
			{Path: a, Actions: model.ActionCreate},
			{Path: b, Actions: model.ActionAll},
		},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, map[string]model.Action{a: model.ActionCreate, b: model.ActionAll}, f.watched())

	paths := f.watcher.ManagedPaths()
	sort.Strings(paths)
	expected := []string{a, b}
	sort.Strings(expected)
	assert.Equal(t, expected, paths)

	require.NoError(t, f.watcher.Stop())
	assert.Empty(t, f.svc.Watches())
	assert.False(t, f.svc.IsRunning())
	assert.Empty(t, f.levels.get())
}

func TestConfigWatcher_SkipsFailingWatch(t *testing.T) {
	f := newConfigWatcherFixture(t)
	a := t.TempDir()

	err := f.watcher.Start(&model.MonitorSettings{
		Watches: []model.WatchSpec{
			{Path: a, Actions: model.ActionAll},
			{Path: filepath.Join(a, "missing"), Actions: model.ActionAll},
		},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, map[string]model.Action{a: model.ActionAll}, f.watched())
}

func TestConfigWatcher_ReloadsOnChange(t *testing.T) {
	f := newConfigWatcherFixture(t)
	a, b := t.TempDir(), t.TempDir()

	require.NoError(t, f.watcher.Start(&model.MonitorSettings{
		LogLevel: "info",
		Watches:  []model.WatchSpec{{Path: a, Actions: model.ActionCreate}},
	}, true))

	// the config directory is watched for reloads only
	assert.Equal(t, map[string]model.Action{f.dir: model.ActionAll, a: model.ActionCreate}, f.watched())

	f.settings.set(&model.MonitorSettings{
		LogLevel: "DEBUG",
		Watches:  []model.WatchSpec{{Path: b, Actions: model.ActionDelete}},
	}, nil)

	dirID := f.idOf(t, f.dir)
	f.backend.last().emit(
		raw(dirID, model.ActionModify, "other.yaml"),
		raw(dirID, model.ActionModify, "dirmon.yaml"),
	)

	require.Eventually(t, func() bool {
		w := f.watched()
		_, hasA := w[a]
		return !hasA && w[b] == model.ActionDelete
	}, eventTimeout, 5*time.Millisecond)

	assert.Equal(t, []string{"DEBUG"}, f.levels.get())
	assert.Equal(t, 1, f.settings.count())

	// events of the reload-only directory never reach the sink
	select {
	case d := <-f.events:
		t.Fatalf("unexpected delivery %+v", d)
	default:
	}
}

func TestConfigWatcher_ConfigDirectoryAlsoDeclared(t *testing.T) {
	f := newConfigWatcherFixture(t)

	require.NoError(t, f.watcher.Start(&model.MonitorSettings{
		Watches: []model.WatchSpec{{Path: f.dir, Actions: model.ActionDelete}},
	}, true))

	assert.Equal(t, map[string]model.Action{f.dir: model.ActionAll}, f.watched())

	f.settings.set(&model.MonitorSettings{
		Watches: []model.WatchSpec{{Path: f.dir, Actions: model.ActionDelete | model.ActionCreate}},
	}, nil)

	dirID := f.idOf(t, f.dir)
	f.backend.last().emit(
		raw(dirID, model.ActionCreate, "ignored.txt"),
		raw(dirID, model.ActionDelete, "gone.txt"),
		raw(dirID, model.ActionRenameNewName, "dirmon.yaml"),
	)

	assert.Equal(t, delivery{f.dir, "gone.txt", model.ActionDelete}, receive(t, f.events))

	require.Eventually(t, func() bool { return f.settings.count() == 1 }, eventTimeout, 5*time.Millisecond)

	// the new mask applies without re-registering
	require.Eventually(t, func() bool {
		f.watcher.mu.Lock()
		defer f.watcher.mu.Unlock()
		return f.watcher.managed[f.dir] == model.ActionDelete|model.ActionCreate
	}, eventTimeout, 5*time.Millisecond)

	f.backend.last().emit(raw(dirID, model.ActionCreate, "new.txt"))
	assert.Equal(t, delivery{f.dir, "new.txt", model.ActionCreate}, receive(t, f.events))
}

func TestConfigWatcher_ReloadFailureKeepsSettings(t *testing.T) {
	f := newConfigWatcherFixture(t)
	a := t.TempDir()

	require.NoError(t, f.watcher.Start(&model.MonitorSettings{
		Watches: []model.WatchSpec{{Path: a, Actions: model.ActionAll}},
	}, false))

	f.settings.set(nil, errors.New("yaml: line 3: did not find expected key"))
	assert.Error(t, f.watcher.Reload())

	assert.Equal(t, map[string]model.Action{a: model.ActionAll}, f.watched())
	f.logger.mu.Lock()
	assert.Equal(t, []string{"Failed to reload configuration, keeping current settings"}, f.logger.errors)
	f.logger.mu.Unlock()
}

func TestConfigWatcher_MaskChangeReregisters(t *testing.T) {
	f := newConfigWatcherFixture(t)
	a := t.TempDir()

	require.NoError(t, f.watcher.Start(&model.MonitorSettings{
		Watches: []model.WatchSpec{{Path: a, Actions: model.ActionCreate}},
	}, false))

	f.settings.set(&model.MonitorSettings{
		Watches: []model.WatchSpec{{Path: a, Actions: model.ActionModify}},
	}, nil)
	require.NoError(t, f.watcher.Reload())

	assert.Equal(t, map[string]model.Action{a: model.ActionModify}, f.watched())
}

func TestConfigWatcher_StartTwice(t *testing.T) {
	f := newConfigWatcherFixture(t)

	require.NoError(t, f.watcher.Start(&model.MonitorSettings{}, true))
	require.NoError(t, f.watcher.Start(&model.MonitorSettings{}, true))

	assert.Equal(t, []string{"Config watcher service already running"}, f.logger.warnings())
	assert.Len(t, f.svc.Watches(), 1)
}
