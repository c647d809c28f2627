package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/inbound"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

// actions on the configuration file that trigger a reload
const reloadActions = model.ActionCreate | model.ActionModify | model.ActionRenameNewName

// DefaultReloadInterval is the minimum delay between two reloads
const DefaultReloadInterval = time.Second

// ConfigWatcherOptions carries the optional collaborators of a ConfigWatcherService
type ConfigWatcherOptions struct {
	Logger outbound.Logger

	// Levels receives the log level of every reloaded configuration
	Levels model.LevelUpdater

	// MinInterval rate limits reloads, DefaultReloadInterval when zero
	MinInterval time.Duration
}

// ConfigWatcherService registers the configured watches and keeps them in sync
// with the configuration file. The file's directory is watched through the
// same monitor; its events reach sink only when the directory is also declared.
type ConfigWatcherService struct {
	monitor     inbound.DirectoryMonitor
	load        func() (*model.MonitorSettings, error)
	sink        model.Callback
	levels      model.LevelUpdater
	logger      outbound.Logger
	minInterval time.Duration

	dir  string
	base string

	// managed maps every directory registered by this service to the mask
	// forwarded to sink. ActionNone marks the reload-only config directory.
	// Never held across monitor calls.
	mu       sync.Mutex
	managed  map[string]model.Action
	logLevel string

	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewConfigWatcherService(
	monitor inbound.DirectoryMonitor,
	configPath string,
	load func() (*model.MonitorSettings, error),
	sink model.Callback,
	opts ConfigWatcherOptions,
) (*ConfigWatcherService, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultReloadInterval
	}

	return &ConfigWatcherService{
		monitor:     monitor,
		load:        load,
		sink:        sink,
		levels:      opts.Levels,
		logger:      opts.Logger,
		minInterval: opts.MinInterval,
		dir:         filepath.Dir(absPath),
		base:        filepath.Base(absPath),
		managed:     make(map[string]model.Action),
		trigger:     make(chan struct{}, 1),
	}, nil
}

// Start registers the initial watches, then follows the configuration file
// when follow is set. Failing watches are logged and skipped.
func (s *ConfigWatcherService) Start(initial *model.MonitorSettings, follow bool) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Config watcher service already running")
		return nil
	}
	s.running = true
	s.logLevel = initial.LogLevel
	s.mu.Unlock()

	if follow {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		s.mu.Lock()
		s.cancel, s.done = cancel, done
		s.mu.Unlock()

		// the directory is registered first so a declared watch on it merges
		if err := s.register(s.dir, model.ActionNone); err != nil {
			cancel()
			s.mu.Lock()
			s.running = false
			s.cancel, s.done = nil, nil
			s.mu.Unlock()
			return err
		}

		go s.processEvents(ctx, done)
	}

	s.apply(initial)

	if follow {
		s.logger.Info("Following configuration file", "path", filepath.Join(s.dir, s.base))
	}
	return nil
}

// Stop ends the reload goroutine and removes every watch the service registered
func (s *ConfigWatcherService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	var firstErr error
	for _, path := range s.ManagedPaths() {
		if _, err := s.monitor.Unwatch(path); err != nil && firstErr == nil {
			firstErr = err
		}
		s.mu.Lock()
		delete(s.managed, path)
		s.mu.Unlock()
	}

	s.logger.Info("Config watcher service stopped")
	return firstErr
}

// ManagedPaths lists the directories registered by this service
func (s *ConfigWatcherService) ManagedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.managed))
	for path := range s.managed {
		paths = append(paths, path)
	}
	return paths
}

// Reload loads and applies the configuration now
func (s *ConfigWatcherService) Reload() error {
	settings, err := s.load()
	if err != nil {
		s.logger.Error("Failed to reload configuration, keeping current settings", "error", err)
		return err
	}

	s.apply(settings)
	s.logger.Info("Configuration reloaded", "watches", len(settings.Watches))
	return nil
}

// dispatch runs on the event loop goroutine
func (s *ConfigWatcherService) dispatch(path, fileName string, action model.Action) {
	if path == s.dir && fileName == s.base && action&reloadActions != 0 {
		select {
		case s.trigger <- struct{}{}:
		default:
		}
	}

	s.mu.Lock()
	mask := s.managed[path]
	s.mu.Unlock()

	if mask&action != 0 {
		s.sink(path, fileName, action)
	}
}

// processEvents reloads on trigger, at most once per minInterval
func (s *ConfigWatcherService) processEvents(ctx context.Context, done chan struct{}) {
	defer close(done)

	var lastSync time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
		}

		// editors emit several events per save; let them settle
		if wait := s.minInterval - time.Since(lastSync); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
		// drop the triggers that arrived while waiting
		select {
		case <-s.trigger:
		default:
		}

		s.Reload()
		lastSync = time.Now()
	}
}

// apply reconciles the registered watches and the log level with settings
func (s *ConfigWatcherService) apply(settings *model.MonitorSettings) {
	wanted := make(map[string]model.Action, len(settings.Watches))
	for _, w := range settings.Watches {
		wanted[filepath.Clean(w.Path)] = w.Actions
	}

	following := s.following()

	s.mu.Lock()
	current := make(map[string]model.Action, len(s.managed))
	for path, mask := range s.managed {
		current[path] = mask
	}
	levelChanged := settings.LogLevel != "" && !strings.EqualFold(settings.LogLevel, s.logLevel)
	if levelChanged {
		s.logLevel = settings.LogLevel
	}
	s.mu.Unlock()

	if levelChanged && s.levels != nil {
		s.levels.UpdateLevel(settings.LogLevel)
	}

	for path, mask := range current {
		if path == s.dir && following {
			if wanted[path] != mask {
				s.setMask(path, wanted[path])
			}
			continue
		}
		if want, ok := wanted[path]; !ok || want != mask {
			s.unregister(path)
		}
	}

	for path, mask := range wanted {
		if path == s.dir && following {
			continue
		}
		if have, ok := current[path]; ok && have == mask {
			continue
		}
		if err := s.register(path, mask); err != nil {
			s.logger.Error("Failed to watch configured directory", "path", path, "error", err)
		}
	}
}

// register watches path for s.dispatch. The config directory is registered
// for every action so its forwarded mask can change without re-registering.
func (s *ConfigWatcherService) register(path string, mask model.Action) error {
	registered := mask
	if path == s.dir && s.following() {
		registered = model.ActionAll
	}

	info, err := s.monitor.Watch(path, s.dispatch, registered)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.managed[info.Path] = mask
	s.mu.Unlock()

	if mask != model.ActionNone {
		s.logger.Info("Watching directory", "path", info.Path, "actions", model.ActionName(mask))
	}
	return nil
}

func (s *ConfigWatcherService) unregister(path string) {
	if _, err := s.monitor.Unwatch(path); err != nil {
		s.logger.Error("Failed to remove configured watch", "path", path, "error", err)
	}

	s.mu.Lock()
	delete(s.managed, path)
	s.mu.Unlock()

	s.logger.Info("Stopped watching directory", "path", path)
}

func (s *ConfigWatcherService) following() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// setMask changes the mask forwarded for the config directory
func (s *ConfigWatcherService) setMask(path string, mask model.Action) {
	s.mu.Lock()
	s.managed[path] = mask
	s.mu.Unlock()
}
