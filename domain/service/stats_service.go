package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/inbound"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

const (
	DefaultCollectInterval = time.Minute
	defaultRateHistory     = 24
	defaultRecentEvents    = 50
	defaultSystemEvents    = 20
	defaultTopPaths        = 10
)

// watchSource is the part of the monitor the stats snapshot reads
type watchSource interface {
	Watches() []model.WatchInfo
	IsRunning() bool
}

type StatsOptions struct {
	Logger outbound.Logger
	// CollectInterval is the width of one EventRate sample
	CollectInterval time.Duration
	RateHistory     int
	RecentEvents    int
	SystemEvents    int
	TopPaths        int
}

type pathCounters struct {
	events    int
	byAction  map[string]int
	lastEvent int64
}

// StatsServiceImpl aggregates delivered events in memory
type StatsServiceImpl struct {
	source watchSource
	logger outbound.Logger
	opts   StatsOptions
	now    func() time.Time

	mu            sync.RWMutex
	total         int
	byAction      map[string]int
	paths         map[string]*pathCounters
	pending       int // events since the last collection
	lastCollected time.Time
	rates         []model.EventRate
	recent        []model.FileEvent
	systemEvents  []model.SystemEvent

	stopOnce    sync.Once
	stopCollect chan struct{}
	done        chan struct{}
}

// NewStatsService starts the periodic rate collection
func NewStatsService(source watchSource, opts StatsOptions) *StatsServiceImpl {
	s := newStatsService(source, opts)
	go s.startMetricsCollection()
	return s
}

func newStatsService(source watchSource, opts StatsOptions) *StatsServiceImpl {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.CollectInterval <= 0 {
		opts.CollectInterval = DefaultCollectInterval
	}
	if opts.RateHistory <= 0 {
		opts.RateHistory = defaultRateHistory
	}
	if opts.RecentEvents <= 0 {
		opts.RecentEvents = defaultRecentEvents
	}
	if opts.SystemEvents <= 0 {
		opts.SystemEvents = defaultSystemEvents
	}
	if opts.TopPaths <= 0 {
		opts.TopPaths = defaultTopPaths
	}

	s := &StatsServiceImpl{
		source:      source,
		logger:      opts.Logger,
		opts:        opts,
		now:         time.Now,
		byAction:    make(map[string]int),
		paths:       make(map[string]*pathCounters),
		stopCollect: make(chan struct{}),
		done:        make(chan struct{}),
	}
	s.lastCollected = s.now()
	return s
}

var _ inbound.StatsService = (*StatsServiceImpl)(nil)

func (s *StatsServiceImpl) TrackEvent(path, fileName string, action model.Action) {
	name := action.String()
	now := s.now().Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.pending++
	s.byAction[name]++

	pc, ok := s.paths[path]
	if !ok {
		pc = &pathCounters{byAction: make(map[string]int)}
		s.paths[path] = pc
	}
	pc.events++
	pc.byAction[name]++
	pc.lastEvent = now

	s.recent = append(s.recent, model.FileEvent{
		Path:     path,
		FileName: fileName,
		Action:   name,
		UnixTime: now,
	})
	if len(s.recent) > s.opts.RecentEvents {
		s.recent = s.recent[len(s.recent)-s.opts.RecentEvents:]
	}
}

func (s *StatsServiceImpl) RecordWatchAdded(path string, actions model.Action) {
	s.recordEvent("watch_added", "info", path, map[string]any{"actions": actions.String()})
}

func (s *StatsServiceImpl) RecordWatchRemoved(path string) {
	s.mu.Lock()
	delete(s.paths, path)
	s.mu.Unlock()

	s.recordEvent("watch_removed", "info", path, nil)
}

func (s *StatsServiceImpl) RecordLoopFailure(backend string, err error) {
	s.recordEvent("loop_failed", "error", backend, map[string]any{"error": err.Error()})
}

// recordEvent keeps only the latest loop failure per backend
func (s *StatsServiceImpl) recordEvent(eventType, severity, resource string, data any) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if eventType == "loop_failed" {
		for i, evt := range s.systemEvents {
			if evt.EventType == eventType && evt.Resource == resource {
				s.systemEvents[i].ID = uuid.NewString()
				s.systemEvents[i].Data = data
				s.systemEvents[i].Timestamp = now
				s.systemEvents[i].UnixTime = now.Unix()
				return
			}
		}
	}

	s.systemEvents = append(s.systemEvents, model.SystemEvent{
		ID:        uuid.NewString(),
		Type:      severity,
		EventType: eventType,
		Resource:  resource,
		Data:      data,
		Timestamp: now,
		UnixTime:  now.Unix(),
	})
	if len(s.systemEvents) > s.opts.SystemEvents {
		s.systemEvents = s.systemEvents[len(s.systemEvents)-s.opts.SystemEvents:]
	}
}

func (s *StatsServiceImpl) startMetricsCollection() {
	defer close(s.done)

	ticker := time.NewTicker(s.opts.CollectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.collectMetrics()
		case <-s.stopCollect:
			return
		}
	}
}

// collectMetrics closes the current rate sample
func (s *StatsServiceImpl) collectMetrics() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	elapsed := now.Sub(s.lastCollected).Seconds()
	if elapsed <= 0 {
		return
	}

	s.rates = append(s.rates, model.EventRate{
		Timestamp: now.Unix(),
		Rate:      float64(s.pending) / elapsed,
		Total:     s.pending,
	})
	if len(s.rates) > s.opts.RateHistory {
		s.rates = s.rates[len(s.rates)-s.opts.RateHistory:]
	}

	s.pending = 0
	s.lastCollected = now
}

func (s *StatsServiceImpl) GetStats(ctx context.Context) (*model.StatsData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &model.StatsData{}
	if s.source != nil {
		stats.Watches = len(s.source.Watches())
		stats.Running = s.source.IsRunning()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats.TotalEvents = s.total
	stats.ByAction = make(map[string]int, len(s.byAction))
	for name, n := range s.byAction {
		stats.ByAction[name] = n
	}

	stats.EventRates = append([]model.EventRate{}, s.rates...)
	if n := len(s.rates); n >= 2 {
		stats.EventTrend = calculateTrend(s.rates[n-2].Total, s.rates[n-1].Total)
	}

	stats.TopPaths = make([]model.PathStats, 0, len(s.paths))
	for path, pc := range s.paths {
		byAction := make(map[string]int, len(pc.byAction))
		for name, n := range pc.byAction {
			byAction[name] = n
		}
		stats.TopPaths = append(stats.TopPaths, model.PathStats{
			Path:      path,
			Events:    pc.events,
			ByAction:  byAction,
			LastEvent: pc.lastEvent,
		})
	}
	sortPathsByEvents(stats.TopPaths)
	if len(stats.TopPaths) > s.opts.TopPaths {
		stats.TopPaths = stats.TopPaths[:s.opts.TopPaths]
	}

	// newest first
	stats.RecentEvents = make([]model.FileEvent, len(s.recent))
	for i, evt := range s.recent {
		stats.RecentEvents[len(s.recent)-1-i] = evt
	}
	stats.SystemEvents = make([]model.SystemEvent, len(s.systemEvents))
	for i, evt := range s.systemEvents {
		stats.SystemEvents[len(s.systemEvents)-1-i] = evt
	}

	return stats, nil
}

func calculateTrend(previous, current int) *model.Trend {
	if previous == 0 {
		return nil
	}

	change := float64(current-previous) / float64(previous) * 100
	direction := "up"
	if change < 0 {
		direction = "down"
		change = -change
	}

	return &model.Trend{
		Direction: direction,
		Value:     change,
	}
}

func sortPathsByEvents(paths []model.PathStats) {
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Events != paths[j].Events {
			return paths[i].Events > paths[j].Events
		}
		return paths[i].Path < paths[j].Path
	})
}

// Stop ends the collection goroutine. Collected data stays readable.
func (s *StatsServiceImpl) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCollect)
		<-s.done
		s.logger.Debug("Stats collection stopped")
	})
}
