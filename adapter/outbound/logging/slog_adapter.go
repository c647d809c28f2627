package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajkula/dirmon/config"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// represents a single log entry to be processed asynchronously
type LogMessage struct {
	Level LogLevel
	Msg   string
	Args  []any
	Time  time.Time
}

// implements the Logger interface using Go's structured logging (slog)
// with asynchronous processing so the event loop never blocks on output
type SlogAdapter struct {
	logger    *slog.Logger
	config    *config.Config
	configMu  sync.Mutex
	logChan   chan LogMessage
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	slogLevel *slog.LevelVar
	closer    io.Closer
	dropped   atomic.Uint64
	once      sync.Once
}

var _ outbound.Logger = (*SlogAdapter)(nil)

// NewSlogAdapter opens the output named by cfg.Logging and starts the writer goroutine
func NewSlogAdapter(cfg *config.Config) (*SlogAdapter, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer
	)

	switch strings.ToLower(cfg.Logging.Output) {
	case "stderr":
		w = os.Stderr
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Logging.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w, closer = f, f
	}

	adapter := NewSlogAdapterWithWriter(cfg, w)
	adapter.closer = closer
	return adapter, nil
}

// NewSlogAdapterWithWriter logs to w instead of the configured output
func NewSlogAdapterWithWriter(cfg *config.Config, w io.Writer) *SlogAdapter {
	ctx, cancel := context.WithCancel(context.Background())

	// Create a LevelVar for dynamic level changes
	levelVar := &slog.LevelVar{}
	levelVar.Set(parseSlogLevel(effectiveLevel(cfg)))

	handlerOpts := &slog.HandlerOptions{
		Level: levelVar,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "text" {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	size := cfg.Logging.ChannelSize
	if size <= 0 {
		size = 1
	}

	adapter := &SlogAdapter{
		logger:    slog.New(handler),
		config:    cfg,
		logChan:   make(chan LogMessage, size),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		slogLevel: levelVar,
	}

	go adapter.processLogs()

	return adapter
}

// Logging.Level wins over General.LogLevel when both are set
func effectiveLevel(cfg *config.Config) string {
	if cfg.Logging.Level != "" {
		return cfg.Logging.Level
	}
	return cfg.General.LogLevel
}

// updates both config and slog level dynamically
func (s *SlogAdapter) UpdateLevel(logLvl string) {
	normalizedLevel := strings.ToLower(logLvl)

	s.configMu.Lock()
	s.config.General.LogLevel = normalizedLevel
	s.config.Logging.Level = strings.ToUpper(normalizedLevel)
	s.configMu.Unlock()

	s.slogLevel.Set(parseSlogLevel(normalizedLevel))

	s.Info("Logger level updated dynamically", "new_level", normalizedLevel)
}

// Dropped returns the number of messages lost to a full channel or a closed logger
func (s *SlogAdapter) Dropped() uint64 {
	return s.dropped.Load()
}

// handles messages asynchronously
func (s *SlogAdapter) processLogs() {
	defer close(s.done)

	for {
		select {
		case msg := <-s.logChan:
			s.writeLog(msg)
		case <-s.ctx.Done():
			for {
				select {
				case msg := <-s.logChan:
					s.writeLog(msg)
				default:
					return
				}
			}
		}
	}
}

// converts string level to slog.Level, unknown levels only let errors through
func parseSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// performs the logging operation, stamped with the time the call was made.
// The level was checked when the message was queued.
func (s *SlogAdapter) writeLog(msg LogMessage) {
	record := slog.NewRecord(msg.Time, msg.Level.slogLevel(), msg.Msg, 0)
	record.Add(msg.Args...)
	_ = s.logger.Handler().Handle(context.Background(), record)
}

func (s *SlogAdapter) sendLog(level LogLevel, msg string, args ...any) {
	if s.ctx.Err() != nil {
		s.dropped.Add(1)
		return
	}

	select {
	case s.logChan <- LogMessage{
		Level: level,
		Msg:   msg,
		Args:  args,
		Time:  time.Now(),
	}:
	default:
		s.dropped.Add(1)
	}
}

func (s *SlogAdapter) shouldLog(level LogLevel) bool {
	return level.slogLevel() >= s.slogLevel.Level()
}

func (s *SlogAdapter) Error(msg string, args ...any) {
	if !s.shouldLog(LevelError) {
		return
	}
	s.sendLog(LevelError, msg, args...)
}

func (s *SlogAdapter) Warn(msg string, args ...any) {
	if !s.shouldLog(LevelWarn) {
		return
	}
	s.sendLog(LevelWarn, msg, args...)
}

func (s *SlogAdapter) Info(msg string, args ...any) {
	if !s.shouldLog(LevelInfo) {
		return
	}
	s.sendLog(LevelInfo, msg, args...)
}

func (s *SlogAdapter) Debug(msg string, args ...any) {
	if !s.shouldLog(LevelDebug) {
		return
	}
	s.sendLog(LevelDebug, msg, args...)
}

// Shutdown flushes queued messages and releases the output. Safe to call twice.
func (s *SlogAdapter) Shutdown() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		if s.closer != nil {
			s.closer.Close()
		}
	})
}
