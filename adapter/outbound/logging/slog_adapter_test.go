package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/dirmon/config"
)

// Helper to create test config
func createTestConfig(level string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = level
	cfg.Logging.ChannelSize = 100
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stdout"
	return cfg
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := strings.TrimSpace(b.buf.String())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected []string
	}{
		{"ERROR level - only errors", "ERROR", []string{"error message"}},
		{"WARN level - error and warn", "WARN", []string{"error message", "warn message"}},
		{"INFO level - error, warn, info", "INFO", []string{"error message", "warn message", "info message"}},
		{"DEBUG level - all messages", "DEBUG", []string{"error message", "warn message", "info message", "debug message"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &syncBuffer{}
			logger := NewSlogAdapterWithWriter(createTestConfig(tt.level), out)

			logger.Error("error message", "key", "error_value")
			logger.Warn("warn message", "key", "warn_value")
			logger.Info("info message", "key", "info_value")
			logger.Debug("debug message", "key", "debug_value")

			logger.Shutdown()

			lines := out.lines()
			require.Len(t, lines, len(tt.expected))
			for i, line := range lines {
				var entry map[string]any
				require.NoError(t, json.Unmarshal([]byte(line), &entry))
				assert.Equal(t, tt.expected[i], entry["msg"])
				assert.NotEmpty(t, entry["key"])
			}
		})
	}
}

func TestLogger_TextFormat(t *testing.T) {
	cfg := createTestConfig("INFO")
	cfg.Logging.Format = "text"
	out := &syncBuffer{}

	logger := NewSlogAdapterWithWriter(cfg, out)
	logger.Info("watch added", "path", "/srv/inbox", "id", 3)
	logger.Shutdown()

	lines := out.lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `msg="watch added"`)
	assert.Contains(t, lines[0], "path=/srv/inbox")
	assert.Contains(t, lines[0], "id=3")
}

func TestLogger_KeepsCallTime(t *testing.T) {
	out := &syncBuffer{}
	logger := NewSlogAdapterWithWriter(createTestConfig("INFO"), out)

	before := time.Now()
	logger.Info("stamped")
	logger.Shutdown()

	lines := out.lines()
	require.Len(t, lines, 1)

	var entry struct {
		Time time.Time `json:"time"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.WithinDuration(t, before, entry.Time, time.Second)
}

func TestLogger_AsyncBehavior(t *testing.T) {
	cfg := createTestConfig("DEBUG")
	cfg.Logging.ChannelSize = 5 // Small buffer to test overflow behavior

	logger := NewSlogAdapterWithWriter(cfg, &syncBuffer{})
	defer logger.Shutdown()

	// Send many messages quickly to test async behavior
	start := time.Now()
	for i := 0; i < 100; i++ {
		logger.Debug("message", "iteration", i)
	}
	elapsed := time.Since(start)

	// Async logging should be very fast (not blocked by I/O)
	if elapsed > 50*time.Millisecond {
		t.Errorf("Logging took too long: %v, expected < 50ms (async should be fast)", elapsed)
	}
}

func TestLogger_ChannelOverflowIsCounted(t *testing.T) {
	cfg := createTestConfig("DEBUG")
	cfg.Logging.ChannelSize = 1

	blocked := make(chan struct{})
	logger := NewSlogAdapterWithWriter(cfg, blockingWriter{blocked})

	for i := 0; i < 10; i++ {
		logger.Debug("overflow test", "iteration", i)
	}

	// the writer holds one message, the channel one more
	assert.GreaterOrEqual(t, logger.Dropped(), uint64(8))

	close(blocked)
	logger.Shutdown()
}

func TestLogger_Shutdown(t *testing.T) {
	out := &syncBuffer{}
	adapter := NewSlogAdapterWithWriter(createTestConfig("DEBUG"), out)

	adapter.Debug("message 1")
	adapter.Info("message 2")

	start := time.Now()
	adapter.Shutdown()
	elapsed := time.Since(start)

	if elapsed > 100*time.Millisecond {
		t.Errorf("Shutdown took too long: %v, expected < 100ms", elapsed)
	}

	// queued messages are flushed
	assert.Len(t, out.lines(), 2)

	// Sending messages after shutdown should not panic
	adapter.Debug("message after shutdown")
	adapter.Shutdown()
	assert.Equal(t, uint64(1), adapter.Dropped())
}

func TestLogger_ConfigDefaults(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		expectInfo  bool
		expectDebug bool
	}{
		{"empty level falls back to general.logLevel", "", true, false},
		{"invalid level defaults to ERROR", "INVALID", false, false},
		{"case insensitive level", "debug", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewSlogAdapterWithWriter(createTestConfig(tt.level), &syncBuffer{})
			defer adapter.Shutdown()

			assert.True(t, adapter.shouldLog(LevelError))
			assert.Equal(t, tt.expectInfo, adapter.shouldLog(LevelInfo))
			assert.Equal(t, tt.expectDebug, adapter.shouldLog(LevelDebug))
		})
	}
}

func TestNewSlogAdapter_Outputs(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", ""} {
		t.Run("output_"+output, func(t *testing.T) {
			cfg := createTestConfig("DEBUG")
			cfg.Logging.Output = output

			logger, err := NewSlogAdapter(cfg)
			require.NoError(t, err)
			logger.Shutdown()
		})
	}
}

func TestNewSlogAdapter_File(t *testing.T) {
	cfg := createTestConfig("INFO")
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = filepath.Join(t.TempDir(), "logs", "dirmon.log")

	logger, err := NewSlogAdapter(cfg)
	require.NoError(t, err)

	logger.Info("to file", "key", "value")
	logger.Shutdown()

	data, err := os.ReadFile(cfg.Logging.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
}

func TestNewSlogAdapter_FileError(t *testing.T) {
	dir := t.TempDir()
	cfg := createTestConfig("INFO")
	cfg.Logging.Output = "file"
	// a directory cannot be opened for writing
	cfg.Logging.FilePath = dir

	_, err := NewSlogAdapter(cfg)
	assert.Error(t, err)
}

type blockingWriter struct {
	release <-chan struct{}
}

func (w blockingWriter) Write(p []byte) (int, error) {
	<-w.release
	return len(p), nil
}

// Benchmark tests to ensure performance
func BenchmarkLogger_Debug(b *testing.B) {
	cfg := createTestConfig("ERROR") // Debug disabled for performance
	cfg.Logging.ChannelSize = 1000

	logger := NewSlogAdapterWithWriter(cfg, &syncBuffer{})
	defer logger.Shutdown()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			logger.Debug("benchmark message", "iteration", 1, "key", "value")
		}
	})
}

func BenchmarkLogger_Info(b *testing.B) {
	cfg := createTestConfig("INFO")
	cfg.Logging.ChannelSize = 1000

	logger := NewSlogAdapterWithWriter(cfg, &syncBuffer{})
	defer logger.Shutdown()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			logger.Info("benchmark message", "iteration", 1, "key", "value")
		}
	})
}
