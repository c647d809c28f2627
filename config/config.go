package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajkula/dirmon/domain/model"
)

// Config holds the global service configuration
type Config struct {
	// General configuration
	General struct {
		// NodeID names this host in streamed events; the machine id is used when empty
		NodeID string `yaml:"nodeId"`

		// DataDir holds generated files such as TLS certificates
		DataDir string `yaml:"dataDir"`

		// LogLevel is the logging level
		LogLevel string `yaml:"logLevel"`
	} `yaml:"general"`

	// Monitor configuration
	Monitor struct {
		// Backend is auto, inotify or fsnotify
		Backend string `yaml:"backend"`

		// ReadBufferSize is the inotify read buffer in bytes, 0 for the default
		ReadBufferSize int `yaml:"readBufferSize"`

		// EventBufferSize is the fsnotify channel capacity, 0 for unbuffered
		EventBufferSize int `yaml:"eventBufferSize"`
	} `yaml:"monitor"`

	// Directories watched at startup
	Watches []WatchConfig `yaml:"watches"`

	// HTTP server configuration
	HTTP struct {
		// Enabled enables the HTTP server
		Enabled bool `yaml:"enabled"`

		// Address to bind the HTTP server
		Address string `yaml:"address"`

		// Port to bind the HTTP server
		Port int `yaml:"port"`

		// TLS enables TLS
		TLS bool `yaml:"tls"`

		// CertFile is the TLS certificate path
		CertFile string `yaml:"certFile"`

		// KeyFile is the TLS private key path
		KeyFile string `yaml:"keyFile"`

		// JWT configuration
		JWT struct {
			// Secret is the signing key for tokens
			Secret string `yaml:"secret"`

			// ExpirationMinutes is the token validity duration
			ExpirationMinutes int `yaml:"expirationMinutes"`
		} `yaml:"jwt"`
	} `yaml:"http"`

	// gRPC health server configuration
	GRPC struct {
		// Enabled starts the grpc.health.v1 service
		Enabled bool `yaml:"enabled"`

		// Address to bind the gRPC server
		Address string `yaml:"address"`

		// Port to bind the gRPC server
		Port int `yaml:"port"`
	} `yaml:"grpc"`

	// Security configuration
	Security struct {
		// EnableAuthentication protects the API with JWT
		EnableAuthentication bool `yaml:"enableAuthentication"`

		// AdminUsername is the admin username
		AdminUsername string `yaml:"adminUsername"`

		// AdminPasswordHash is the hex argon2id hash, see `dirmon hash-password`
		AdminPasswordHash string `yaml:"adminPasswordHash"`

		// AdminPasswordSalt is the hex encoded 16 byte salt
		AdminPasswordSalt string `yaml:"adminPasswordSalt"`
	} `yaml:"security"`

	// Metrics configuration
	Metrics struct {
		// Enabled exposes prometheus metrics on the HTTP server
		Enabled bool `yaml:"enabled"`

		// Path of the metrics endpoint
		Path string `yaml:"path"`
	} `yaml:"metrics"`

	Logging struct {
		Level       string `yaml:"level"` // "ERROR", "WARN", "INFO", "DEBUG"
		ChannelSize int    `yaml:"channelSize"`
		Format      string `yaml:"format"` // "json", "text"
		Output      string `yaml:"output"` // "stdout", "stderr", "file"
		FilePath    string `yaml:"filePath"`
	} `yaml:"logging"`
}

// WatchConfig declares a directory to watch
type WatchConfig struct {
	// Path of the directory
	Path string `yaml:"path" json:"path"`

	// Actions lists the action names to subscribe to, all when empty
	Actions []string `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// Mask returns the action mask of the watch
func (w WatchConfig) Mask() (model.Action, error) {
	if len(w.Actions) == 0 {
		return model.ActionAll, nil
	}
	return model.ParseActions(w.Actions...)
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	c := &Config{}

	// General configuration
	c.General.NodeID = ""
	c.General.DataDir = "./data"
	c.General.LogLevel = "info"

	// Monitor configuration
	c.Monitor.Backend = "auto"
	c.Monitor.ReadBufferSize = 0
	c.Monitor.EventBufferSize = 0

	c.Watches = []WatchConfig{}

	// HTTP server configuration
	c.HTTP.Enabled = true
	c.HTTP.Address = "127.0.0.1"
	c.HTTP.Port = 8080
	c.HTTP.TLS = false
	c.HTTP.CertFile = ""
	c.HTTP.KeyFile = ""
	c.HTTP.JWT.Secret = "changeme"
	c.HTTP.JWT.ExpirationMinutes = 60

	// gRPC server configuration
	c.GRPC.Enabled = false
	c.GRPC.Address = "127.0.0.1"
	c.GRPC.Port = 50051

	// Security configuration
	c.Security.EnableAuthentication = false
	c.Security.AdminUsername = "admin"
	c.Security.AdminPasswordHash = ""
	c.Security.AdminPasswordSalt = ""

	// Metrics configuration
	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"

	// Logging configuration defaults
	c.Logging.Level = "INFO"
	c.Logging.ChannelSize = 1000
	c.Logging.Format = "json"
	c.Logging.Output = "stdout"
	c.Logging.FilePath = ""

	return c
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Load the default configuration
	config := DefaultConfig()

	// Decode the YAML file
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Complete relative paths
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	if !filepath.IsAbs(config.General.DataDir) {
		config.General.DataDir = filepath.Join(dir, config.General.DataDir)
	}

	for i := range config.Watches {
		if config.Watches[i].Path != "" && !filepath.IsAbs(config.Watches[i].Path) {
			config.Watches[i].Path = filepath.Join(dir, config.Watches[i].Path)
		}
	}

	// Validate the configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	// Encode the configuration to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// Create parent directory if necessary
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write file
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks a configuration built in code
func (c *Config) Validate() error {
	return validateConfig(c)
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	// Check the log level
	logLevel := strings.ToLower(config.General.LogLevel)
	if logLevel != "debug" && logLevel != "info" && logLevel != "warn" && logLevel != "error" {
		return fmt.Errorf("invalid log level: %s", config.General.LogLevel)
	}

	// Check the backend
	backend := strings.ToLower(config.Monitor.Backend)
	if backend != "" && backend != "auto" && backend != "inotify" && backend != "fsnotify" {
		return fmt.Errorf("invalid monitor backend: %s", config.Monitor.Backend)
	}

	if config.Monitor.ReadBufferSize < 0 || config.Monitor.EventBufferSize < 0 {
		return fmt.Errorf("monitor buffer sizes must not be negative")
	}

	// Check the watches
	seen := make(map[string]bool, len(config.Watches))
	for i, w := range config.Watches {
		if w.Path == "" {
			return fmt.Errorf("watch %d: path is required", i)
		}
		if _, err := w.Mask(); err != nil {
			return fmt.Errorf("watch %s: %w", w.Path, err)
		}
		clean := filepath.Clean(w.Path)
		if seen[clean] {
			return fmt.Errorf("watch %s: declared twice", w.Path)
		}
		seen[clean] = true
	}

	// check ports
	if config.HTTP.Enabled && (config.HTTP.Port < 1 || config.HTTP.Port > 65535) {
		return fmt.Errorf("invalid HTTP port: %d", config.HTTP.Port)
	}

	if config.GRPC.Enabled && (config.GRPC.Port < 1 || config.GRPC.Port > 65535) {
		return fmt.Errorf("invalid gRPC port: %d", config.GRPC.Port)
	}

	if config.HTTP.TLS && (config.HTTP.CertFile == "") != (config.HTTP.KeyFile == "") {
		return fmt.Errorf("TLS certificate and key files must be set together")
	}

	// Check the security settings
	if config.Security.EnableAuthentication {
		if config.HTTP.JWT.Secret == "" {
			return fmt.Errorf("authentication enabled but JWT secret is empty")
		}
		if config.HTTP.JWT.ExpirationMinutes <= 0 {
			return fmt.Errorf("invalid JWT expiration: %d", config.HTTP.JWT.ExpirationMinutes)
		}
		if config.Security.AdminUsername == "" || config.Security.AdminPasswordHash == "" {
			return fmt.Errorf("authentication enabled but admin credentials are not set")
		}
		salt, err := hex.DecodeString(config.Security.AdminPasswordSalt)
		if err != nil || len(salt) != 16 {
			return fmt.Errorf("adminPasswordSalt must be 16 hex encoded bytes")
		}
	}

	// Check the metrics path
	if config.Metrics.Enabled && !strings.HasPrefix(config.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics path: %s", config.Metrics.Path)
	}

	// Check the logging settings
	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	switch strings.ToLower(config.Logging.Output) {
	case "stdout", "stderr":
	case "file":
		if config.Logging.FilePath == "" {
			return fmt.Errorf("log output is file but filePath is empty")
		}
	default:
		return fmt.Errorf("invalid log output: %s", config.Logging.Output)
	}

	return nil
}

// AdminSalt decodes the configured admin password salt
func (c *Config) AdminSalt() ([16]byte, error) {
	var salt [16]byte

	raw, err := hex.DecodeString(c.Security.AdminPasswordSalt)
	if err != nil {
		return salt, fmt.Errorf("invalid adminPasswordSalt: %w", err)
	}
	if len(raw) != len(salt) {
		return salt, fmt.Errorf("invalid adminPasswordSalt: want %d bytes, got %d", len(salt), len(raw))
	}

	copy(salt[:], raw)
	return salt, nil
}

// MonitorSettings extracts the reloadable settings
func (c *Config) MonitorSettings() (*model.MonitorSettings, error) {
	settings := &model.MonitorSettings{
		LogLevel: c.Logging.Level,
		Watches:  make([]model.WatchSpec, 0, len(c.Watches)),
	}
	if settings.LogLevel == "" {
		settings.LogLevel = c.General.LogLevel
	}

	for _, w := range c.Watches {
		mask, err := w.Mask()
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", w.Path, err)
		}
		settings.Watches = append(settings.Watches, model.WatchSpec{Path: w.Path, Actions: mask})
	}

	return settings, nil
}

// SettingsLoader returns a loader reading the reloadable settings from path
func SettingsLoader(path string) func() (*model.MonitorSettings, error) {
	return func() (*model.MonitorSettings, error) {
		cfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		return cfg.MonitorSettings()
	}
}
