package config

// safe for API structure
type PublicConfig struct {
	General struct {
		NodeID   string `yaml:"nodeId" json:"nodeId"`
		LogLevel string `yaml:"logLevel" json:"logLevel"`
	} `yaml:"general" json:"general"`

	Monitor struct {
		Backend         string `yaml:"backend" json:"backend"`
		ReadBufferSize  int    `yaml:"readBufferSize" json:"readBufferSize"`
		EventBufferSize int    `yaml:"eventBufferSize" json:"eventBufferSize"`
	} `yaml:"monitor" json:"monitor"`

	Watches []WatchConfig `yaml:"watches" json:"watches"`

	HTTP struct {
		Address string `yaml:"address" json:"address"`
		Port    int    `yaml:"port" json:"port"`
		TLS     bool   `yaml:"tls" json:"tls"`

		JWT struct {
			ExpirationMinutes int `yaml:"expirationMinutes" json:"expirationMinutes"`
		} `yaml:"jwt" json:"jwt"`
	} `yaml:"http" json:"http"`

	GRPC struct {
		Enabled bool   `yaml:"enabled" json:"enabled"`
		Address string `yaml:"address" json:"address"`
		Port    int    `yaml:"port" json:"port"`
	} `yaml:"grpc" json:"grpc"`

	Security struct {
		EnableAuthentication bool   `yaml:"enableAuthentication" json:"enableAuthentication"`
		AdminUsername        string `yaml:"adminUsername" json:"adminUsername"`
	} `yaml:"security" json:"security"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" json:"enabled"`
		Path    string `yaml:"path" json:"path"`
	} `yaml:"metrics" json:"metrics"`

	Logging struct {
		Level  string `yaml:"level" json:"level"`
		Format string `yaml:"format" json:"format"`
		Output string `yaml:"output" json:"output"`
	} `yaml:"logging" json:"logging"`
}

// Public returns the configuration without secrets or file system layout
func (c *Config) Public() *PublicConfig {
	p := &PublicConfig{}

	p.General.NodeID = c.General.NodeID
	p.General.LogLevel = c.General.LogLevel

	p.Monitor.Backend = c.Monitor.Backend
	p.Monitor.ReadBufferSize = c.Monitor.ReadBufferSize
	p.Monitor.EventBufferSize = c.Monitor.EventBufferSize

	p.Watches = append([]WatchConfig(nil), c.Watches...)

	p.HTTP.Address = c.HTTP.Address
	p.HTTP.Port = c.HTTP.Port
	p.HTTP.TLS = c.HTTP.TLS
	p.HTTP.JWT.ExpirationMinutes = c.HTTP.JWT.ExpirationMinutes

	p.GRPC.Enabled = c.GRPC.Enabled
	p.GRPC.Address = c.GRPC.Address
	p.GRPC.Port = c.GRPC.Port

	p.Security.EnableAuthentication = c.Security.EnableAuthentication
	p.Security.AdminUsername = c.Security.AdminUsername

	p.Metrics.Enabled = c.Metrics.Enabled
	p.Metrics.Path = c.Metrics.Path

	p.Logging.Level = c.Logging.Level
	p.Logging.Format = c.Logging.Format
	p.Logging.Output = c.Logging.Output

	return p
}
