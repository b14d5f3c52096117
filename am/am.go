// Package am loads phylo configuration from defaults, am.toml files and
// PHYLO_* environment variables.
package am

// Config represents the phylo configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port           *int            `mapstructure:"port"` // nil = DefaultServerPort, 0 is invalid
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig configures the per-client token bucket
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"` // 0 = unlimited
	Burst             int     `mapstructure:"burst"`
}

// LogConfig configures logger output
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

// TracingConfig selects where OpenTelemetry spans are exported
type TracingConfig struct {
	Exporter    string  `mapstructure:"exporter"`     // none, stdout or otlp
	Endpoint    string  `mapstructure:"endpoint"`     // otlp collector host:port
	Insecure    bool    `mapstructure:"insecure"`     // plain HTTP to the collector
	SampleRatio float64 `mapstructure:"sample_ratio"` // 0..1 of root spans kept
}

// Tracing exporters
const (
	TracingExporterNone   = "none"
	TracingExporterStdout = "stdout"
	TracingExporterOTLP   = "otlp"
)

// Defaults
const (
	DefaultServerPort = 8088
	DefaultDatabase   = "phylo.db"
	DefaultRatePerSec = 50.0
	DefaultRateBurst  = 100
	DefaultSampleRate = 1.0
)

// Config file locations and environment
const (
	EnvPrefix         = "PHYLO"
	ProjectConfigName = "am.toml"
	UserConfigDirName = ".phylo"
	SystemConfigPath  = "/etc/phylo/am.toml"
)

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)

// GetServerPort returns the configured port or DefaultServerPort.
func (c *Config) GetServerPort() int {
	if c.Server.Port == nil {
		return DefaultServerPort
	}
	return *c.Server.Port
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return DefaultDatabase
	}
	return c.Database.Path
}

// GetServerAllowedOrigins returns the allowed CORS origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return defaultAllowedOrigins()
	}
	return c.Server.AllowedOrigins
}

func defaultAllowedOrigins() []string {
	return []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	}
}
