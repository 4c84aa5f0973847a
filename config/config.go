// Package config loads skytrace configuration from defaults, TOML files and
// SKYTRACE_* environment variables using Viper.
package config

import "time"

// Config represents the complete skytrace configuration
type Config struct {
	Store  StoreConfig  `mapstructure:"store" toml:"store"`
	Server ServerConfig `mapstructure:"server" toml:"server"`
	Query  QueryConfig  `mapstructure:"query" toml:"query"`
	Log    LogConfig    `mapstructure:"log" toml:"log"`
}

// StoreConfig configures the document store connection
type StoreConfig struct {
	URI                   string `mapstructure:"uri" toml:"uri"`               // mongodb://... or sqlite://path
	Database              string `mapstructure:"database" toml:"database"`     // e.g. "romeo5"
	Collection            string `mapstructure:"collection" toml:"collection"` // e.g. "asterix"
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds" toml:"connect_timeout_seconds"`
	ProbeTimeoutSeconds   int    `mapstructure:"probe_timeout_seconds" toml:"probe_timeout_seconds"` // per-session liveness probe
}

// ServerConfig configures the HTTP/WebSocket listener
type ServerConfig struct {
	Host                   string   `mapstructure:"host" toml:"host"`
	Port                   int      `mapstructure:"port" toml:"port"`
	AllowedOrigins         []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
	MaxSessions            int      `mapstructure:"max_sessions" toml:"max_sessions"`
	PingPeriodSeconds      int      `mapstructure:"ping_period_seconds" toml:"ping_period_seconds"` // must be less than pong wait
	PongWaitSeconds        int      `mapstructure:"pong_wait_seconds" toml:"pong_wait_seconds"`
	WriteWaitSeconds       int      `mapstructure:"write_wait_seconds" toml:"write_wait_seconds"`
	MaxMessageBytes        int64    `mapstructure:"max_message_bytes" toml:"max_message_bytes"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
}

// QueryConfig configures the query actor and the query endpoints
type QueryConfig struct {
	MailboxSize    int     `mapstructure:"mailbox_size" toml:"mailbox_size"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
	RatePerSecond  float64 `mapstructure:"rate_per_second" toml:"rate_per_second"` // 0 disables rate limiting
	Burst          int     `mapstructure:"burst" toml:"burst"`
}

// LogConfig configures logging output
type LogConfig struct {
	JSON      bool `mapstructure:"json" toml:"json"`
	Verbosity int  `mapstructure:"verbosity" toml:"verbosity"`
}

// Listener defaults
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8080
)

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// ConnectTimeout returns the store connect timeout
func (s StoreConfig) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutSeconds) * time.Second
}

// ProbeTimeout returns the liveness probe timeout
func (s StoreConfig) ProbeTimeout() time.Duration {
	return time.Duration(s.ProbeTimeoutSeconds) * time.Second
}

// PingPeriod returns how often sessions send keepalive pings
func (s ServerConfig) PingPeriod() time.Duration {
	return time.Duration(s.PingPeriodSeconds) * time.Second
}

// PongWait returns how long a session waits for any inbound traffic
func (s ServerConfig) PongWait() time.Duration {
	return time.Duration(s.PongWaitSeconds) * time.Second
}

// WriteWait returns the deadline applied to each outbound frame
func (s ServerConfig) WriteWait() time.Duration {
	return time.Duration(s.WriteWaitSeconds) * time.Second
}

// ShutdownTimeout returns how long Stop waits for goroutines
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// Timeout returns the per-query timeout
func (q QueryConfig) Timeout() time.Duration {
	return time.Duration(q.TimeoutSeconds) * time.Second
}
