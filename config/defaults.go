package config

import (
	"github.com/spf13/viper"
)

// DefaultStoreURI points at a local single-node MongoDB
const DefaultStoreURI = "mongodb://localhost:27017/romeo5?readPreference=primary&ssl=false&directConnection=true"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Store defaults
	v.SetDefault("store.uri", DefaultStoreURI)
	v.SetDefault("store.database", "romeo5")
	v.SetDefault("store.collection", "asterix")
	v.SetDefault("store.connect_timeout_seconds", 10)
	v.SetDefault("store.probe_timeout_seconds", 5)

	// Server defaults (keepalive values follow the Gorilla chat example)
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("server.max_sessions", 100)
	v.SetDefault("server.ping_period_seconds", 54)
	v.SetDefault("server.pong_wait_seconds", 60)
	v.SetDefault("server.write_wait_seconds", 10)
	v.SetDefault("server.max_message_bytes", 1024*1024)
	v.SetDefault("server.shutdown_timeout_seconds", 30)

	// Query actor defaults
	v.SetDefault("query.mailbox_size", 64)
	v.SetDefault("query.timeout_seconds", 30)
	v.SetDefault("query.rate_per_second", 20.0)
	v.SetDefault("query.burst", 40)

	// Logging defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 1)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// Connection strings carry credentials; MONGODB_URI is the conventional name
	_ = v.BindEnv("store.uri", "SKYTRACE_STORE_URI", "MONGODB_URI")
}

// Default returns a Config populated only from defaults
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing to decode them is a programming error
		panic(err)
	}
	return &cfg
}
