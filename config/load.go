package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/skytrace/errors"
)

// ProjectConfigName is searched for from the working directory upwards
const ProjectConfigName = "skytrace.toml"

var (
	mu            sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper
	explicitFile  string   // set by --config; replaces the file search
	mergedFiles   []string // files merged by the last initViper, lowest precedence first
)

// Load reads the skytrace configuration using Viper.
// The result is cached until Reset is called.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	v, err := initViper()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// LoadFromFile loads configuration from a specific file path on top of defaults.
// Environment variables are not consulted.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}
	return &cfg, nil
}

// SetConfigFile makes Load read only the given file (plus defaults and env vars)
// instead of searching the standard locations. Used by the --config flag.
func SetConfigFile(path string) {
	mu.Lock()
	defer mu.Unlock()
	explicitFile = path
	globalConfig = nil
	viperInstance = nil
}

// Reset clears the cached configuration (useful for testing and reloads)
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	viperInstance = nil
}

// ActiveFile returns the highest-precedence config file that was merged,
// or "" when only defaults and environment variables are in effect.
func ActiveFile() string {
	mu.Lock()
	defer mu.Unlock()
	if len(mergedFiles) == 0 {
		return ""
	}
	return mergedFiles[len(mergedFiles)-1]
}

// initViper initializes Viper with configuration sources and defaults.
// Caller must hold mu.
func initViper() (*viper.Viper, error) {
	if viperInstance != nil {
		return viperInstance, nil
	}

	v := viper.New()

	v.SetEnvPrefix("SKYTRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindSensitiveEnvVars(v)

	SetDefaults(v)

	files, err := mergeConfigFiles(v)
	if err != nil {
		return nil, err
	}
	mergedFiles = files

	viperInstance = v
	return v, nil
}

// candidateFiles lists config files in precedence order (lowest first)
func candidateFiles() []string {
	if explicitFile != "" {
		return []string{explicitFile}
	}

	paths := []string{"/etc/skytrace/config.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".skytrace", "config.toml"))
	}
	if project := findProjectConfig(); project != "" {
		paths = append(paths, project)
	}
	return paths
}

// mergeConfigFiles merges every existing candidate into v.
// Precedence (lowest to highest): system < user < project < env vars.
// An explicit --config file that cannot be read is an error; missing
// optional files are skipped.
func mergeConfigFiles(v *viper.Viper) ([]string, error) {
	var merged []string
	for _, path := range candidateFiles() {
		if _, err := os.Stat(path); err != nil {
			if path == explicitFile {
				return nil, errors.Wrapf(err, "config file %s", path)
			}
			continue
		}

		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to merge config file %s", path)
		}
		merged = append(merged, path)
	}
	return merged, nil
}

// findProjectConfig searches for skytrace.toml by walking up the directory tree
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
