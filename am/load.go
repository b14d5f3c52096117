package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/phylo/errors"
)

var (
	loadMu        sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper

	// configSources records which file last set each flattened key.
	configSources = map[string]sourceEntry{}
	loadedFiles   []string
)

type sourceEntry struct {
	source ConfigSource
	path   string
}

// Load reads the phylo configuration using Viper. The result is cached until Reset.
func Load() (*Config, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	cfg, err := LoadWithViper(initViper())
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	loadMu.Lock()
	defer loadMu.Unlock()
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path, on top of defaults only.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}
	return LoadWithViper(v)
}

// Reset clears the cached configuration (useful for testing and reloads)
func Reset() {
	loadMu.Lock()
	defer loadMu.Unlock()
	globalConfig = nil
	viperInstance = nil
	configSources = map[string]sourceEntry{}
	loadedFiles = nil
}

// ActiveConfigFiles lists the config files merged by the last load, lowest precedence first.
func ActiveConfigFiles() []string {
	loadMu.Lock()
	defer loadMu.Unlock()
	return append([]string(nil), loadedFiles...)
}

// initViper initializes Viper with configuration sources and defaults.
// Callers hold loadMu.
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindSensitiveEnvVars(v)

	SetDefaults(v)

	// system -> user -> project; env vars still win through AutomaticEnv
	mergeConfigFiles(v, configCandidates())

	viperInstance = v
	return v
}

// configCandidates returns the config file search list, lowest precedence first.
func configCandidates() []candidate {
	out := []candidate{{SourceSystem, SystemConfigPath}}
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out, candidate{SourceUser, filepath.Join(home, UserConfigDirName, ProjectConfigName)})
	}
	if wd, err := os.Getwd(); err == nil {
		if p := findProjectConfig(wd); p != "" {
			out = append(out, candidate{SourceProject, p})
		}
	}
	return out
}

type candidate struct {
	source ConfigSource
	path   string
}

// FindProjectConfig returns the nearest am.toml at or above the working directory.
func FindProjectConfig() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findProjectConfig(wd)
}

// findProjectConfig walks up from dir looking for am.toml.
func findProjectConfig(dir string) string {
	for {
		p := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles merges every existing candidate into v in order, so later
// files override earlier ones key by key.
func mergeConfigFiles(v *viper.Viper, candidates []candidate) {
	for _, c := range candidates {
		if _, err := os.Stat(c.path); err != nil {
			continue
		}
		fileViper := viper.New()
		fileViper.SetConfigFile(c.path)
		fileViper.SetConfigType("toml")
		if err := fileViper.ReadInConfig(); err != nil {
			continue
		}
		// MergeConfigMap keeps env vars above file values
		if err := v.MergeConfigMap(fileViper.AllSettings()); err != nil {
			continue
		}
		for _, key := range fileViper.AllKeys() {
			configSources[key] = sourceEntry{source: c.source, path: c.path}
		}
		loadedFiles = append(loadedFiles, c.path)
	}
}

// GetString returns a configuration value as string using dot notation
func GetString(key string) string {
	return GetViper().GetString(key)
}

// Get returns a configuration value using dot notation
func Get(key string) interface{} {
	return GetViper().Get(key)
}
