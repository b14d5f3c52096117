package am

import (
	"os"
	"sort"
	"strings"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/phylo/am.toml
	SourceUser        ConfigSource = "user"        // ~/.phylo/am.toml
	SourceProject     ConfigSource = "project"     // project am.toml
	SourceEnvironment ConfigSource = "environment" // PHYLO_* env vars
)

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key" yaml:"key"`
	Value      interface{}  `json:"value" yaml:"value"`
	Source     ConfigSource `json:"source" yaml:"source"`
	SourcePath string       `json:"source_path,omitempty" yaml:"source_path,omitempty"` // File path or env var name
}

// EnvVarName returns the environment variable that overrides key.
func EnvVarName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Introspect lists every effective setting with the source it came from,
// sorted by key.
func Introspect() ([]SettingInfo, error) {
	if _, err := Load(); err != nil {
		return nil, err
	}

	v := GetViper()
	keys := v.AllKeys()
	sort.Strings(keys)

	loadMu.Lock()
	defer loadMu.Unlock()

	settings := make([]SettingInfo, 0, len(keys))
	for _, key := range keys {
		info := SettingInfo{Key: key, Value: v.Get(key), Source: SourceDefault}
		if entry, ok := configSources[key]; ok {
			info.Source = entry.source
			info.SourcePath = entry.path
		}
		if env := EnvVarName(key); os.Getenv(env) != "" {
			info.Source = SourceEnvironment
			info.SourcePath = env
		}
		settings = append(settings, info)
	}
	return settings, nil
}
