package am

import (
	"os"
	"sort"
	"strings"
	"sync"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/lintd/config.toml
	SourceUser        ConfigSource = "user"        // ~/.lintd/am.toml or --config
	SourceProject     ConfigSource = "project"     // nearest lintd.toml
	SourceEnvironment ConfigSource = "environment" // LINTD_* env vars
)

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource
	Path   string // File path or environment variable name
}

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key"`
	Value      interface{}  `json:"value"`
	Source     ConfigSource `json:"source"`
	SourcePath string       `json:"source_path,omitempty"`
}

var (
	sourcesMu sync.Mutex
	// configSources maps dotted keys to the last file that set them
	configSources = map[string]SourceInfo{}
)

func recordSources(settings map[string]interface{}, prefix string, info SourceInfo) {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()
	recordSourcesLocked(settings, prefix, info)
}

func recordSourcesLocked(settings map[string]interface{}, prefix string, info SourceInfo) {
	for key, value := range settings {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		// engine.env is a user map; record it as one setting
		if nested, ok := value.(map[string]interface{}); ok && fullKey != "engine.env" {
			recordSourcesLocked(nested, fullKey, info)
			continue
		}
		configSources[fullKey] = info
	}
}

func resetSources() {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()
	configSources = map[string]SourceInfo{}
}

// SourceOf reports where key's effective value came from
func SourceOf(key string) SourceInfo {
	envKey := EnvKey(key)
	if _, ok := os.LookupEnv(envKey); ok {
		return SourceInfo{Source: SourceEnvironment, Path: envKey}
	}

	sourcesMu.Lock()
	defer sourcesMu.Unlock()
	if info, ok := configSources[key]; ok {
		return info
	}
	return SourceInfo{Source: SourceDefault, Path: "built-in default"}
}

// EnvKey returns the LINTD_* variable that overrides key
func EnvKey(key string) string {
	return "LINTD_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Introspect lists every effective setting with its source, sorted by key
func Introspect() []SettingInfo {
	settings := GetViper().AllSettings()
	var out []SettingInfo
	flattenSettings(settings, "", &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func flattenSettings(settings map[string]interface{}, prefix string, out *[]SettingInfo) {
	for key, value := range settings {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok && fullKey != "engine.env" {
			flattenSettings(nested, fullKey, out)
			continue
		}
		info := SourceOf(fullKey)
		*out = append(*out, SettingInfo{
			Key:        fullKey,
			Value:      value,
			Source:     info.Source,
			SourcePath: info.Path,
		})
	}
}
