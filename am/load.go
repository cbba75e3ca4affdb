package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/lintd/errors"
)

// ProjectConfigName is searched for from the working directory upward
const ProjectConfigName = "lintd.toml"

// SystemConfigPath is the lowest-precedence config file
const SystemConfigPath = "/etc/lintd/config.toml"

var (
	mu            sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper
)

// Load reads the lintd configuration from every source, once per process
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	config, err := LoadWithViper(initViper())
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to unmarshal config"), errors.ErrConfiguration)
	}
	return &config, nil
}

// LoadFromFile loads defaults, one explicit file, and LINTD_* env vars.
// Used for --config, where the search path is skipped.
func LoadFromFile(configPath string) (*Config, error) {
	v := newViper()

	if err := mergeFile(v, configPath, SourceUser); err != nil {
		return nil, err
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", configPath)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validate %s", configPath)
	}
	return config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	viperInstance = nil
	resetSources()
}

// UserConfigDir returns ~/.lintd
func UserConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".lintd")
}

// UserConfigPath returns ~/.lintd/am.toml
func UserConfigPath() string {
	dir := UserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "am.toml")
}

// initViper initializes Viper with configuration sources and defaults.
// Callers hold mu.
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := newViper()

	// Merge configs in precedence order: system -> user -> project -> env vars
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

func newViper() *viper.Viper {
	v := viper.New()

	// Set up environment variable binding
	v.SetEnvPrefix("LINTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindEnvVars(v)

	SetDefaults(v)
	return v
}

// findProjectConfig searches for lintd.toml by walking up the directory tree.
// Returns the path to the first config file found, or empty string if none found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return ""
}

// configSearchPaths lists config files in precedence order, lowest first
func configSearchPaths() []SourceInfo {
	paths := []SourceInfo{{Source: SourceSystem, Path: SystemConfigPath}}
	if user := UserConfigPath(); user != "" {
		paths = append(paths, SourceInfo{Source: SourceUser, Path: user})
	}
	if project := findProjectConfig(); project != "" {
		paths = append(paths, SourceInfo{Source: SourceProject, Path: project})
	}
	return paths
}

// mergeConfigFiles merges every existing config file in precedence order.
// Unreadable files are skipped so one bad file does not block the editor.
func mergeConfigFiles(v *viper.Viper) {
	for _, src := range configSearchPaths() {
		if _, err := os.Stat(src.Path); err != nil {
			continue
		}
		_ = mergeFile(v, src.Path, src.Source)
	}
}

// mergeFile merges one TOML file into v and records where its keys came from
func mergeFile(v *viper.Viper, path string, source ConfigSource) error {
	fileViper := viper.New()
	fileViper.SetConfigFile(path)
	fileViper.SetConfigType("toml")

	if err := fileViper.ReadInConfig(); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to read config file %s", path), errors.ErrConfiguration)
	}

	settings := fileViper.AllSettings()
	if err := v.MergeConfigMap(settings); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to merge config file %s", path), errors.ErrConfiguration)
	}
	recordSources(settings, "", SourceInfo{Source: source, Path: path})
	return nil
}
