package am

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/lintd/errors"
	"github.com/teranos/lintd/logger"
)

// Render encodes cfg as TOML
func Render(cfg *Config) ([]byte, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	return data, nil
}

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// Not fatal: the rotation below overwrites it
		logger.Warnw("Failed to delete old config backup", logger.FieldFile, back3, logger.FieldError, err)
	}

	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(back1, content, 0o644); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}

// loadOrInitialize reads configPath as a raw TOML table, or returns an empty one
func loadOrInitialize(configPath string) (map[string]interface{}, error) {
	if err := os.MkdirAll(filepath.Dir(configPath), DefaultDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", filepath.Dir(configPath))
	}

	config := make(map[string]interface{})
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", configPath)
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to parse %s", configPath), errors.ErrConfiguration)
	}
	return config, nil
}

// save writes config to configPath after rotating backups
func save(config map[string]interface{}, configPath string) error {
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Mark this as our own write to prevent reload loops
	if w := GetGlobalWatcher(); w != nil {
		w.MarkOwnWrite()
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", configPath)
	}
	return nil
}

// SetValue sets a dotted key in the TOML file at configPath, keeping every
// other setting. The value is parsed as a bool or integer when it looks like one.
func SetValue(configPath, key, raw string) error {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return errors.NewConfigurationError("setting %q must be section.key", key)
	}
	if !knownKey(key) {
		return errors.WithHint(
			errors.NewConfigurationError("unknown setting %q", key),
			"run `lintd am show` to list settings")
	}

	config, err := loadOrInitialize(configPath)
	if err != nil {
		return err
	}

	table := config
	for _, part := range parts[:len(parts)-1] {
		next, ok := table[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			table[part] = next
		}
		table = next
	}
	table[parts[len(parts)-1]] = parseValue(raw)

	return save(config, configPath)
}

func parseValue(raw string) interface{} {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}

// knownKey reports whether key is a setting with a default, or an engine.env entry
func knownKey(key string) bool {
	if strings.HasPrefix(key, "engine.env.") {
		return true
	}
	for _, setting := range defaultKeys() {
		if setting == key {
			return true
		}
	}
	return false
}
