package commands

import (
	"os"

	"github.com/teranos/lintd/am"
	"github.com/teranos/lintd/daemon"
	"github.com/teranos/lintd/errors"
	"github.com/teranos/lintd/logger"
)

// ConfigPath is set by the global --config flag
var ConfigPath string

// loadConfig loads --config when given, otherwise the usual search path
func loadConfig() (*am.Config, error) {
	if ConfigPath != "" {
		return am.LoadFromFile(ConfigPath)
	}
	return am.Load()
}

// activeConfigPath is the file `am set` writes and the proxy watches
func activeConfigPath() string {
	if ConfigPath != "" {
		return ConfigPath
	}
	return am.UserConfigPath()
}

// reloadConfig drops cached state and loads again
func reloadConfig() (*am.Config, error) {
	if ConfigPath == "" {
		am.Reset()
	}
	return loadConfig()
}

// managerConfig turns loaded settings into a daemon config that launches
// the engine through this binary's supervise command
func managerConfig(cfg *am.Config) (daemon.Config, error) {
	exe, err := os.Executable()
	if err != nil {
		logger.Warnw("Cannot resolve lintd executable, running engine directly", logger.FieldError, err)
		exe = ""
	}
	dcfg, err := daemon.ConfigFromAM(cfg, exe)
	if err != nil {
		return daemon.Config{}, errors.Wrap(err, "build daemon config")
	}
	return dcfg, nil
}

// newManager builds a Manager from the active configuration
func newManager() (*daemon.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dcfg, err := managerConfig(cfg)
	if err != nil {
		return nil, err
	}
	return daemon.NewManager(dcfg, logger.ComponentLogger("daemon")), nil
}
