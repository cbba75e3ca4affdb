package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server endpoint defaults
	v.SetDefault("server.address", DefaultAddress)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.timeout_ms", DefaultTimeoutMS)

	// Daemon defaults
	v.SetDefault("daemon.auto_start", true)
	v.SetDefault("daemon.warmup_ms", DefaultWarmupMS)            // engine startup is slow
	v.SetDefault("daemon.cold_timeout_ms", DefaultColdTimeoutMS) // first request compiles the linter
	v.SetDefault("daemon.lock_dir", "")
	v.SetDefault("daemon.max_starts_per_minute", DefaultMaxStartsPerMinute)

	// Engine defaults
	v.SetDefault("engine.command", DefaultEngineCommand)
	v.SetDefault("engine.interpreter", "")
	v.SetDefault("engine.path", "")

	// Supervisor defaults
	v.SetDefault("supervisor.poll_interval_ms", DefaultPollIntervalMS)
	v.SetDefault("supervisor.launcher", LauncherSelf)

	// Lint defaults
	v.SetDefault("lint.unsaved_name", "untitled")
}

// BindEnvVars explicitly binds settings whose env names are not derivable
// from their keys, plus the ones editors commonly set
func BindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("server.port", "LINTD_PORT", "LINTD_SERVER_PORT")
	_ = v.BindEnv("engine.interpreter", "LINTD_JULIA", "LINTD_ENGINE_INTERPRETER")
	_ = v.BindEnv("daemon.auto_start", "LINTD_AUTO_START", "LINTD_DAEMON_AUTO_START")
}

// Defaults returns a Config holding only built-in defaults
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, _ := LoadWithViper(v)
	return cfg
}

// defaultKeys lists every key that has a default
func defaultKeys() []string {
	v := viper.New()
	SetDefaults(v)
	return v.AllKeys()
}
