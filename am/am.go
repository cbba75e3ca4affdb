// Package am loads lintd configuration.
//
// Settings are merged from built-in defaults, /etc/lintd/config.toml,
// ~/.lintd/am.toml, the nearest lintd.toml found walking up from the working
// directory, and finally LINTD_* environment variables.
package am

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teranos/lintd/protocol"
	"github.com/teranos/lintd/supervisor"
)

// Config represents the lintd configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server" toml:"server"`
	Daemon     DaemonConfig     `mapstructure:"daemon" toml:"daemon"`
	Engine     EngineConfig     `mapstructure:"engine" toml:"engine"`
	Supervisor SupervisorConfig `mapstructure:"supervisor" toml:"supervisor"`
	Lint       LintConfig       `mapstructure:"lint" toml:"lint"`
}

// ServerConfig says where the lint server listens
type ServerConfig struct {
	Address string `mapstructure:"address" toml:"address"`
	Port    int    `mapstructure:"port" toml:"port"`
	// TimeoutMS bounds one exchange, connect included
	TimeoutMS int `mapstructure:"timeout_ms" toml:"timeout_ms"`
}

// DaemonConfig controls lazy start of the lint server
type DaemonConfig struct {
	AutoStart bool `mapstructure:"auto_start" toml:"auto_start"`
	// WarmupMS is the wait after spawning before the retry
	WarmupMS int `mapstructure:"warmup_ms" toml:"warmup_ms"`
	// ColdTimeoutMS is the timeout of the retry
	ColdTimeoutMS      int    `mapstructure:"cold_timeout_ms" toml:"cold_timeout_ms"`
	LockDir            string `mapstructure:"lock_dir" toml:"lock_dir"`
	MaxStartsPerMinute int    `mapstructure:"max_starts_per_minute" toml:"max_starts_per_minute"`
}

// EngineConfig describes the analysis engine command
type EngineConfig struct {
	// Command is split shell-style; {port} is substituted
	Command     string            `mapstructure:"command" toml:"command"`
	Interpreter string            `mapstructure:"interpreter" toml:"interpreter,omitempty"`
	Path        string            `mapstructure:"path" toml:"path,omitempty"`
	Env         map[string]string `mapstructure:"env" toml:"env,omitempty"`
}

// SupervisorConfig controls the process that owns the engine
type SupervisorConfig struct {
	PollIntervalMS int `mapstructure:"poll_interval_ms" toml:"poll_interval_ms"`
	// Launcher is LauncherSelf or LauncherDirect
	Launcher string `mapstructure:"launcher" toml:"launcher"`
}

// LintConfig holds request-level settings
type LintConfig struct {
	UnsavedName string `mapstructure:"unsaved_name" toml:"unsaved_name"`
}

// Launcher modes
const (
	// LauncherSelf runs `lintd supervise` which in turn runs the engine
	LauncherSelf = "self"
	// LauncherDirect runs the engine as the daemon's own child
	LauncherDirect = "direct"
)

// Default values
const (
	DefaultAddress            = protocol.DefaultAddress
	DefaultPort               = protocol.DefaultPort
	DefaultTimeoutMS          = 2000
	DefaultWarmupMS           = 5000
	DefaultColdTimeoutMS      = 30000
	DefaultMaxStartsPerMinute = 6
	DefaultPollIntervalMS     = 100
	DefaultEngineCommand      = supervisor.DefaultEngineCommand
)

// DefaultDirPermissions is used for ~/.lintd and the lock directory
const DefaultDirPermissions = 0o750

// Endpoint returns the configured server endpoint
func (c *Config) Endpoint() protocol.Endpoint {
	return protocol.Endpoint{
		Address: c.Server.Address,
		Port:    c.Server.Port,
		Timeout: c.Timeout(),
	}
}

// Timeout is the per-exchange deadline
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutMS) * time.Millisecond
}

// Warmup is the delay between spawning the server and the retry
func (c *Config) Warmup() time.Duration {
	return time.Duration(c.Daemon.WarmupMS) * time.Millisecond
}

// ColdTimeout is the deadline of the retry after a start
func (c *Config) ColdTimeout() time.Duration {
	return time.Duration(c.Daemon.ColdTimeoutMS) * time.Millisecond
}

// PollInterval is the orphan check period
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Supervisor.PollIntervalMS) * time.Millisecond
}

// GetLockDir returns where start locks live (default: the OS temp dir)
func (c *Config) GetLockDir() string {
	if c.Daemon.LockDir == "" {
		return filepath.Join(os.TempDir(), "lintd")
	}
	return c.Daemon.LockDir
}

// GetUnsavedName returns the path sent for unsaved buffers
func (c *Config) GetUnsavedName() string {
	if c.Lint.UnsavedName == "" {
		return protocol.UnsavedName
	}
	return c.Lint.UnsavedName
}

// EngineEnv returns engine.env with upper-cased names, since config keys
// are case-folded on load
func (c *Config) EngineEnv() map[string]string {
	env := make(map[string]string, len(c.Engine.Env))
	for k, v := range c.Engine.Env {
		env[strings.ToUpper(k)] = v
	}
	return env
}
