package am

import "github.com/teranos/lintd/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.NewConfigurationError("server.address cannot be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.NewConfigurationError("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Server.TimeoutMS <= 0 {
		return errors.NewConfigurationError("server.timeout_ms must be > 0, got %d", c.Server.TimeoutMS)
	}

	// Warm-up may be zero for servers that are ready as soon as they listen
	if c.Daemon.WarmupMS < 0 {
		return errors.NewConfigurationError("daemon.warmup_ms must be >= 0, got %d", c.Daemon.WarmupMS)
	}
	if c.Daemon.ColdTimeoutMS <= 0 {
		return errors.NewConfigurationError("daemon.cold_timeout_ms must be > 0, got %d", c.Daemon.ColdTimeoutMS)
	}
	// 0 = no restart limit
	if c.Daemon.MaxStartsPerMinute < 0 {
		return errors.NewConfigurationError("daemon.max_starts_per_minute must be >= 0, got %d", c.Daemon.MaxStartsPerMinute)
	}

	if c.Daemon.AutoStart && c.Engine.Command == "" {
		return errors.WithHint(
			errors.NewConfigurationError("engine.command cannot be empty when daemon.auto_start is set"),
			"set engine.command or disable daemon.auto_start")
	}

	if c.Supervisor.PollIntervalMS <= 0 || c.Supervisor.PollIntervalMS >= 1000 {
		return errors.NewConfigurationError("supervisor.poll_interval_ms must be in 1..999, got %d", c.Supervisor.PollIntervalMS)
	}
	switch c.Supervisor.Launcher {
	case LauncherSelf, LauncherDirect:
	default:
		return errors.NewConfigurationError("supervisor.launcher must be %q or %q, got %q",
			LauncherSelf, LauncherDirect, c.Supervisor.Launcher)
	}

	return nil
}
