package daemon

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/teranos/lintd/am"
	"github.com/teranos/lintd/protocol"
	"github.com/teranos/lintd/supervisor"
)

// Config holds everything a Manager needs. It is a plain value so tests can
// build one without touching the filesystem.
type Config struct {
	Endpoint           protocol.Endpoint
	AutoStart          bool
	Warmup             time.Duration
	ColdTimeout        time.Duration
	LockDir            string
	MaxStartsPerMinute int
	UnsavedName        string
	Supervisor         supervisor.Config
}

// DefaultConfig mirrors the built-in am defaults with the direct launcher.
func DefaultConfig() Config {
	cfg, _ := ConfigFromAM(am.Defaults(), "")
	return cfg
}

// ConfigFromAM translates loaded settings. executable is this binary's path,
// used by the self launcher to run `lintd supervise`.
func ConfigFromAM(c *am.Config, executable string) (Config, error) {
	engine, err := supervisor.EngineArgv(c.Engine.Command, c.Engine.Interpreter)
	if err != nil && c.Daemon.AutoStart {
		return Config{}, err
	}

	argv := engine
	if c.Supervisor.Launcher == am.LauncherSelf && executable != "" && engine != nil {
		argv = append(supervisor.SelfArgv(executable, supervisor.QuoteCommand(engine)),
			"--poll-interval-ms", strconv.Itoa(c.Supervisor.PollIntervalMS))
	}

	return Config{
		Endpoint:           c.Endpoint(),
		AutoStart:          c.Daemon.AutoStart,
		Warmup:             c.Warmup(),
		ColdTimeout:        c.ColdTimeout(),
		LockDir:            c.GetLockDir(),
		MaxStartsPerMinute: c.Daemon.MaxStartsPerMinute,
		UnsavedName:        c.GetUnsavedName(),
		Supervisor: supervisor.Config{
			Argv:         argv,
			Env:          c.EngineEnv(),
			PathDir:      c.Engine.Path,
			PollInterval: c.PollInterval(),
		},
	}, nil
}

func (c Config) lockDir() string {
	if c.LockDir == "" {
		return filepath.Join(os.TempDir(), "lintd")
	}
	return c.LockDir
}

func (c Config) unsavedName() string {
	if c.UnsavedName == "" {
		return protocol.UnsavedName
	}
	return c.UnsavedName
}

// sameServer reports whether two configs describe the same server and launch,
// so a reconfigure can keep the running process.
func (c Config) sameServer(other Config) bool {
	return c.Endpoint == other.Endpoint && reflect.DeepEqual(c.Supervisor, other.Supervisor)
}
