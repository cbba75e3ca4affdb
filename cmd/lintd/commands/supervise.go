package commands

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/lintd/errors"
	"github.com/teranos/lintd/logger"
	"github.com/teranos/lintd/supervisor"
)

// SuperviseCmd runs the lint server and stops it when the parent goes away
var SuperviseCmd = &cobra.Command{
	Use:   "supervise [port]",
	Short: "Run the lint server and stop it when the parent exits",
	Long: `Run the lint server as a child process and watch the process that
started lintd. When that parent exits, the server is killed, so a server
started for an editor never outlives it.

The engine command comes from --command or engine.command in the
configuration. Every {port} in it is replaced with the port.

Exit status:
  0  parent exited, lintd was signalled, or the server exited cleanly
  N  the server exited on its own with status N
  2  usage error

Examples:
  lintd supervise 2222
  lintd supervise --port 2222 --command 'julia -e "using Lint; lintserver({port})"'`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 1 {
			return usageError("supervise takes at most one port argument, got %d", len(args))
		}
		return nil
	},
	RunE: runSupervise,
}

var (
	supervisePort           int
	superviseCommand        string
	supervisePollIntervalMS int
)

func init() {
	SuperviseCmd.Flags().IntVar(&supervisePort, "port", 0, "Port the lint server listens on")
	SuperviseCmd.Flags().StringVar(&superviseCommand, "command", "", "Engine command line (default: engine.command)")
	SuperviseCmd.Flags().IntVar(&supervisePollIntervalMS, "poll-interval-ms", 0, "Parent check interval in milliseconds (default: supervisor.poll_interval_ms)")
}

func runSupervise(cmd *cobra.Command, args []string) error {
	port, err := supervisePortArg(args)
	if err != nil {
		return err
	}

	cfg, err := superviseConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.ComponentLogger("supervise")
	sup := supervisor.New(cfg, log)
	proc, err := sup.Start(ctx, port)
	if err != nil {
		return err
	}

	reason, err := sup.Watch(ctx)
	if err != nil {
		log.Warnw("Failed to stop lint server", logger.FieldError, err)
	}
	if reason != supervisor.ReasonChildExited {
		return nil
	}
	code, _ := proc.ExitStatus()
	switch {
	case code == 0:
		return nil
	case code < 0:
		return &ExitError{Code: ExitFailure}
	default:
		return &ExitError{Code: code}
	}
}

func supervisePortArg(args []string) (int, error) {
	port := supervisePort
	if len(args) == 1 {
		if port != 0 {
			return 0, usageError("port given twice")
		}
		p, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, usageError("invalid port %q", args[0])
		}
		port = p
	}
	if port < 1 || port > 65535 {
		return 0, usageError("supervise needs a port between 1 and 65535")
	}
	return port, nil
}

// superviseConfig builds the child's launch settings. An explicit --command
// comes from a parent lintd that already applied engine.env and engine.path
// to our own environment, so the configuration is consulted only without it.
func superviseConfig() (supervisor.Config, error) {
	cfg := supervisor.Config{
		PollInterval: time.Duration(supervisePollIntervalMS) * time.Millisecond,
	}

	if superviseCommand != "" {
		argv, err := supervisor.ParseCommand(superviseCommand)
		if err != nil {
			return cfg, &ExitError{Code: ExitUsage, Err: err}
		}
		cfg.Argv = argv
		return cfg, nil
	}

	loaded, err := loadConfig()
	if err != nil {
		return cfg, err
	}
	argv, err := supervisor.EngineArgv(loaded.Engine.Command, loaded.Engine.Interpreter)
	if err != nil {
		return cfg, errors.WithHint(err, "set engine.command or pass --command")
	}
	cfg.Argv = argv
	cfg.Env = loaded.EngineEnv()
	cfg.PathDir = loaded.Engine.Path
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = loaded.PollInterval()
	}
	return cfg, nil
}
