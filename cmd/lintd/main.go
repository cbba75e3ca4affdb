package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/lintd/cmd/lintd/commands"
	"github.com/teranos/lintd/errors"
	"github.com/teranos/lintd/logger"
)

var rootCmd = &cobra.Command{
	Use:   "lintd",
	Short: "lintd - keeps a lint server warm for your editor",
	Long: `lintd - Lint server client and lifecycle manager.

lintd sends buffers to a long-running lint server over a small TCP
protocol, starts the server on demand when nothing is listening, and
supervises it so it never outlives the editor that started it.

Available commands:
  lint       - Lint a file or stdin and print diagnostics
  proxy      - Serve framed lint requests on stdin/stdout for an editor
  supervise  - Run the lint server and stop it when the parent exits
  status     - Show whether a lint server is listening
  stop       - Stop the lint server listening on the configured port
  am         - Manage lintd configuration ("I am")
  version    - Show version information

Examples:
  lintd lint src/Foo.jl          # Lint a file
  cat Foo.jl | lintd lint --stdin --path Foo.jl
  lintd supervise --port 2222    # Run the server under supervision
  lintd am show --sources        # Show configuration and where it came from`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(logger.Options{JSON: jsonLogs, Verbosity: verbosity}); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		logger.Debugw("Logger initialized", "level", logger.LevelName(verbosity), "json", jsonLogs)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.SetFlagErrorFunc(commands.FlagErrorFunc)
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON on stderr")
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Load configuration from this file instead of the search path")

	rootCmd.AddCommand(commands.LintCmd)
	rootCmd.AddCommand(commands.ProxyCmd)
	rootCmd.AddCommand(commands.SuperviseCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.StopCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	code := commands.ExitCode(err)
	if code == 0 {
		return
	}
	var exit *commands.ExitError
	if !errors.As(err, &exit) || exit.Err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hints := errors.FlattenHints(err); hints != "" {
			fmt.Fprintln(os.Stderr, "Hint:", hints)
		}
	}
	os.Exit(code)
}
