package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/lintd/errors"
	"github.com/teranos/lintd/logger"
)

// LintCmd lints one buffer and prints the raw diagnostics
var LintCmd = &cobra.Command{
	Use:   "lint [file]",
	Short: "Lint a file or stdin and print diagnostics",
	Long: `Send a buffer to the lint server and print its diagnostics on stdout.

When nothing is listening and auto-start is enabled, lintd starts the
server, waits for it to warm up and retries once with the longer cold
timeout. Degraded outcomes (server unavailable, still warming up, failed
to start) are reported on stderr and exit 0 so editors keep working.
lintd exits 1 on invalid input, or when a server it started has exited
with a non-zero status.

The server started here is supervised against this process, so it stops
when lint returns. Keep a server warm across calls with 'lintd proxy' or
'lintd supervise'.

Examples:
  lintd lint src/Foo.jl
  cat Foo.jl | lintd lint --stdin --path src/Foo.jl
  cat scratch | lintd lint --stdin        # reported as "untitled"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLint,
}

var (
	lintFromStdin bool
	lintPath      string
)

func init() {
	LintCmd.Flags().BoolVar(&lintFromStdin, "stdin", false, "Read the buffer from stdin")
	LintCmd.Flags().StringVar(&lintPath, "path", "", "Path to report for the buffer (defaults to the file argument)")
}

func runLint(cmd *cobra.Command, args []string) error {
	path, content, err := readLintInput(cmd, args)
	if err != nil {
		return err
	}

	m, err := newManager()
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warnw("Failed to stop lint server", logger.FieldError, err)
		}
	}()

	result, err := m.Lint(cmd.Context(), path, content)
	if err != nil {
		return err
	}
	if !result.OK() {
		fmt.Fprintln(cmd.ErrOrStderr(), result.Text)
		return nil
	}
	_, err = io.WriteString(cmd.OutOrStdout(), result.Text)
	return err
}

func readLintInput(cmd *cobra.Command, args []string) (string, []byte, error) {
	switch {
	case lintFromStdin && len(args) > 0:
		return "", nil, usageError("use either a file argument or --stdin, not both")
	case lintFromStdin:
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", nil, errors.Wrap(err, "read stdin")
		}
		return lintPath, content, nil
	case len(args) == 1:
		content, err := os.ReadFile(args[0])
		if err != nil {
			return "", nil, errors.Wrapf(err, "read %s", args[0])
		}
		path := lintPath
		if path == "" {
			path = args[0]
		}
		return path, content, nil
	default:
		return "", nil, usageError("lint needs a file argument or --stdin")
	}
}
