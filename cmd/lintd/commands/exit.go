package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/lintd/errors"
)

// Exit codes
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError carries a process exit code through cobra's error return.
// A nil Err exits quietly with Code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps a command error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return ExitFailure
}

func usageError(format string, args ...interface{}) error {
	return &ExitError{Code: ExitUsage, Err: errors.Newf(format, args...)}
}

// FlagErrorFunc turns flag parsing failures into usage errors
func FlagErrorFunc(cmd *cobra.Command, err error) error {
	return &ExitError{Code: ExitUsage, Err: errors.Wrap(err, cmd.UseLine())}
}
