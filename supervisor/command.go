package supervisor

import (
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/lintd/errors"
)

// PortPlaceholder is replaced with the server port in every command argument.
const PortPlaceholder = "{port}"

// DefaultEngineCommand starts the Julia lint server on {port}.
const DefaultEngineCommand = `julia -e "using Lint; lintserver({port})"`

// ParseCommand splits a shell-style command line into argv.
func ParseCommand(line string) ([]string, error) {
	argv, err := shellquote.Split(line)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "parse command %q", line), errors.ErrConfiguration)
	}
	if len(argv) == 0 {
		return nil, errors.NewConfigurationError("empty command line")
	}
	return argv, nil
}

// EngineArgv builds the engine argv from its command line. A non-empty
// interpreter replaces the executable named by the command.
func EngineArgv(line, interpreter string) ([]string, error) {
	argv, err := ParseCommand(line)
	if err != nil {
		return nil, err
	}
	if interpreter != "" {
		argv[0] = interpreter
	}
	return argv, nil
}

// SelfArgv builds the argv that runs this binary as the standalone launcher,
// which in turn runs engineLine and watches for orphaning.
func SelfArgv(executable string, engineLine string) []string {
	return []string{executable, "supervise", "--port", PortPlaceholder, "--command", engineLine}
}

// ExpandPort substitutes port for PortPlaceholder in a copy of argv.
func ExpandPort(argv []string, port int) []string {
	p := strconv.Itoa(port)
	out := make([]string, len(argv))
	for i, arg := range argv {
		out[i] = strings.ReplaceAll(arg, PortPlaceholder, p)
	}
	return out
}

// QuoteCommand renders argv as a shell command line for logs.
func QuoteCommand(argv []string) string {
	return shellquote.Join(argv...)
}
