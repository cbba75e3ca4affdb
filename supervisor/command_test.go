package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/lintd/errors"
)

func TestParseDefaultEngineCommand(t *testing.T) {
	argv, err := ParseCommand(DefaultEngineCommand)
	require.NoError(t, err)
	assert.Equal(t, []string{"julia", "-e", "using Lint; lintserver({port})"}, argv)
	assert.Equal(t, []string{"julia", "-e", "using Lint; lintserver(2222)"}, ExpandPort(argv, 2222))
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{"", "   ", `julia -e "unterminated`} {
		_, err := ParseCommand(line)
		require.Error(t, err, line)
		assert.True(t, errors.Is(err, errors.ErrConfiguration), line)
	}
}

func TestEngineArgvInterpreterOverride(t *testing.T) {
	argv, err := EngineArgv(DefaultEngineCommand, "/opt/julia-1.0/bin/julia")
	require.NoError(t, err)
	assert.Equal(t, "/opt/julia-1.0/bin/julia", argv[0])
	assert.Equal(t, "-e", argv[1])
}

func TestSelfArgvRoundTripsEngineLine(t *testing.T) {
	argv := ExpandPort(SelfArgv("/usr/local/bin/lintd", DefaultEngineCommand), 3000)
	assert.Equal(t, []string{
		"/usr/local/bin/lintd", "supervise", "--port", "3000",
		"--command", `julia -e "using Lint; lintserver(3000)"`,
	}, argv)

	// The quoted form survives a round trip through the shell splitter
	back, err := ParseCommand(QuoteCommand(argv))
	require.NoError(t, err)
	assert.Equal(t, argv, back)
}

func TestExpandPortLeavesInputUntouched(t *testing.T) {
	argv := []string{"server", "--port={port}"}
	out := ExpandPort(argv, 9)
	assert.Equal(t, "--port=9", out[1])
	assert.Equal(t, "--port={port}", argv[1])
}
