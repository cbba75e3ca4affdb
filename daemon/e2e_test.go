package daemon

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/lintd/errors"
	"github.com/teranos/lintd/protocol"
	"github.com/teranos/lintd/protocol/protocoltest"
	"github.com/teranos/lintd/supervisor"
)

// TestHelperProcess is not a real test. It is re-executed as a lint server
// child by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 3 {
		os.Exit(2)
	}

	switch args[1] {
	case "serve":
		if _, err := protocoltest.NewServerAt("127.0.0.1:"+args[2], protocoltest.Echo); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for {
			time.Sleep(time.Minute)
		}
	case "exit":
		code, _ := strconv.Atoi(args[2])
		fmt.Fprintln(os.Stderr, "engine failed to load")
		os.Exit(code)
	}
	os.Exit(2)
}

func realManager(t *testing.T, helperArgs ...string) *Manager {
	t.Helper()
	port, err := protocoltest.UnusedPort()
	require.NoError(t, err)

	cfg := Config{
		Endpoint:    protocol.Endpoint{Address: "127.0.0.1", Port: port, Timeout: time.Second},
		AutoStart:   true,
		Warmup:      500 * time.Millisecond,
		ColdTimeout: 5 * time.Second,
		LockDir:     t.TempDir(),
		Supervisor: supervisor.Config{
			Argv: append([]string{os.Args[0], "-test.run=TestHelperProcess", "--"}, helperArgs...),
			Env:  map[string]string{"GO_WANT_HELPER_PROCESS": "1"},
		},
	}
	m := NewManager(cfg, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManagerStartsRealServer(t *testing.T) {
	m := realManager(t, "serve", supervisor.PortPlaceholder)

	result, err := m.Lint(context.Background(), "/tmp/a.jl", []byte("x = 1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, "/tmp/a.jl:1 E100 received 5 bytes\n\n", result.Text)

	st := m.Status()
	require.True(t, st.Owned)
	assert.True(t, st.Alive)
	assert.Equal(t, PhaseWarm, st.Phase)

	// Warm: answered without another start
	result, err = m.Lint(context.Background(), "/tmp/b.jl", []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/b.jl:1 E100 received 1 bytes\n\n", result.Text)
	assert.Equal(t, st.ServerPID, m.Status().ServerPID)

	require.NoError(t, m.Close())
	assert.False(t, m.Status().Alive)
}

func TestManagerReportsCrashingServer(t *testing.T) {
	m := realManager(t, "exit", "4")

	_, err := m.Lint(context.Background(), "a.jl", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrServerExited))
	assert.Contains(t, err.Error(), "status 4")
}
