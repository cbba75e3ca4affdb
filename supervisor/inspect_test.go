package supervisor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/lintd/errors"
)

func TestHostInspectorParentPID(t *testing.T) {
	ppid, err := HostInspector{}.ParentPID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, os.Getppid(), ppid)
}

func TestPidExists(t *testing.T) {
	exists, err := HostInspector{}.PidExists(context.Background(), os.Getpid())
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = HostInspector{}.PidExists(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWaitForExitAfterKill(t *testing.T) {
	sup := New(helperConfig("sleep"), zaptest.NewLogger(t).Sugar(), WithInspector(newFakeInspector(100)))
	proc, err := sup.Start(context.Background(), 2222)
	require.NoError(t, err)
	pid := proc.PID()

	require.NoError(t, proc.Kill())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, HostInspector{}.WaitForExit(ctx, pid, 10*time.Millisecond))
}

func TestWaitForExitGivesUpOnLiveProcess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := HostInspector{}.WaitForExit(ctx, os.Getpid(), 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProcess))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
