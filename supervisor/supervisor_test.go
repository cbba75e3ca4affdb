package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/lintd/errors"
	"github.com/teranos/lintd/internal/clock"
	"github.com/teranos/lintd/logger"
)

func TestStartIsIdempotentWhileAlive(t *testing.T) {
	sup := New(helperConfig("sleep"), zaptest.NewLogger(t).Sugar(), WithInspector(newFakeInspector(100)))

	first, err := sup.Start(context.Background(), 2222)
	require.NoError(t, err)
	second, err := sup.Start(context.Background(), 2222)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, first.PID(), second.PID())
	assert.True(t, sup.IsRunning())
	assert.Equal(t, StateRunning, sup.State())
	assert.Equal(t, 100, first.OwnerParentPID)
	assert.Equal(t, 2222, first.Port)

	require.NoError(t, sup.Stop())
	waitDone(t, first)
	assert.False(t, sup.IsRunning())
	assert.True(t, first.StoppedByOwner())
	assert.False(t, first.FailedOnItsOwn())
	assert.Equal(t, StateStopped, sup.State())
	assert.Equal(t, ReasonStopped, sup.Reason())

	// Stopping twice is harmless
	require.NoError(t, sup.Stop())
}

func TestStartAfterStopFails(t *testing.T) {
	sup := New(helperConfig("sleep"), zaptest.NewLogger(t).Sugar(), WithInspector(newFakeInspector(100)))
	_, err := sup.Start(context.Background(), 2222)
	require.NoError(t, err)
	require.NoError(t, sup.Stop())

	_, err = sup.Start(context.Background(), 2222)
	assert.ErrorIs(t, err, ErrSupervisorStopped)
}

func TestStopWithoutProcessIsNoop(t *testing.T) {
	sup := New(helperConfig("sleep"), zaptest.NewLogger(t).Sugar())
	require.NoError(t, sup.Stop())
	assert.Equal(t, StateNotStarted, sup.State())
	assert.False(t, sup.IsRunning())
	assert.Nil(t, sup.Process())
}

func TestChildExitIsObservedWithoutBlocking(t *testing.T) {
	sup := New(helperConfig("exit", "3"), zaptest.NewLogger(t).Sugar(), WithInspector(newFakeInspector(100)))
	proc, err := sup.Start(context.Background(), 2222)
	require.NoError(t, err)

	waitDone(t, proc)
	assert.False(t, sup.IsRunning())
	code, exited := proc.ExitStatus()
	assert.True(t, exited)
	assert.Equal(t, 3, code)
	assert.True(t, proc.FailedOnItsOwn())
}

func TestStartAfterChildExitLaunchesAgain(t *testing.T) {
	sup := New(helperConfig("exit", "0"), zaptest.NewLogger(t).Sugar(), WithInspector(newFakeInspector(100)))
	first, err := sup.Start(context.Background(), 2222)
	require.NoError(t, err)
	waitDone(t, first)

	second, err := sup.Start(context.Background(), 2222)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	waitDone(t, second)
}

func TestStartMissingBinary(t *testing.T) {
	cfg := Config{Argv: []string{"/nonexistent/lint-server-binary", "{port}"}}
	sup := New(cfg, zaptest.NewLogger(t).Sugar(), WithInspector(newFakeInspector(100)))

	_, err := sup.Start(context.Background(), 2222)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProcess))
	assert.NotEmpty(t, errors.GetAllHints(err))
	assert.False(t, sup.IsRunning())
}

func TestStartWithoutCommand(t *testing.T) {
	sup := New(Config{}, zaptest.NewLogger(t).Sugar(), WithInspector(newFakeInspector(100)))
	_, err := sup.Start(context.Background(), 2222)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestWatchDetectsOrphanWithinOnePoll(t *testing.T) {
	fake := clock.NewFake(time.Now())
	inspector := newFakeInspector(100)
	sup := New(helperConfig("sleep"), zaptest.NewLogger(t).Sugar(),
		WithClock(fake), WithInspector(inspector))

	proc, err := sup.Start(context.Background(), 2222)
	require.NoError(t, err)

	result := make(chan StopReason, 1)
	go func() {
		reason, err := sup.Watch(context.Background())
		assert.NoError(t, err)
		result <- reason
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// One poll with the original parent keeps the child alive
	require.NoError(t, fake.BlockUntil(ctx, 1))
	fake.Advance(DefaultPollInterval)
	require.NoError(t, fake.BlockUntil(ctx, 1))
	assert.True(t, proc.Alive())

	// Re-parenting is noticed on the very next poll
	inspector.parent.Store(1)
	fake.Advance(DefaultPollInterval)

	select {
	case reason := <-result:
		assert.Equal(t, ReasonOrphaned, reason)
	case <-ctx.Done():
		t.Fatal("watch did not notice orphaning")
	}
	assert.False(t, proc.Alive())
	assert.True(t, proc.StoppedByOwner())
	assert.Equal(t, StateStopped, sup.State())
	assert.Equal(t, ReasonOrphaned, sup.Reason())
}

func TestWatchReturnsWhenChildExits(t *testing.T) {
	fake := clock.NewFake(time.Now())
	sup := New(helperConfig("exit", "0"), zaptest.NewLogger(t).Sugar(),
		WithClock(fake), WithInspector(newFakeInspector(100)))
	_, err := sup.Start(context.Background(), 2222)
	require.NoError(t, err)

	reason, err := sup.Watch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonChildExited, reason)
	assert.Equal(t, StateStopped, sup.State())
}

func TestWatchKillsChildOnCancel(t *testing.T) {
	fake := clock.NewFake(time.Now())
	sup := New(helperConfig("sleep"), zaptest.NewLogger(t).Sugar(),
		WithClock(fake), WithInspector(newFakeInspector(100)))
	proc, err := sup.Start(context.Background(), 2222)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reason, err := sup.Watch(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReasonSignalled, reason)
	assert.False(t, proc.Alive())
}

func TestWatchWithoutProcess(t *testing.T) {
	sup := New(helperConfig("sleep"), zaptest.NewLogger(t).Sugar())
	reason, err := sup.Watch(context.Background())
	assert.Error(t, err)
	assert.Equal(t, ReasonNone, reason)
}

func TestChildOutputIsForwardedToLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sup := New(helperConfig("announce", "{port}"), zap.New(core).Sugar(), WithInspector(newFakeInspector(100)))

	proc, err := sup.Start(context.Background(), 4321)
	require.NoError(t, err)
	waitDone(t, proc)

	var messages []string
	for _, entry := range logs.FilterMessage("Lint server output").All() {
		fields := entry.ContextMap()
		messages = append(messages, fields["message"].(string))
		assert.EqualValues(t, proc.PID(), fields[logger.FieldPID])
	}
	assert.Contains(t, messages, "listening on 4321")
	assert.Contains(t, messages, "warming up")
}

func TestKillDoesNotWaitForGrandchildHoldingOutput(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sup := New(helperConfig("hold-output", "15"), zap.New(core).Sugar(), WithInspector(newFakeInspector(100)))

	proc, err := sup.Start(context.Background(), 2222)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return logs.FilterMessage("Lint server output").FilterField(zap.String("message", "grandchild started")).Len() > 0
	}, 10*time.Second, 10*time.Millisecond)

	killed := make(chan error, 1)
	go func() { killed <- proc.Kill() }()

	select {
	case err := <-killed:
		require.NoError(t, err)
	case <-time.After(OutputWaitDelay + 5*time.Second):
		t.Fatal("Kill blocked on output still held by a grandchild")
	}
	assert.False(t, proc.Alive())
	assert.True(t, proc.StoppedByOwner())
}

func stateChanges(logs *observer.ObservedLogs) []string {
	var changes []string
	for _, entry := range logs.FilterMessage("Supervisor state changed").All() {
		fields := entry.ContextMap()
		changes = append(changes, fields["from"].(string)+" -> "+fields["to"].(string))
	}
	return changes
}

func TestWatchPassesThroughEndingState(t *testing.T) {
	tests := []struct {
		name   string
		mode   []string
		setup  func(*fakeInspector, context.CancelFunc)
		reason StopReason
		via    string
	}{
		{
			name:   "orphaned",
			mode:   []string{"sleep"},
			setup:  func(i *fakeInspector, _ context.CancelFunc) { i.parent.Store(1) },
			reason: ReasonOrphaned,
			via:    "orphaned",
		},
		{
			name:   "child exited",
			mode:   []string{"exit", "0"},
			setup:  func(*fakeInspector, context.CancelFunc) {},
			reason: ReasonChildExited,
			via:    "child-exited",
		},
		{
			name:   "signalled",
			mode:   []string{"sleep"},
			setup:  func(_ *fakeInspector, cancel context.CancelFunc) { cancel() },
			reason: ReasonSignalled,
			via:    "signalled-stop",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			inspector := newFakeInspector(100)
			cfg := helperConfig(tt.mode...)
			cfg.PollInterval = 10 * time.Millisecond
			sup := New(cfg, zap.New(core).Sugar(), WithInspector(inspector))

			_, err := sup.Start(context.Background(), 2222)
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			tt.setup(inspector, cancel)

			reason, err := sup.Watch(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.reason, reason)
			assert.Equal(t, StateStopped, sup.State())
			assert.Equal(t, []string{
				"not-started -> running",
				"running -> " + tt.via,
				tt.via + " -> stopped",
			}, stateChanges(logs))
		})
	}
}
