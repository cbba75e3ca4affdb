package supervisor

import (
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/teranos/lintd/errors"
)

// Process is an owned lint server child.
type Process struct {
	cmd *exec.Cmd

	// Port is the port the server was told to listen on
	Port int
	// LaunchedAt is when the child was spawned
	LaunchedAt time.Time
	// OwnerParentPID is the supervisor's parent pid at launch
	OwnerParentPID int

	done     chan struct{}
	exitCode int
	stopped  atomic.Bool
}

func newProcess(cmd *exec.Cmd, port int, launchedAt time.Time, ownerParentPID int) *Process {
	return &Process{
		cmd:            cmd,
		Port:           port,
		LaunchedAt:     launchedAt,
		OwnerParentPID: ownerParentPID,
		done:           make(chan struct{}),
	}
}

// wait reaps the child and records its exit status. Runs on its own goroutine.
func (p *Process) wait(afterExit func()) {
	_ = p.cmd.Wait()
	p.exitCode = p.cmd.ProcessState.ExitCode()
	if afterExit != nil {
		afterExit()
	}
	close(p.done)
}

// PID returns the child's process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed once the child has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Alive reports whether the child is still running. It never blocks.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// ExitStatus returns the child's exit code once it has exited.
// A child killed by a signal reports -1.
func (p *Process) ExitStatus() (code int, exited bool) {
	select {
	case <-p.done:
		return p.exitCode, true
	default:
		return 0, false
	}
}

// StoppedByOwner reports whether the exit was requested through Kill or Terminate.
func (p *Process) StoppedByOwner() bool {
	return p.stopped.Load()
}

// FailedOnItsOwn reports whether the child exited non-zero without being
// asked to stop.
func (p *Process) FailedOnItsOwn() bool {
	code, exited := p.ExitStatus()
	return exited && code != 0 && !p.StoppedByOwner()
}

// Kill sends SIGKILL and waits for the child to be reaped.
func (p *Process) Kill() error {
	if !p.Alive() {
		return nil
	}
	p.stopped.Store(true)
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) && p.Alive() {
		return errors.MarkProcess(err, "kill lint server")
	}
	<-p.done
	return nil
}

// Terminate sends SIGTERM and escalates to Kill after grace.
func (p *Process) Terminate(grace time.Duration) error {
	if !p.Alive() {
		return nil
	}
	p.stopped.Store(true)
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return p.Kill()
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
		return p.Kill()
	}
}
