package supervisor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/teranos/lintd/errors"
)

// Inspector reports the parent the orphan watch compares against.
type Inspector interface {
	// ParentPID returns the current parent pid of this process
	ParentPID(ctx context.Context) (int, error)
}

// HostInspector implements Inspector with gopsutil, and answers the
// status and stop commands' questions about the host's process table.
type HostInspector struct{}

var _ Inspector = HostInspector{}

func (HostInspector) ParentPID(ctx context.Context) (int, error) {
	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0, errors.Wrap(err, "inspect own process")
	}
	ppid, err := self.PpidWithContext(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "read parent pid")
	}
	return int(ppid), nil
}

// PidExists reports whether pid names a live process
func (HostInspector) PidExists(ctx context.Context, pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	exists, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		return false, errors.Wrapf(err, "check pid %d", pid)
	}
	return exists, nil
}

// ListenerPID returns the pid listening on a TCP port, or 0 if none
func (HostInspector) ListenerPID(ctx context.Context, port int) (int, error) {
	conns, err := net.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return 0, errors.Wrap(err, "list tcp connections")
	}
	for _, c := range conns {
		if c.Status == "LISTEN" && c.Laddr.Port == uint32(port) && c.Pid > 0 {
			return int(c.Pid), nil
		}
	}
	return 0, nil
}

// TerminatePID asks pid to exit with SIGTERM, escalating to SIGKILL when
// the process does not support signals.
func TerminatePID(ctx context.Context, pid int) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return errors.MarkProcess(err, "find process")
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		if killErr := p.KillWithContext(ctx); killErr != nil {
			return errors.MarkProcess(errors.WithSecondaryError(err, killErr), "terminate process")
		}
	}
	return nil
}

// WaitForExit polls until pid is gone or ctx is done.
func (h HostInspector) WaitForExit(ctx context.Context, pid int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		exists, err := h.PidExists(ctx, pid)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.MarkProcess(ctx.Err(), fmt.Sprintf("wait for pid %d to exit", pid))
		case <-ticker.C:
		}
	}
}
