package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/teranos/lintd/errors"
)

const lockRetryDelay = 50 * time.Millisecond

// startLockPath is the per-port lock file shared by every lintd on the host.
func startLockPath(dir string, port int) string {
	return filepath.Join(dir, fmt.Sprintf("lintd-%d.lock", port))
}

// acquireStartLock takes the host-wide start lock for port, waiting at most wait.
func acquireStartLock(ctx context.Context, dir string, port int, wait time.Duration) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.MarkProcess(err, "create lock directory")
	}

	lock := flock.New(startLockPath(dir, port))
	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return nil, errors.WithHintf(
			errors.MarkProcess(err, "acquire start lock "+lock.Path()),
			"another lintd may be starting the server on port %d", port)
	}
	if !locked {
		return nil, errors.MarkProcess(errors.New("lock not acquired"), "acquire start lock "+lock.Path())
	}
	return lock, nil
}
