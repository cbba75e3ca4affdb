// Package daemon is the single entry point editors use to lint a buffer.
//
// A Manager sends the buffer to the configured lint server. When the server
// cannot be reached it either reports that the server is unavailable, starts
// one and retries once after a warm-up delay, or reports that a server it
// already started is still warming up. Only one start happens at a time, both
// within the process and, through a lock file, across the host.
//
// Lint never fails the caller for an unreachable or slow server. The one
// error it returns is errors.ErrServerExited, once a server this Manager
// started has exited with a non-zero status.
package daemon
