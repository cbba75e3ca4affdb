// Package supervisor launches and owns the lint server process.
//
// A Supervisor holds at most one live child. Start is idempotent while the
// child is alive, IsRunning never blocks, and Watch ties the child's life to
// the process that launched the supervisor: when the parent pid changes the
// supervisor has been orphaned and kills the child.
//
// State machine:
//
//	NotStarted -> Running -> Orphaned | ChildExited | SignalledStop -> Stopped
//
// Stopped is terminal.
package supervisor
