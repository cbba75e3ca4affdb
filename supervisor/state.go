package supervisor

// State is the lifecycle position of a Supervisor.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateOrphaned
	StateChildExited
	StateSignalledStop
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateOrphaned:
		return "orphaned"
	case StateChildExited:
		return "child-exited"
	case StateSignalledStop:
		return "signalled-stop"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopReason records why a watch ended.
type StopReason int

const (
	ReasonNone StopReason = iota
	// ReasonOrphaned means the parent pid changed since Start
	ReasonOrphaned
	// ReasonChildExited means the server process exited on its own
	ReasonChildExited
	// ReasonSignalled means the watch context was cancelled, usually by SIGTERM
	ReasonSignalled
	// ReasonStopped means Stop was called
	ReasonStopped
)

func (r StopReason) String() string {
	switch r {
	case ReasonOrphaned:
		return "orphaned"
	case ReasonChildExited:
		return "child-exited"
	case ReasonSignalled:
		return "signalled"
	case ReasonStopped:
		return "stopped"
	default:
		return "none"
	}
}

func (r StopReason) state() State {
	switch r {
	case ReasonOrphaned:
		return StateOrphaned
	case ReasonChildExited:
		return StateChildExited
	case ReasonSignalled:
		return StateSignalledStop
	default:
		return StateStopped
	}
}
