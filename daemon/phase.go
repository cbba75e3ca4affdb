package daemon

// Phase is the Manager's view of the server it talks to.
type Phase int

const (
	// PhaseCold means no exchange has succeeded since the last start or reset
	PhaseCold Phase = iota
	// PhaseStarting means a start and its warm-up are in progress
	PhaseStarting
	// PhaseWarm means the last exchange succeeded
	PhaseWarm
)

func (p Phase) String() string {
	switch p {
	case PhaseCold:
		return "cold"
	case PhaseStarting:
		return "starting"
	case PhaseWarm:
		return "warm"
	default:
		return "unknown"
	}
}
