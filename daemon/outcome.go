package daemon

// Outcome classifies the result of one Lint call.
type Outcome int

const (
	// OutcomeSuccess carries the server's response text unmodified
	OutcomeSuccess Outcome = iota
	// OutcomeServerUnavailable means no server answered and auto-start is off
	OutcomeServerUnavailable
	// OutcomeStartupFailed means a server was started but the retry failed
	OutcomeStartupFailed
	// OutcomeStillWarmingUp means an owned server is alive but not answering yet
	OutcomeStillWarmingUp
)

// Fixed user-facing texts of the non-success outcomes.
const (
	MessageServerUnavailable = "Lint server is not running and auto-start is disabled."
	MessageStartupFailed     = "Lint server failed to start."
	MessageStillWarmingUp    = "Lint server is starting up, try again in a moment."
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeServerUnavailable:
		return "server-unavailable"
	case OutcomeStartupFailed:
		return "startup-failed"
	case OutcomeStillWarmingUp:
		return "still-warming-up"
	default:
		return "unknown"
	}
}

// Message returns the fixed text of a non-success outcome.
func (o Outcome) Message() string {
	switch o {
	case OutcomeServerUnavailable:
		return MessageServerUnavailable
	case OutcomeStartupFailed:
		return MessageStartupFailed
	case OutcomeStillWarmingUp:
		return MessageStillWarmingUp
	default:
		return ""
	}
}

// Result is what Lint returns for every non-fatal call.
type Result struct {
	Outcome Outcome
	// Text is the raw response on success, otherwise Outcome.Message()
	Text string
	// RequestID correlates this call with its log lines
	RequestID string
	// Cause is the failure behind a non-success outcome, for diagnostics
	Cause error
}

// OK reports whether the server answered.
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

func failed(outcome Outcome, requestID string, cause error) Result {
	return Result{Outcome: outcome, Text: outcome.Message(), RequestID: requestID, Cause: cause}
}
