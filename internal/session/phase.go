package session

// Phase is the state-machine position of a Session.
type Phase int

const (
	// PhaseIdle is the phase before Start.
	PhaseIdle Phase = iota
	// PhaseVerifying covers the baseline check and every rotation attempt.
	PhaseVerifying
	// PhaseWaiting is the auto-mode countdown before the next rotation.
	PhaseWaiting
	// PhaseTerminated is final: no further rotation is issued.
	PhaseTerminated
)

// String returns the lowercase name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseVerifying:
		return "verifying"
	case PhaseWaiting:
		return "waiting"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
