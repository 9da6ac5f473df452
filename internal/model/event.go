package model

import "time"

// Outcome classifies a single rotation attempt.
type Outcome int

const (
	// OutcomeChanged means a valid address was obtained and it differs from
	// the previous one.
	OutcomeChanged Outcome = iota
	// OutcomeUnchanged means a valid address was obtained but it equals the
	// previous one, including when the rotation signal silently did nothing.
	OutcomeUnchanged
	// OutcomeFailed means no valid address could be obtained after rotating.
	OutcomeFailed
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeChanged:
		return "changed"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// RotationEvent records one rotation attempt. Events are created exactly once
// per attempt and are never modified afterwards.
type RotationEvent struct {
	// Sequence is the 1-based attempt number within the session.
	Sequence int `json:"sequence"`

	// Previous is the address held before the attempt (may be unknown).
	Previous Address `json:"previous"`

	// Result is the address observed after the attempt. It is unknown
	// when the outcome is OutcomeFailed.
	Result Address `json:"result"`

	// Outcome is the classification of the attempt.
	Outcome Outcome `json:"outcome"`

	// Fallback is true when the control port exchange failed and the
	// daemon reload command was used instead.
	Fallback bool `json:"fallback"`

	// Time is when the attempt finished.
	Time time.Time `json:"time"`
}

// NewRotationEvent classifies the result of a rotation attempt against the
// previous address and returns the resulting event.
//
// A nil-like (unknown) result is Failed. A result equal to previous is
// Unchanged. Anything else is Changed.
func NewRotationEvent(sequence int, previous, result Address, fallback bool, at time.Time) RotationEvent {
	outcome := OutcomeChanged
	switch {
	case result.IsUnknown():
		outcome = OutcomeFailed
	case result.Equal(previous):
		outcome = OutcomeUnchanged
	}

	return RotationEvent{
		Sequence: sequence,
		Previous: previous,
		Result:   result,
		Outcome:  outcome,
		Fallback: fallback,
		Time:     at,
	}
}
