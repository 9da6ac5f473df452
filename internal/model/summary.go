package model

import "time"

// SessionSummary aggregates the events of one session for reporting.
type SessionSummary struct {
	Mode              Mode            `json:"mode"`
	Interval          time.Duration   `json:"interval,omitempty"`
	MaxChanges        int             `json:"max_changes,omitempty"`
	StartedAt         time.Time       `json:"started_at"`
	EndedAt           time.Time       `json:"ended_at"`
	Baseline          Address         `json:"baseline"`
	FinalAddress      Address         `json:"final_address"`
	ChangeCount       int             `json:"change_count"`
	ChangedCount      int             `json:"changed"`
	UnchangedCount    int             `json:"unchanged"`
	FailedCount       int             `json:"failed"`
	FallbackCount     int             `json:"fallbacks"`
	DistinctAddresses int             `json:"distinct_addresses"`
	// ReusedCount counts Changed attempts whose address had already been
	// obtained earlier in the session. Filled from the event log.
	ReusedCount int `json:"reused"`
	// Addresses tallies the addresses obtained by rotations, most frequent
	// first. Filled from the event log.
	Addresses []AddressTally  `json:"addresses,omitempty"`
	Events    []RotationEvent `json:"events"`
}

// AddressTally is how many rotation attempts resulted in one address.
type AddressTally struct {
	Address Address `json:"address"`
	Count   int     `json:"count"`
	// FirstSeen is the sequence of the first attempt that obtained it.
	FirstSeen int `json:"first_seen"`
}

// NewSessionSummary builds a summary from a session's baseline, final state,
// and event log.
func NewSessionSummary(baseline Address, state SessionState, events []RotationEvent, startedAt, endedAt time.Time) *SessionSummary {
	s := &SessionSummary{
		Mode:         state.Config.Mode,
		StartedAt:    startedAt,
		EndedAt:      endedAt,
		Baseline:     baseline,
		FinalAddress: state.CurrentAddress,
		ChangeCount:  state.ChangeCount,
		Events:       append([]RotationEvent(nil), events...),
	}
	if state.Config.Mode == ModeAuto {
		s.Interval = state.Config.Interval
		s.MaxChanges = state.Config.MaxChanges
	}

	seen := make(map[string]bool)
	if !baseline.IsUnknown() {
		seen[baseline.String()] = true
	}
	for _, ev := range events {
		switch ev.Outcome {
		case OutcomeChanged:
			s.ChangedCount++
		case OutcomeUnchanged:
			s.UnchangedCount++
		case OutcomeFailed:
			s.FailedCount++
		}
		if ev.Fallback {
			s.FallbackCount++
		}
		if !ev.Result.IsUnknown() {
			seen[ev.Result.String()] = true
		}
	}
	s.DistinctAddresses = len(seen)

	return s
}

// Duration returns how long the session ran.
func (s *SessionSummary) Duration() time.Duration {
	if s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}
