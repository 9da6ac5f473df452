package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Session configuration errors.
var (
	// ErrInvalidMode is returned when a mode string names no Mode.
	ErrInvalidMode = errors.New("invalid mode: must be manual (m, 1) or auto (a, 2)")
	// ErrInvalidInterval is returned when auto mode has a non-positive interval.
	ErrInvalidInterval = errors.New("invalid interval: must be positive in auto mode")
	// ErrInvalidMaxChanges is returned when max changes is negative.
	ErrInvalidMaxChanges = errors.New("invalid max changes: must be zero (unlimited) or positive")
)

// Mode selects how rotations are triggered.
type Mode int

const (
	// ModeManual rotates once per external trigger and never ends on its own.
	ModeManual Mode = iota
	// ModeAuto rotates after every interval until max changes is reached.
	ModeAuto
)

// String returns the lowercase name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode converts a mode name into a Mode, ignoring case and
// surrounding space. Besides "manual" and "auto" it accepts the initials
// "m" and "a" and the menu numbers "1" and "2".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual", "m", "1":
		return ModeManual, nil
	case "auto", "a", "2":
		return ModeAuto, nil
	default:
		return ModeManual, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// SessionConfig is the read-only input of a rotation session.
type SessionConfig struct {
	// Mode selects manual or automatic rotation.
	Mode Mode `json:"mode"`

	// Interval is the wait before each rotation in auto mode.
	Interval time.Duration `json:"interval"`

	// MaxChanges caps the number of rotation attempts in auto mode.
	// Zero means unlimited.
	MaxChanges int `json:"max_changes"`
}

// Validate checks the configuration for the selected mode.
// Interval and MaxChanges are ignored in manual mode.
func (c SessionConfig) Validate() error {
	switch c.Mode {
	case ModeManual:
		return nil
	case ModeAuto:
		if c.Interval <= 0 {
			return ErrInvalidInterval
		}
		if c.MaxChanges < 0 {
			return ErrInvalidMaxChanges
		}
		return nil
	default:
		return ErrInvalidMode
	}
}

// Limited reports whether the session stops after MaxChanges attempts.
func (c SessionConfig) Limited() bool {
	return c.Mode == ModeAuto && c.MaxChanges > 0
}

// SessionState is the mutable state of a rotation session.
type SessionState struct {
	// Config is the configuration the session was started with.
	Config SessionConfig `json:"config"`

	// CurrentAddress is the last known-good address.
	CurrentAddress Address `json:"current_address"`

	// ChangeCount is the number of rotation attempts made so far,
	// successful or not.
	ChangeCount int `json:"change_count"`
}

// RemainingChanges returns how many attempts are left before the session
// terminates, and false when the session is unlimited.
func (s SessionState) RemainingChanges() (int, bool) {
	if !s.Config.Limited() {
		return 0, false
	}
	remaining := s.Config.MaxChanges - s.ChangeCount
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Exhausted reports whether a limited session has used all its attempts.
func (s SessionState) Exhausted() bool {
	remaining, limited := s.RemainingChanges()
	return limited && remaining == 0
}
