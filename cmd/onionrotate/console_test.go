package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/onionrotate/internal/model"
)

func mustAddress(t *testing.T, s string) model.Address {
	t.Helper()
	addr, err := model.ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q) error = %v", s, err)
	}
	return addr
}

func TestFormatClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{time.Second, "00:01"},
		{1500 * time.Millisecond, "00:02"},
		{time.Minute, "01:00"},
		{2*time.Minute + 5*time.Second, "02:05"},
		{100 * time.Minute, "100:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := formatClock(tt.in); got != tt.want {
				t.Errorf("formatClock(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConsole(t *testing.T) {
	t.Parallel()

	manual := model.SessionState{
		Config:         model.SessionConfig{Mode: model.ModeManual},
		CurrentAddress: mustAddress(t, "198.51.100.7"),
	}
	auto := model.SessionState{
		Config:         model.SessionConfig{Mode: model.ModeAuto, Interval: time.Minute, MaxChanges: 2},
		CurrentAddress: mustAddress(t, "198.51.100.7"),
	}

	t.Run("manual start prompts for enter", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		newConsole(&out).SessionStarted(manual)

		got := out.String()
		for _, want := range []string{" - INFO -", "Mode: Manual", "Current IP: 198.51.100.7", "Changes: 0", "Manual mode started", "Press ENTER to change IP"} {
			if !strings.Contains(got, want) {
				t.Errorf("output missing %q:\n%s", want, got)
			}
		}
		if strings.Contains(got, "Remaining:") {
			t.Errorf("manual output shows remaining changes:\n%s", got)
		}
	})

	t.Run("auto start shows remaining without prompt", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		newConsole(&out).SessionStarted(auto)

		got := out.String()
		if !strings.Contains(got, "Remaining: 2") || !strings.Contains(got, "Auto mode started") {
			t.Errorf("unexpected output:\n%s", got)
		}
		if strings.Contains(got, "Press ENTER") {
			t.Errorf("auto output prompts for ENTER:\n%s", got)
		}
	})

	t.Run("rotation clears countdown and prints event", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		c := newConsole(&out)
		c.Countdown(59*time.Second, auto)

		state := auto
		state.ChangeCount = 1
		state.CurrentAddress = mustAddress(t, "203.0.113.9")
		event := model.NewRotationEvent(1, mustAddress(t, "198.51.100.7"), state.CurrentAddress, false, time.Now())
		c.RotationCompleted(event, state)

		got := out.String()
		if !strings.HasPrefix(got, "\rNext change in 00:59") {
			t.Errorf("countdown not rendered first:\n%q", got)
		}
		if !strings.Contains(got, "\r"+strings.Repeat(" ", countdownWidth)+"\r") {
			t.Errorf("countdown not cleared:\n%q", got)
		}
		if !strings.Contains(got, "Change #1: 198.51.100.7 → 203.0.113.9") {
			t.Errorf("event line missing:\n%s", got)
		}
		if !strings.Contains(got, "Remaining: 1") {
			t.Errorf("remaining not updated:\n%s", got)
		}
	})

	t.Run("terminated", func(t *testing.T) {
		t.Parallel()

		exhausted := auto
		exhausted.ChangeCount = 2

		tests := []struct {
			name  string
			state model.SessionState
			err   error
			want  string
		}{
			{name: "completed", state: exhausted, want: "Completed 2 IP changes!"},
			{name: "interrupted", state: auto, err: context.Canceled, want: "Exiting..."},
			{name: "input closed", state: manual, want: "Exiting..."},
			{name: "failure", state: manual, err: errors.New("tor did not start"), want: ""},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				var out bytes.Buffer
				newConsole(&out).SessionTerminated(tt.state, tt.err)

				got := strings.TrimSpace(out.String())
				if got != tt.want {
					t.Errorf("output = %q, want %q", got, tt.want)
				}
			})
		}
	})
}
