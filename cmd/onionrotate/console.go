package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/onionrotate/internal/model"
	"github.com/nao1215/onionrotate/internal/report"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// countdownWidth is the width of a rendered countdown line.
var countdownWidth = len("Next change in 00:00")

// console renders session progress for an interactive terminal.
// It is only called from the session goroutine.
type console struct {
	out   io.Writer
	title cases.Caser

	// countdown is true while a countdown line is on screen.
	countdown bool
}

// newConsole creates a console writing to out.
func newConsole(out io.Writer) *console {
	return &console{out: out, title: cases.Title(language.English)}
}

// SessionStarted prints the starting state and how to drive the session.
func (c *console) SessionStarted(state model.SessionState) {
	c.printInfo(state)

	fmt.Fprintf(c.out, "\n%s mode started - Press Ctrl+C to stop\n", c.title.String(state.Config.Mode.String()))
	c.prompt(state)
}

// Countdown redraws the time left before the next automatic rotation.
func (c *console) Countdown(remaining time.Duration, _ model.SessionState) {
	fmt.Fprintf(c.out, "\rNext change in %s", formatClock(remaining))
	c.countdown = true
}

// RotationCompleted prints the outcome line and the updated state.
func (c *console) RotationCompleted(event model.RotationEvent, state model.SessionState) {
	c.clearCountdown()
	fmt.Fprintln(c.out, report.FormatEvent(event))
	c.printInfo(state)
	c.prompt(state)
}

// SessionTerminated prints the closing line. Errors other than
// cancellation are reported by the command itself.
func (c *console) SessionTerminated(state model.SessionState, err error) {
	c.clearCountdown()

	switch {
	case err == nil && state.Exhausted():
		fmt.Fprintf(c.out, "\nCompleted %d IP changes!\n", state.ChangeCount)
	case err == nil, errors.Is(err, context.Canceled):
		fmt.Fprintln(c.out, "\nExiting...")
	}
}

func (c *console) printInfo(state model.SessionState) {
	fmt.Fprintln(c.out, "\n - INFO -")
	fmt.Fprintf(c.out, "Mode: %s\n", c.title.String(state.Config.Mode.String()))
	fmt.Fprintf(c.out, "Current IP: %s\n", state.CurrentAddress)
	fmt.Fprintf(c.out, "Changes: %d\n", state.ChangeCount)
	if remaining, limited := state.RemainingChanges(); limited {
		fmt.Fprintf(c.out, "Remaining: %d\n", remaining)
	}
}

func (c *console) prompt(state model.SessionState) {
	if state.Config.Mode == model.ModeManual {
		fmt.Fprintln(c.out, "\nPress ENTER to change IP")
	}
}

func (c *console) clearCountdown() {
	if !c.countdown {
		return
	}
	fmt.Fprint(c.out, "\r"+strings.Repeat(" ", countdownWidth)+"\r")
	c.countdown = false
}

// formatClock renders d as mm:ss, rounding partial seconds up.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
