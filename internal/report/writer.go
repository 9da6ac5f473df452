package report

import (
	"fmt"
	"io"
	"time"

	"github.com/nao1215/onionrotate/internal/model"
)

// Writer defines the interface for session summary output.
type Writer interface {
	// Write outputs the summary and returns the number of bytes written.
	Write(summary *model.SessionSummary) (int, error)
}

// MultiWriter writes to multiple Writers in order and stops on the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all configured Writers.
// Returns the total bytes written across all writers.
func (m *MultiWriter) Write(summary *model.SessionSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// FormatEvent renders one attempt the way the terminal shows it:
//
//	Change #3: 1.2.3.4 → 5.6.7.8
//	Change #4: 5.6.7.8 → No change detected
//	Change #5: 5.6.7.8 → Failed to verify new IP
func FormatEvent(ev model.RotationEvent) string {
	result := ev.Result.String()
	switch ev.Outcome {
	case model.OutcomeUnchanged:
		result = "No change detected"
	case model.OutcomeFailed:
		result = "Failed to verify new IP"
	}

	line := fmt.Sprintf("Change #%d: %s → %s", ev.Sequence, ev.Previous, result)
	if ev.Fallback {
		line += " (daemon reloaded)"
	}
	return line
}

// formatDuration drops sub-second noise from session durations.
func formatDuration(s *model.SessionSummary) string {
	return s.Duration().Round(time.Second).String()
}
