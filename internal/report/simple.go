package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/onionrotate/internal/model"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// SimpleWriter outputs a human-readable text summary.
type SimpleWriter struct {
	baseWriter

	// verbose adds the per-attempt log and the address tally.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every attempt and the address tally.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.SessionSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)
	if w.verbose {
		w.writeEvents(&sb, summary)
		w.writeAddresses(&sb, summary)
	}
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *model.SessionSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	sb.WriteString("                 ONIONROTATE SESSION SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n\n")

	mode := s.Mode.String()
	if s.Mode == model.ModeAuto {
		limit := "unlimited"
		if s.MaxChanges > 0 {
			limit = fmt.Sprintf("max %d", s.MaxChanges)
		}
		mode = fmt.Sprintf("%s (every %s, %s)", mode, s.Interval, limit)
	}

	fmt.Fprintf(sb, "Mode:            %s\n", mode)
	fmt.Fprintf(sb, "Started:         %s\n", s.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Ended:           %s\n", s.EndedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Duration:        %s\n", formatDuration(s))
	fmt.Fprintf(sb, "Starting IP:     %s\n", s.Baseline)
	fmt.Fprintf(sb, "Final IP:        %s\n", s.FinalAddress)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCounts(sb *strings.Builder, s *model.SessionSummary) {
	sb.WriteString("ROTATIONS\n")
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  Attempts:      %d\n", s.ChangeCount)
	fmt.Fprintf(sb, "  Changed:       %d\n", s.ChangedCount)
	fmt.Fprintf(sb, "  Unchanged:     %d\n", s.UnchangedCount)
	fmt.Fprintf(sb, "  Failed:        %d\n", s.FailedCount)
	fmt.Fprintf(sb, "  Fallbacks:     %d\n", s.FallbackCount)
	fmt.Fprintf(sb, "  Distinct IPs:  %d\n", s.DistinctAddresses)
	if s.ReusedCount > 0 {
		fmt.Fprintf(sb, "  Reused IPs:    %d\n", s.ReusedCount)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeEvents(sb *strings.Builder, s *model.SessionSummary) {
	if len(s.Events) == 0 {
		return
	}
	sb.WriteString("ATTEMPTS\n")
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")
	for _, ev := range s.Events {
		fmt.Fprintf(sb, "  [%s] %s\n", ev.Time.Format("15:04:05"), FormatEvent(ev))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeAddresses(sb *strings.Builder, s *model.SessionSummary) {
	if len(s.Addresses) == 0 {
		return
	}
	sb.WriteString("ADDRESSES\n")
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")
	for _, a := range s.Addresses {
		fmt.Fprintf(sb, "  %-15s  x%d (first at #%d)\n", a.Address, a.Count, a.FirstSeen)
	}
	sb.WriteString("\n")
}
