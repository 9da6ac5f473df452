package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/onionrotate/internal/model"
)

// MarkdownWriter outputs the summary as GitHub Flavored Markdown built with
// nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.SessionSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeOutcomes(md, summary)
	w.writeEvents(md, summary)
	w.writeAddresses(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.SessionSummary) {
	md.H1("onionrotate Session Summary")
	md.PlainText("")

	rows := [][]string{
		{"Mode", s.Mode.String()},
	}
	if s.Mode == model.ModeAuto {
		limit := "unlimited"
		if s.MaxChanges > 0 {
			limit = strconv.Itoa(s.MaxChanges)
		}
		rows = append(rows,
			[]string{"Interval", s.Interval.String()},
			[]string{"Max changes", limit},
		)
	}
	rows = append(rows,
		[]string{"Started", s.StartedAt.Format(timeLayout)},
		[]string{"Duration", formatDuration(s)},
		[]string{"Starting IP", "`" + s.Baseline.String() + "`"},
		[]string{"Final IP", "`" + s.FinalAddress.String() + "`"},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, s *model.SessionSummary) {
	md.H2("Rotations")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"✅ Changed", strconv.Itoa(s.ChangedCount)},
			{"➖ Unchanged", strconv.Itoa(s.UnchangedCount)},
			{"❌ Failed", strconv.Itoa(s.FailedCount)},
			{"Daemon reloads", strconv.Itoa(s.FallbackCount)},
			{"Distinct IPs", strconv.Itoa(s.DistinctAddresses)},
			{"**Attempts**", "**" + strconv.Itoa(s.ChangeCount) + "**"},
		},
	})
	md.PlainText("")

	if s.ChangeCount > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *model.SessionSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Rotation Outcomes"),
		piechart.WithShowData(true),
	)

	if s.ChangedCount > 0 {
		chart.LabelAndIntValue("Changed", uint64(s.ChangedCount))
	}
	if s.UnchangedCount > 0 {
		chart.LabelAndIntValue("Unchanged", uint64(s.UnchangedCount))
	}
	if s.FailedCount > 0 {
		chart.LabelAndIntValue("Failed", uint64(s.FailedCount))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *model.SessionSummary) {
	switch {
	case s.ChangeCount == 0:
		md.Note("No rotation was attempted.")
	case s.ChangedCount == 0:
		md.Cautionf("None of the %d attempt(s) produced a new exit address.", s.ChangeCount)
	case s.FailedCount > 0:
		md.Warningf("%d attempt(s) could not verify the new address.", s.FailedCount)
	case s.ReusedCount > 0:
		md.Importantf("%d rotation(s) returned an exit address already used in this session.", s.ReusedCount)
	default:
		md.Tip("Every attempt produced a verified exit address.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeEvents(md *markdown.Markdown, s *model.SessionSummary) {
	md.H2("Attempts")
	md.PlainText("")

	if len(s.Events) == 0 {
		md.PlainText("No attempts recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Events))
	for i, ev := range s.Events {
		fallback := "-"
		if ev.Fallback {
			fallback = "reload"
		}
		rows[i] = []string{
			strconv.Itoa(ev.Sequence),
			ev.Time.Format("15:04:05"),
			"`" + ev.Previous.String() + "`",
			"`" + ev.Result.String() + "`",
			ev.Outcome.String(),
			fallback,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "Time", "Previous", "Result", "Outcome", "Fallback"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeAddresses(md *markdown.Markdown, s *model.SessionSummary) {
	if len(s.Addresses) == 0 {
		return
	}

	md.H2("Exit Addresses")
	md.PlainText("")

	rows := make([][]string, len(s.Addresses))
	for i, a := range s.Addresses {
		rows[i] = []string{"`" + a.Address.String() + "`", strconv.Itoa(a.Count), strconv.Itoa(a.FirstSeen)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Address", "Times", "First attempt"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [onionrotate](https://github.com/nao1215/onionrotate)*")
}
