// Package report renders a finished rotation session.
//
// Writers implement the Writer interface and can be combined with
// MultiWriter:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: structured JSON for other tools
//   - MarkdownWriter: GitHub Flavored Markdown with an outcome chart
//
// FormatEvent renders the one-line description of a rotation attempt that
// the terminal prints while the session runs.
package report
