// Package report renders pipeline runs for people and tools.
//
// A RunReport joins a run snapshot with the typed stage outputs. Writers
// render it in different formats:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown with a risk level pie chart for sharing
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
