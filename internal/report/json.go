package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// JSONWriter renders a run as one JSON document. Backend text such as
// "<script>" payloads in indicator descriptions is written unescaped.
type JSONWriter struct {
	baseWriter

	prefix, indent string
	version        string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent indents nested values with indent after prefix.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix, w.indent = prefix, indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion wraps the report in an Envelope carrying version.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter returns a JSONWriter writing to output.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Envelope is the document written when a version is configured.
type Envelope struct {
	Version string     `json:"version"`
	Report  *RunReport `json:"report"`
}

// Write implements Writer. Nothing is written when encoding fails.
func (w *JSONWriter) Write(report *RunReport) (int, error) {
	var doc any = report
	if w.version != "" {
		doc = &Envelope{Version: w.version, Report: report}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(w.prefix, w.indent)
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("encoding report %s: %w", report.RunID, err)
	}
	return w.output.Write(buf.Bytes())
}
