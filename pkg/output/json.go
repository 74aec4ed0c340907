package output

import (
	"context"
	"encoding/json"
	"io"
)

// JSONFormatter formats reports as JSON.
//
// The full report is indented. Quiet mode writes one compact line per
// report holding the run ID and summary, so repeated runs (watch) form a
// JSON Lines stream.
type JSONFormatter struct {
	opts FormatOptions
}

// quietReport is the quiet-mode document.
type quietReport struct {
	RunID   string  `json:"run_id"`
	Summary Summary `json:"summary"`
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Format renders the report as JSON.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	if f.opts.Quiet {
		return enc.Encode(quietReport{RunID: report.Metadata.RunID, Summary: report.Summary})
	}
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
