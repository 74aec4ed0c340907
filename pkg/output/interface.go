package output

import (
	"context"
	"io"

	"golang.org/x/text/language"
)

// Formatter renders a run report in a specific format.
type Formatter interface {
	// Format renders the report to the given writer.
	Format(ctx context.Context, report *Report, w io.Writer) error

	// Name returns the format name (text, json).
	Name() string
}

// FormatOptions controls formatter behavior.
type FormatOptions struct {
	// Verbose adds ingestion statistics and the full tables.
	Verbose bool

	// Quiet enables minimal summary-only output.
	Quiet bool

	// Language selects number formatting for text output. Defaults to English.
	Language language.Tag
}

// NewFormatter returns the formatter for name ("text" or "json").
func NewFormatter(name string, opts FormatOptions) (Formatter, error) {
	switch name {
	case "text", "":
		return NewTextFormatter(opts), nil
	case "json":
		return NewJSONFormatter(opts), nil
	default:
		return nil, &UnknownFormatError{Name: name}
	}
}

// UnknownFormatError reports an unsupported output format.
type UnknownFormatError struct {
	Name string
}

func (e *UnknownFormatError) Error() string {
	return "unknown output format \"" + e.Name + "\" (use text or json)"
}
