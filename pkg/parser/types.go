// Package parser reads journal text and splits each line into its fields.
package parser

// LogLine is a raw log line before field parsing.
type LogLine struct {
	// Content is the line text with surrounding whitespace trimmed.
	Content string

	// Source is the file path this line came from.
	Source string

	// LineNum is the 1-based line number in the source file.
	LineNum int

	// Oversized is set when the line exceeded the maximum line length.
	// Content is empty in that case.
	Oversized bool
}

// Fields is the field set extracted from one journal line.
type Fields struct {
	// Timestamp is the timezone-naive date and time, e.g. "2025-07-05T10:28:40".
	Timestamp string

	// TZ is the signed HHMM offset, e.g. "+0900".
	TZ string

	Host string

	// Unit excludes the trailing [pid] and colon.
	Unit string

	// PID is nil when the line has no [pid].
	PID *int

	// Message is everything after the unit's colon, trimmed.
	Message string
}
