package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// token matches a host or unit name. Letters and digits of any script are
// accepted, as are underscore, dot and hyphen.
const token = `[\p{L}\p{M}\p{N}_.-]+`

var (
	// genericLine matches "TIMESTAMP±TZ HOST UNIT[PID]: MESSAGE".
	genericLine = regexp.MustCompile(
		`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2})` +
			`([+-]\d{4})\s+` +
			`(` + token + `)\s+` +
			`(` + token + `)(?:\[(\d+)\])?:\s*` +
			`(.*)$`)

	// kernelLine tolerates whitespace between timestamp and offset for kernel lines.
	kernelLine = regexp.MustCompile(
		`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2})\s*` +
			`([+-]\d{4})\s+` +
			`(` + token + `)\s+` +
			`(kernel):\s*` +
			`(.*)$`)
)

// LineParser splits journal lines into Fields.
type LineParser struct{}

// NewLineParser creates a line parser.
func NewLineParser() *LineParser {
	return &LineParser{}
}

// Parse extracts the fields of a trimmed, non-empty line.
// The generic shape is tried first, then the kernel shape.
// Returns false when the line matches neither.
func (p *LineParser) Parse(line string) (*Fields, bool) {
	if m := genericLine.FindStringSubmatch(line); m != nil {
		f := &Fields{
			Timestamp: m[1],
			TZ:        m[2],
			Host:      m[3],
			Unit:      m[4],
			Message:   strings.TrimSpace(m[6]),
		}
		if m[5] != "" {
			if pid, err := strconv.Atoi(m[5]); err == nil {
				f.PID = &pid
			}
		}
		return f, true
	}

	if m := kernelLine.FindStringSubmatch(line); m != nil {
		return &Fields{
			Timestamp: m[1],
			TZ:        m[2],
			Host:      m[3],
			Unit:      m[4],
			Message:   strings.TrimSpace(m[5]),
		}, true
	}

	return nil, false
}
