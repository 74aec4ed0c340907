// Package record defines the structured event produced by journal ingestion.
package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire formats shared by every sink that renders a record.
const (
	// TimeLayout renders instants with an explicit offset (UTC as +00:00).
	TimeLayout = "2006-01-02T15:04:05-07:00"

	// DateLayout is the UTC calendar date format.
	DateLayout = "2006-01-02"

	// MessageKeyLen is the number of characters used to group messages.
	MessageKeyLen = 120
)

// LogRecord is one logical journal event after duplicate merging.
// Records are immutable once emitted by the ingestion driver.
type LogRecord struct {
	// TSUTC is the event instant in UTC.
	TSUTC time.Time

	// TSLocal is the same instant in the line's original offset.
	TSLocal time.Time

	// TZOffset is the signed HHMM offset as written in the line (e.g. "+0900").
	// It is kept even when default_tz replaced an unusable offset, so it may
	// not match TSLocal's zone.
	TZOffset string

	Host string
	Unit string

	// PID is nil when the line carried no [pid].
	PID *int

	// Message is the trimmed text after the unit/pid colon.
	Message string

	// Raw is the original (trimmed) line.
	Raw string

	// Date, Hour and Weekday are derived from TSUTC.
	Date    string
	Hour    int
	Weekday string

	// BootSeq is the boot session the event belongs to.
	BootSeq int

	// Category is the classification tag. Never empty.
	Category string

	// RepeatCount is the number of consecutive raw lines merged into this record.
	RepeatCount int
}

// New builds a record from its parsed parts, deriving the calendar fields
// from the UTC instant. RepeatCount starts at 1.
func New(utc, local time.Time, tz, host, unit string, pid *int, message, raw string) LogRecord {
	utc = utc.UTC()
	return LogRecord{
		TSUTC:       utc,
		TSLocal:     local,
		TZOffset:    tz,
		Host:        host,
		Unit:        unit,
		PID:         pid,
		Message:     message,
		Raw:         raw,
		Date:        utc.Format(DateLayout),
		Hour:        utc.Hour(),
		Weekday:     utc.Weekday().String(),
		RepeatCount: 1,
	}
}

// MessageKey returns the first MessageKeyLen characters of the message.
func (r *LogRecord) MessageKey() string {
	return MessageKey(r.Message)
}

// MessageKey truncates s to MessageKeyLen characters (runes, not bytes).
func MessageKey(s string) string {
	n := 0
	for i := range s {
		if n == MessageKeyLen {
			return s[:i]
		}
		n++
	}
	return s
}

// ParseDate parses the record's UTC calendar date.
func (r *LogRecord) ParseDate() (time.Time, error) {
	d, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("record date %q: %w", r.Date, err)
	}
	return d, nil
}

// wireRecord is the JSON shape of a record.
type wireRecord struct {
	TSUTC       string `json:"ts_utc"`
	TSLocal     string `json:"ts_local"`
	TZOffset    string `json:"tz_offset"`
	Host        string `json:"host"`
	Unit        string `json:"unit"`
	PID         *int   `json:"pid"`
	Message     string `json:"message"`
	Raw         string `json:"raw"`
	Date        string `json:"date"`
	Hour        int    `json:"hour"`
	Weekday     string `json:"weekday"`
	BootSeq     int    `json:"boot_seq"`
	Category    string `json:"category"`
	RepeatCount int    `json:"repeat_count"`
}

// MarshalJSON renders timestamps with TimeLayout.
func (r LogRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRecord{
		TSUTC:       r.TSUTC.Format(TimeLayout),
		TSLocal:     r.TSLocal.Format(TimeLayout),
		TZOffset:    r.TZOffset,
		Host:        r.Host,
		Unit:        r.Unit,
		PID:         r.PID,
		Message:     r.Message,
		Raw:         r.Raw,
		Date:        r.Date,
		Hour:        r.Hour,
		Weekday:     r.Weekday,
		BootSeq:     r.BootSeq,
		Category:    r.Category,
		RepeatCount: r.RepeatCount,
	})
}

// Fields returns the record as the flat column list used by tabular sinks.
func (r *LogRecord) Fields() []string {
	pid := ""
	if r.PID != nil {
		pid = fmt.Sprint(*r.PID)
	}
	return []string{
		r.TSUTC.Format(TimeLayout),
		r.TSLocal.Format(TimeLayout),
		r.TZOffset,
		r.Host,
		r.Unit,
		pid,
		r.Message,
		r.Raw,
		r.Date,
		fmt.Sprint(r.Hour),
		r.Weekday,
		fmt.Sprint(r.BootSeq),
		r.Category,
		fmt.Sprint(r.RepeatCount),
	}
}

// Columns is the header matching Fields.
var Columns = []string{
	"ts_utc", "ts_local", "tz_offset", "host", "unit", "pid", "message", "raw",
	"date", "hour", "weekday", "boot_seq", "category", "repeat_count",
}
