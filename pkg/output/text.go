package output

import (
	"context"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ccollicutt/journalhealth/pkg/metrics"
)

// maxTextTopMessages caps the ranking shown without --verbose.
const maxTextTopMessages = 5

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	if opts.Language == language.Und {
		opts.Language = language.English
	}
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	p := message.NewPrinter(f.opts.Language)
	if f.opts.Quiet {
		return f.formatQuiet(p, report, w)
	}
	return f.formatFull(p, report, w)
}

func (f *TextFormatter) formatQuiet(p *message.Printer, report *Report, w io.Writer) error {
	_, err := p.Fprintf(w, "journalhealth: %d records over %d day(s), lowest score %.1f (%s), %d day(s) below %.0f\n",
		report.Summary.Records,
		report.Summary.Days,
		report.Summary.LowestScore,
		report.Summary.State,
		report.Summary.DaysBelow,
		report.Summary.AlertBelow)
	return err
}

func (f *TextFormatter) formatFull(p *message.Printer, report *Report, w io.Writer) error {
	tables := report.Tables

	p.Fprintln(w, "=== Journal Health Report ===")
	p.Fprintln(w)

	// Health by day
	p.Fprintln(w, "[HEALTH]")
	if len(tables.Health) == 0 {
		p.Fprintln(w, "  No days scored")
	}
	for _, h := range tables.Health {
		marker := ""
		if h.Score < report.Summary.AlertBelow {
			marker = "  <- below threshold"
		}
		p.Fprintf(w, "  %s  %6.1f  %-8s%s\n", h.Date, h.Score, h.State, marker)
	}
	p.Fprintln(w)

	// Window summary
	if ws := tables.Window; ws != nil && ws.End != "" {
		p.Fprintf(w, "[WINDOW] %s .. %s (%d day(s), %d records)\n", ws.Start, ws.End, ws.Days, ws.Records)
		for _, m := range ws.Metrics {
			p.Fprintf(w, "  %-28s %d\n", m.Name, m.Value)
		}
		p.Fprintln(w)
	}

	// Category totals
	p.Fprintln(w, "[CATEGORIES]")
	for _, c := range categoryTotals(tables.Daily) {
		p.Fprintf(w, "  %-20s %d\n", c.Category, c.Count)
	}
	p.Fprintln(w)

	// Top messages
	top := tables.TopMessages
	if !f.opts.Verbose && len(top) > maxTextTopMessages {
		top = top[:maxTextTopMessages]
	}
	p.Fprintln(w, "[TOP MESSAGES]")
	for _, m := range top {
		p.Fprintf(w, "  %6d  [%s] %s\n", m.Count, strings.Join(m.Categories, ","), truncate(m.MessageKey, 80))
	}
	p.Fprintln(w)

	if f.opts.Verbose && report.Ingest != nil {
		s := report.Ingest
		p.Fprintln(w, "[INGEST]")
		p.Fprintf(w, "  lines read: %d, blank: %d, boot markers: %d\n", s.LinesRead, s.Blank, s.BootMarkers)
		p.Fprintf(w, "  unparseable: %d, bad timestamps: %d\n", s.Unparseable, s.BadTimestamps)
		p.Fprintf(w, "  parsed: %d, records: %d, merged duplicates: %d\n", s.Parsed, s.Records, s.MergedDuplicates)
		p.Fprintln(w)
	}

	// Summary
	p.Fprintln(w, "---")
	_, err := p.Fprintf(w, "Summary: %d records (%d events) over %d day(s), lowest score %.1f on %s, %d day(s) below %.0f\n",
		report.Summary.Records,
		report.Summary.Events,
		report.Summary.Days,
		report.Summary.LowestScore,
		orDash(report.Summary.LowestDate),
		report.Summary.DaysBelow,
		report.Summary.AlertBelow)
	if err != nil {
		return err
	}

	if f.opts.Verbose {
		p.Fprintf(w, "Run: %s\n", report.Metadata.RunID)
		p.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
	}

	return nil
}

// categoryTotals sums daily rows per category, largest first.
func categoryTotals(daily []metrics.DailyCount) []metrics.DailyCount {
	index := make(map[string]int)
	var out []metrics.DailyCount
	for _, d := range daily {
		i, ok := index[d.Category]
		if !ok {
			index[d.Category] = len(out)
			out = append(out, metrics.DailyCount{Category: d.Category})
			i = len(out) - 1
		}
		out[i].Count += d.Count
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
