package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ccollicutt/journalhealth/pkg/metrics"
	"github.com/ccollicutt/journalhealth/pkg/record"
)

// Table file names written by WriteTables.
const (
	ParsedCSV       = "parsed.csv"
	DailyCSV        = "metrics_daily.csv"
	HourlyCSV       = "metrics_hourly.csv"
	TopMessagesCSV  = "top_messages.csv"
	CoOccurrenceCSV = "co_occurrence_hourly.csv"
	HealthCSV       = "health_score.csv"
	SummaryCSV      = "summary_last_days.csv"
)

// WriteParsed stages the record sinks: parsed.jsonl (with the compression
// suffix, if any) and parsed.csv.
func WriteParsed(s *Staging, records []record.LogRecord, compressExt string) error {
	if err := s.Write(ParsedJSONL+compressExt, func(w io.Writer) error {
		return WriteJSONL(w, records)
	}); err != nil {
		return err
	}
	return s.Write(ParsedCSV, func(w io.Writer) error {
		return WriteRecordsCSV(w, records)
	})
}

// WriteTables stages every metric table as CSV.
func WriteTables(s *Staging, t *metrics.Tables) error {
	writers := []struct {
		name string
		fn   func(io.Writer) error
	}{
		{DailyCSV, func(w io.Writer) error { return WriteDailyCSV(w, t.Daily) }},
		{HourlyCSV, func(w io.Writer) error { return WriteHourlyCSV(w, t.Hourly) }},
		{TopMessagesCSV, func(w io.Writer) error { return WriteTopMessagesCSV(w, t.TopMessages) }},
		{CoOccurrenceCSV, func(w io.Writer) error { return WriteCoOccurrenceCSV(w, t.CoOccurrence) }},
		{HealthCSV, func(w io.Writer) error { return WriteHealthCSV(w, t.Health) }},
		{SummaryCSV, func(w io.Writer) error { return WriteSummaryCSV(w, t.Window) }},
	}
	for _, wr := range writers {
		if err := s.Write(wr.name, wr.fn); err != nil {
			return err
		}
	}
	return nil
}

// WriteRecordsCSV writes records with a header row.
func WriteRecordsCSV(w io.Writer, records []record.LogRecord) error {
	rows := make([][]string, 0, len(records))
	for i := range records {
		rows = append(rows, records[i].Fields())
	}
	return writeCSV(w, record.Columns, rows)
}

// WriteDailyCSV writes date,category,count rows.
func WriteDailyCSV(w io.Writer, daily []metrics.DailyCount) error {
	rows := make([][]string, 0, len(daily))
	for _, d := range daily {
		rows = append(rows, []string{d.Date, d.Category, strconv.Itoa(d.Count)})
	}
	return writeCSV(w, []string{"date", "category", "count"}, rows)
}

// WriteHourlyCSV writes hour,category,count rows.
func WriteHourlyCSV(w io.Writer, hourly []metrics.HourlyCount) error {
	rows := make([][]string, 0, len(hourly))
	for _, h := range hourly {
		rows = append(rows, []string{strconv.Itoa(h.Hour), h.Category, strconv.Itoa(h.Count)})
	}
	return writeCSV(w, []string{"hour", "category", "count"}, rows)
}

// WriteTopMessagesCSV writes the ranking. Categories are joined with "|".
func WriteTopMessagesCSV(w io.Writer, top []metrics.TopMessage) error {
	rows := make([][]string, 0, len(top))
	for _, m := range top {
		rows = append(rows, []string{
			m.MessageKey,
			strconv.Itoa(m.Count),
			m.FirstSeen.UTC().Format(record.TimeLayout),
			m.LastSeen.UTC().Format(record.TimeLayout),
			strings.Join(m.Categories, "|"),
		})
	}
	return writeCSV(w, []string{"message_key", "count", "first_seen", "last_seen", "categories"}, rows)
}

// WriteCoOccurrenceCSV writes the square matrix with category labels on
// both axes.
func WriteCoOccurrenceCSV(w io.Writer, m *metrics.CoOccurrence) error {
	if m == nil {
		m = &metrics.CoOccurrence{}
	}
	header := append([]string{"category"}, m.Categories...)
	rows := make([][]string, 0, len(m.Categories))
	for _, c := range m.Categories {
		row := make([]string, 0, len(m.Categories)+1)
		row = append(row, c)
		for _, other := range m.Categories {
			row = append(row, strconv.Itoa(m.Get(c, other)))
		}
		rows = append(rows, row)
	}
	return writeCSV(w, header, rows)
}

// WriteHealthCSV writes date,health_score,state rows.
func WriteHealthCSV(w io.Writer, health []metrics.HealthScore) error {
	rows := make([][]string, 0, len(health))
	for _, h := range health {
		rows = append(rows, []string{h.Date, FormatScore(h.Score), h.State})
	}
	return writeCSV(w, []string{"date", "health_score", "state"}, rows)
}

// WriteSummaryCSV writes metric,value rows for the window summary.
func WriteSummaryCSV(w io.Writer, ws *metrics.WindowSummary) error {
	var rows [][]string
	if ws != nil {
		for _, m := range ws.Metrics {
			rows = append(rows, []string{m.Name, strconv.Itoa(m.Value)})
		}
	}
	return writeCSV(w, []string{"metric", "value"}, rows)
}

// FormatScore renders a score with up to four decimals.
func FormatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', 4, 64)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	return nil
}
