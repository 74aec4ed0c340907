package metrics

import (
	"fmt"
	"strings"

	"github.com/ccollicutt/journalhealth/pkg/config"
	"github.com/ccollicutt/journalhealth/pkg/record"
)

// NamedCount is one named window metric.
type NamedCount struct {
	Name  string `json:"metric"`
	Value int    `json:"value"`
}

// WindowSummary holds named counts over the last Days dates ending at the
// latest record date, inclusive.
type WindowSummary struct {
	Start   string       `json:"start"`
	End     string       `json:"end"`
	Days    int          `json:"days"`
	Records int          `json:"records"`
	Metrics []NamedCount `json:"metrics"`
}

// Window computes the summary. days < 1 is an error. An empty record set
// yields a summary with zero counts and no dates.
func Window(records []record.LogRecord, days int, defs []config.SummaryMetricConfig) (*WindowSummary, error) {
	if days < 1 {
		return nil, fmt.Errorf("window days must be >= 1, got %d", days)
	}

	ws := &WindowSummary{Days: days, Metrics: make([]NamedCount, len(defs))}
	for i, d := range defs {
		ws.Metrics[i].Name = d.Name
	}
	if len(records) == 0 {
		return ws, nil
	}

	end, err := records[0].ParseDate()
	if err != nil {
		return nil, err
	}
	for i := range records[1:] {
		d, err := records[i+1].ParseDate()
		if err != nil {
			return nil, err
		}
		if d.After(end) {
			end = d
		}
	}
	start := end.AddDate(0, 0, -(days - 1))
	ws.Start = start.Format(record.DateLayout)
	ws.End = end.Format(record.DateLayout)

	for i := range records {
		r := &records[i]
		// ISO dates compare lexically.
		if r.Date < ws.Start {
			continue
		}
		ws.Records++
		for j, d := range defs {
			if matchesMetric(r, d) {
				ws.Metrics[j].Value++
			}
		}
	}
	return ws, nil
}

func matchesMetric(r *record.LogRecord, d config.SummaryMetricConfig) bool {
	if d.Category != "" && r.Category != d.Category {
		return false
	}
	if d.Contains != "" && !strings.Contains(r.Message, d.Contains) {
		return false
	}
	return true
}
