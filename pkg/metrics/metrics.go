// Package metrics computes the aggregate tables and the daily health score
// from an ingested record set.
package metrics

import (
	"fmt"

	"github.com/ccollicutt/journalhealth/pkg/config"
	"github.com/ccollicutt/journalhealth/pkg/record"
)

// Options controls aggregation.
type Options struct {
	// TopK limits the top-message ranking. Zero or negative keeps all groups.
	TopK int

	// WindowDays is the summary window length. Must be at least 1.
	WindowDays int

	// Summary lists the named window counts.
	Summary []config.SummaryMetricConfig

	Weights config.Weights
}

// OptionsFromConfig builds aggregation options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TopK:       cfg.TopK,
		WindowDays: cfg.WindowDays,
		Summary:    cfg.SummaryMetrics,
		Weights:    cfg.Weights,
	}
}

// Tables holds every view derived from one record set.
type Tables struct {
	Daily        []DailyCount   `json:"daily"`
	Hourly       []HourlyCount  `json:"hourly"`
	TopMessages  []TopMessage   `json:"top_messages"`
	CoOccurrence *CoOccurrence  `json:"co_occurrence"`
	Window       *WindowSummary `json:"window"`
	Health       []HealthScore  `json:"health"`
}

// Aggregate computes all tables. Either every table is returned or an error;
// a record with an unparseable date fails the whole aggregation.
func Aggregate(records []record.LogRecord, opts Options) (*Tables, error) {
	for i := range records {
		if _, err := records[i].ParseDate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	window, err := Window(records, opts.WindowDays, opts.Summary)
	if err != nil {
		return nil, err
	}

	daily := DailyCounts(records)
	return &Tables{
		Daily:        daily,
		Hourly:       HourlyCounts(records),
		TopMessages:  TopMessages(records, opts.TopK),
		CoOccurrence: CoOccurrenceByHour(records),
		Window:       window,
		Health:       HealthScores(daily, opts.Weights),
	}, nil
}

// LowestScore returns the worst daily score, and false for an empty series.
func (t *Tables) LowestScore() (HealthScore, bool) {
	if len(t.Health) == 0 {
		return HealthScore{}, false
	}
	low := t.Health[0]
	for _, h := range t.Health[1:] {
		if h.Score < low.Score {
			low = h
		}
	}
	return low, true
}
