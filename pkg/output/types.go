// Package output renders run reports and writes the record and metric sinks.
package output

import (
	"time"

	"github.com/ccollicutt/journalhealth/pkg/ingest"
	"github.com/ccollicutt/journalhealth/pkg/metrics"
)

// Report is the complete output of one run.
type Report struct {
	// Summary provides the headline numbers.
	Summary Summary `json:"summary"`

	// Ingest is nil when records were loaded from a previous parse.
	Ingest *ingest.Stats `json:"ingest,omitempty"`

	Tables *metrics.Tables `json:"tables"`

	Metadata Metadata `json:"metadata"`
}

// Summary provides headline statistics.
type Summary struct {
	Records int `json:"records"`

	// Events is the sum of repeat counts, i.e. raw lines behind the records.
	Events int `json:"events"`

	Days int `json:"days"`

	// LowestScore and LowestDate identify the worst day.
	LowestScore float64 `json:"lowest_score"`
	LowestDate  string  `json:"lowest_date,omitempty"`
	State       string  `json:"state"`

	// AlertBelow is the threshold; DaysBelow counts days scoring under it.
	AlertBelow float64 `json:"alert_below"`
	DaysBelow  int     `json:"days_below"`
}

// Metadata provides context about the run.
type Metadata struct {
	// RunID uniquely identifies the run across sinks.
	RunID string `json:"run_id"`

	// ConfigFile is the rules file used; ConfigDefaulted is true when it was
	// missing and the built-in rules applied.
	ConfigFile      string `json:"config_file"`
	ConfigDefaulted bool   `json:"config_defaulted,omitempty"`

	// Sources lists the inputs that were read.
	Sources []string `json:"sources"`

	AnalyzedAt time.Time     `json:"analyzed_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// NewReport builds a report from aggregated tables. stats may be nil.
func NewReport(tables *metrics.Tables, stats *ingest.Stats, events int, alertBelow float64, meta Metadata) *Report {
	r := &Report{
		Tables:   tables,
		Ingest:   stats,
		Metadata: meta,
		Summary: Summary{
			Events:      events,
			Days:        len(tables.Health),
			LowestScore: 100,
			State:       metrics.StateHealthy,
			AlertBelow:  alertBelow,
		},
	}

	for _, d := range tables.Daily {
		r.Summary.Records += d.Count
	}

	if low, ok := tables.LowestScore(); ok {
		r.Summary.LowestScore = low.Score
		r.Summary.LowestDate = low.Date
		r.Summary.State = low.State
	}
	for _, h := range tables.Health {
		if h.Score < alertBelow {
			r.Summary.DaysBelow++
		}
	}

	return r
}

// HasIssues returns true if any day scored below the alert threshold.
func (r *Report) HasIssues() bool {
	return r.Summary.DaysBelow > 0
}
