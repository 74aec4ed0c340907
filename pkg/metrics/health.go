package metrics

import (
	"math"

	"github.com/ccollicutt/journalhealth/pkg/config"
)

// Health states derived from a score.
const (
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateCritical = "critical"
)

// Thresholds that map a score to a health state.
const (
	ThresholdHealthy  = 85.0
	ThresholdDegraded = 60.0
)

// HealthScore is the score for one UTC date.
type HealthScore struct {
	Date  string  `json:"date"`
	Score float64 `json:"health_score"`
	State string  `json:"state"`
}

// HealthScores computes one score per date present in daily:
//
//	score = clamp(100 - Σ weight·ln(1+count), 0, 100)
//
// Categories without a weight deduct nothing. The result keeps the date
// order of daily; empty input gives an empty series.
func HealthScores(daily []DailyCount, weights config.Weights) []HealthScore {
	var (
		order     []string
		deduction = make(map[string]float64)
	)
	for _, row := range daily {
		if _, ok := deduction[row.Date]; !ok {
			order = append(order, row.Date)
			deduction[row.Date] = 0
		}
		if w := weights[row.Category]; w > 0 && row.Count > 0 {
			deduction[row.Date] += w * math.Log1p(float64(row.Count))
		}
	}

	scores := make([]HealthScore, 0, len(order))
	for _, date := range order {
		s := Score(deduction[date])
		scores = append(scores, HealthScore{Date: date, Score: s, State: StateFromScore(s)})
	}
	return scores
}

// Score converts a deduction into a score in [0, 100].
func Score(deduction float64) float64 {
	return clamp(100-deduction, 0, 100)
}

// StateFromScore maps a numeric score to a named health state.
func StateFromScore(score float64) string {
	switch {
	case score >= ThresholdHealthy:
		return StateHealthy
	case score >= ThresholdDegraded:
		return StateDegraded
	default:
		return StateCritical
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
