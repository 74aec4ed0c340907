package metrics

import (
	"sort"

	"github.com/ccollicutt/journalhealth/pkg/record"
)

// DailyCount is the number of records of one category on one UTC date.
type DailyCount struct {
	Date     string `json:"date"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// HourlyCount is the number of records of one category in one UTC hour of
// day, summed across dates.
type HourlyCount struct {
	Hour     int    `json:"hour"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// DailyCounts groups records by (date, category), sorted by date then category.
// Each record counts once regardless of RepeatCount.
func DailyCounts(records []record.LogRecord) []DailyCount {
	type key struct{ date, category string }
	counts := make(map[key]int)
	for i := range records {
		counts[key{records[i].Date, records[i].Category}]++
	}

	rows := make([]DailyCount, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, DailyCount{Date: k.date, Category: k.category, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}

// HourlyCounts groups records by (hour, category), sorted by hour then category.
func HourlyCounts(records []record.LogRecord) []HourlyCount {
	type key struct {
		hour     int
		category string
	}
	counts := make(map[key]int)
	for i := range records {
		counts[key{records[i].Hour, records[i].Category}]++
	}

	rows := make([]HourlyCount, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, HourlyCount{Hour: k.hour, Category: k.category, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Hour != rows[j].Hour {
			return rows[i].Hour < rows[j].Hour
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}
