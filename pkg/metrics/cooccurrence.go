package metrics

import (
	"sort"

	"github.com/ccollicutt/journalhealth/pkg/record"
)

// CoOccurrence counts, for each pair of categories, the number of UTC
// date-hour buckets in which both appear. The matrix is symmetric and the
// diagonal holds the number of buckets containing each category.
type CoOccurrence struct {
	// Categories are sorted and index both matrix axes.
	Categories []string `json:"categories"`
	Counts     [][]int  `json:"counts"`

	// Buckets is the number of distinct date-hour buckets seen.
	Buckets int `json:"buckets"`
}

// CoOccurrenceByHour builds the co-occurrence matrix over date-hour buckets.
func CoOccurrenceByHour(records []record.LogRecord) *CoOccurrence {
	type bucket struct {
		date string
		hour int
	}
	presence := make(map[bucket]map[string]bool)
	catSet := make(map[string]bool)
	for i := range records {
		b := bucket{records[i].Date, records[i].Hour}
		if presence[b] == nil {
			presence[b] = make(map[string]bool)
		}
		presence[b][records[i].Category] = true
		catSet[records[i].Category] = true
	}

	cats := make([]string, 0, len(catSet))
	for c := range catSet {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	pos := make(map[string]int, len(cats))
	for i, c := range cats {
		pos[c] = i
	}

	counts := make([][]int, len(cats))
	for i := range counts {
		counts[i] = make([]int, len(cats))
	}

	present := make([]int, 0, len(cats))
	for _, set := range presence {
		present = present[:0]
		for c := range set {
			present = append(present, pos[c])
		}
		for _, a := range present {
			for _, b := range present {
				counts[a][b]++
			}
		}
	}

	return &CoOccurrence{Categories: cats, Counts: counts, Buckets: len(presence)}
}

// Get returns the number of buckets containing both a and b.
func (m *CoOccurrence) Get(a, b string) int {
	i, j := -1, -1
	for k, c := range m.Categories {
		if c == a {
			i = k
		}
		if c == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return 0
	}
	return m.Counts[i][j]
}
