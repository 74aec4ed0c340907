package metrics

import (
	"sort"
	"time"

	"github.com/ccollicutt/journalhealth/pkg/record"
)

// TopMessage is one message-key group in the ranking.
type TopMessage struct {
	MessageKey string    `json:"message_key"`
	Count      int       `json:"count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`

	// Categories are the distinct categories in encounter order.
	Categories []string `json:"categories"`
}

// TopMessages groups records by message key and ranks groups by count,
// descending. Equal counts keep first-encounter order. k <= 0 keeps all.
func TopMessages(records []record.LogRecord, k int) []TopMessage {
	index := make(map[string]int)
	var groups []TopMessage

	for i := range records {
		r := &records[i]
		key := r.MessageKey()
		gi, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, TopMessage{
				MessageKey: key,
				Count:      1,
				FirstSeen:  r.TSUTC,
				LastSeen:   r.TSUTC,
				Categories: []string{r.Category},
			})
			continue
		}

		g := &groups[gi]
		g.Count++
		if r.TSUTC.Before(g.FirstSeen) {
			g.FirstSeen = r.TSUTC
		}
		if r.TSUTC.After(g.LastSeen) {
			g.LastSeen = r.TSUTC
		}
		if !contains(g.Categories, r.Category) {
			g.Categories = append(g.Categories, r.Category)
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})

	if k > 0 && len(groups) > k {
		groups = groups[:k]
	}
	return groups
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
