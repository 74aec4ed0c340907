package ingest

import (
	"time"

	"github.com/ccollicutt/journalhealth/pkg/record"
)

// Deduplicator merges runs of consecutive duplicate records. Two records are
// duplicates when they share the UTC second, the unit and the message key.
// The first record of a run is kept and its RepeatCount carries the run length.
type Deduplicator struct {
	pending *record.LogRecord
	repeat  int
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Push offers the next record. When it ends the pending run, the finished
// record is returned with ok true.
func (d *Deduplicator) Push(rec record.LogRecord) (flushed record.LogRecord, ok bool) {
	if d.pending != nil && sameEvent(d.pending, &rec) {
		d.repeat++
		return record.LogRecord{}, false
	}

	flushed, ok = d.Flush()
	d.pending = &rec
	d.repeat = 1
	return flushed, ok
}

// Flush emits the pending record, if any, and empties the slot.
func (d *Deduplicator) Flush() (record.LogRecord, bool) {
	if d.pending == nil {
		return record.LogRecord{}, false
	}
	out := *d.pending
	out.RepeatCount = d.repeat
	d.pending = nil
	d.repeat = 0
	return out, true
}

func sameEvent(a, b *record.LogRecord) bool {
	return a.TSUTC.Truncate(time.Second).Equal(b.TSUTC.Truncate(time.Second)) &&
		a.Unit == b.Unit &&
		a.MessageKey() == b.MessageKey()
}
