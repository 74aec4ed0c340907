package ingest

import "strings"

// BootTracker counts boot-marker lines. The counter starts at 0 and never
// resets within a run.
type BootTracker struct {
	marker string
	seq    int
}

// NewBootTracker creates a tracker that recognizes lines containing marker.
func NewBootTracker(marker string) *BootTracker {
	return &BootTracker{marker: marker}
}

// Observe reports whether line is a boot marker, advancing the session
// counter when it is.
func (b *BootTracker) Observe(line string) bool {
	if b.marker == "" || !strings.Contains(line, b.marker) {
		return false
	}
	b.seq++
	return true
}

// Current returns the session number assigned to records seen now.
func (b *BootTracker) Current() int {
	return b.seq
}
