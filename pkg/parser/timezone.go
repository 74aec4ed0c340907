package parser

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// NaiveLayout is the timezone-less journal timestamp.
	NaiveLayout = "2006-01-02T15:04:05"

	// offsetLayout combines a naive timestamp with a "+0900" style offset.
	offsetLayout = NaiveLayout + "-0700"

	// maxFallbackHours bounds whole-hour offsets accepted by the fallback path.
	maxFallbackHours = 14
)

// ErrBadOffset is returned when neither conversion path can use an offset.
var ErrBadOffset = errors.New("unusable timezone offset")

// Normalizer converts naive journal timestamps plus offsets into UTC.
//
// When the default offset stands in for an unusable line offset, the local
// time it returns is in the default zone. Callers that keep the line's own
// offset string (record.LogRecord.TZOffset) will then hold an offset that
// differs from the local time's zone.
type Normalizer struct {
	// defaultTZ is consulted by the fallback path when the line's own
	// offset has no usable hour component.
	defaultTZ string
}

// NewNormalizer creates a Normalizer. defaultTZ may be empty.
func NewNormalizer(defaultTZ string) *Normalizer {
	return &Normalizer{defaultTZ: defaultTZ}
}

// Normalize returns the instant in UTC and in its original offset.
//
// The timestamp and offset are first parsed together. If that is rejected,
// the offset is read as whole hours, a fixed zone is built from it, and the
// naive timestamp is localized against that zone. Fractional-hour offsets
// lose their minutes on the fallback path.
func (n *Normalizer) Normalize(ts, tz string) (utc, local time.Time, err error) {
	local, err = time.Parse(offsetLayout, ts+tz)
	if err == nil {
		return local.UTC(), local, nil
	}

	local, fbErr := n.fallback(ts, tz)
	if fbErr != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("timestamp %q offset %q: %w (primary: %v)", ts, tz, fbErr, err)
	}
	return local.UTC(), local, nil
}

// fallback localizes ts against a fixed zone of whole hours.
func (n *Normalizer) fallback(ts, tz string) (time.Time, error) {
	hours, err := offsetHours(tz)
	if err != nil && n.defaultTZ != "" {
		hours, err = offsetHours(n.defaultTZ)
	}
	if err != nil {
		return time.Time{}, err
	}

	zone := time.FixedZone(fmt.Sprintf("UTC%+03d", hours), hours*3600)
	local, err := time.ParseInLocation(NaiveLayout, ts, zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing naive timestamp: %w", err)
	}
	return local, nil
}

// offsetHours reads the signed hour part ("+09" of "+0900").
func offsetHours(tz string) (int, error) {
	if len(tz) < 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadOffset, tz)
	}
	h, err := strconv.Atoi(tz[:3])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadOffset, tz)
	}
	if h < -maxFallbackHours || h > maxFallbackHours {
		return 0, fmt.Errorf("%w: %q out of range", ErrBadOffset, tz)
	}
	return h, nil
}
