package timeutil

import (
	"fmt"
	"time"
)

// WireFormat is the timestamp layout the Kimai API speaks, a fixed
// numeric offset without a colon (e.g. "2026-02-18T15:16:00+0300").
const WireFormat = "2006-01-02T15:04:05-0700"

// naiveFormat covers server responses that omit the offset entirely;
// such values are interpreted in the local timezone.
const naiveFormat = "2006-01-02T15:04:05"

// Parse attempts the accepted timestamp layouts in order: the wire
// format, RFC 3339 with a colon-separated offset, then the offset-less
// local form
func Parse(s string) (time.Time, error) {
	if t, err := time.Parse(WireFormat, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(naiveFormat, s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}

// FormatForWire renders a timestamp in the wire format using the
// caller's current local offset
func FormatForWire(t time.Time) string {
	return t.Local().Format(WireFormat)
}

// FormatElapsed renders an elapsed duration as "HH:MM:SS", floored at
// zero, with unbounded hours
func FormatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// FormatDuration renders a duration in whole seconds as "<H>h <M>m",
// dropping the hour part when zero
func FormatDuration(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// StartOfDay returns midnight of t's calendar day in t's location
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns midnight of the Monday starting t's ISO week
func StartOfWeek(t time.Time) time.Time {
	offset := int(t.Weekday())
	if offset == 0 {
		offset = 7
	}
	return StartOfDay(t.AddDate(0, 0, -offset+1))
}
