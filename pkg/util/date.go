package util

import (
	"strconv"
	"time"
)

// unix timestamps above this are taken as milliseconds
const millisThreshold = 1e11

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds or milliseconds.
// The result is always UTC. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return FromUnix(ts), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// FromUnix converts a unix timestamp in seconds or milliseconds to UTC.
func FromUnix(ts int64) time.Time {
	if ts > millisThreshold {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

// FromUnixMillisFloat converts a JSON number of epoch milliseconds to UTC.
func FromUnixMillisFloat(ms float64) time.Time {
	return time.UnixMilli(int64(ms)).UTC()
}
