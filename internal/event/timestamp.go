package event

import (
	"strings"
	"time"
)

// DefaultTimestampLayouts is the ordered list of layouts tried when
// parsing upstream timestamps. The tracker emits offsets without a
// colon and with fractional seconds; the source-control API emits
// RFC 3339. First successful parse wins.
var DefaultTimestampLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses ts against the given layouts in order,
// falling back to DefaultTimestampLayouts when layouts is empty.
// It returns the zero time and false when no layout matches;
// callers degrade to a sentinel value instead of failing.
func ParseTimestamp(ts string, layouts ...string) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}

	if len(layouts) == 0 {
		layouts = DefaultTimestampLayouts
	}

	for _, layout := range layouts {
		parsed, err := time.Parse(layout, ts)
		if err == nil {
			return parsed, true
		}
	}

	return time.Time{}, false
}

// DateOf truncates a timestamp to its leading YYYY-MM-DD substring.
// This is a deliberate timezone-naive simplification: the calendar
// date is taken as written upstream, not normalized to any zone.
func DateOf(ts string) string {
	date, _, found := strings.Cut(ts, "T")
	if !found {
		return ts
	}

	return date
}

// MonthOf truncates a timestamp to its leading YYYY-MM substring.
func MonthOf(ts string) string {
	const monthLen = 7

	if len(ts) < monthLen {
		return ts
	}

	return ts[:monthLen]
}
