package state

import (
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// TimestampLayout is the single textual form timestamps take inside state.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var parseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeTimestamp converts the timestamp shapes that reach state
// (time.Time, *time.Time, *timestamppb.Timestamp, unix millis, or text)
// into TimestampLayout in UTC. ok is false for nil, zero, and unparseable
// values.
func NormalizeTimestamp(v any) (string, bool) {
	t, ok := toTime(v)
	if !ok || t.IsZero() {
		return "", false
	}
	return t.UTC().Format(TimestampLayout), true
}

func toTime(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return ts, true
	case *time.Time:
		if ts == nil {
			return time.Time{}, false
		}
		return *ts, true
	case *timestamppb.Timestamp:
		if ts == nil || !ts.IsValid() {
			return time.Time{}, false
		}
		return ts.AsTime(), true
	case int64:
		return time.UnixMilli(ts), true
	case int:
		return time.UnixMilli(int64(ts)), true
	case float64:
		return time.UnixMilli(int64(ts)), true
	case string:
		return parseText(ts)
	case *string:
		if ts == nil {
			return time.Time{}, false
		}
		return parseText(*ts)
	default:
		return time.Time{}, false
	}
}

func parseText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}
