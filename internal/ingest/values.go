package ingest

import (
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order when parsing raw date strings. ISO forms
// first, then the day-first forms seen in Colombian government exports.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006",
}

// ParseTimestamp parses a raw date string against the known layouts.
func ParseTimestamp(s string) (time.Time, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, t); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// InferValue maps a raw text cell to a typed value: empty → nil, integer
// text → int64, numeric text → float64, anything else stays the original
// string. Dates stay strings; the datetime transform stage owns parsing.
func InferValue(s string) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return f
	}
	return s
}

// AsFloat coerces a typed cell to float64. Numeric strings count; comma
// decimal separators do not (that cleaning is victims-specific).
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
