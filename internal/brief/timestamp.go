package brief

import (
	"strconv"
	"strings"
	"time"
)

const displayLayout = "2006-01-02 15:04"

// parseTimestampMillis converts a raw CRM timestamp into epoch millis
// for sorting. Handles both the numeric millis form and ISO-8601.
// Absent or unparseable values map to 0, which sorts such records
// first. That bias is deliberate and observable in the document.
func parseTimestampMillis(ts string) int64 {
	if ts == "" {
		return 0
	}
	if isDigits(ts) {
		n, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	if !strings.Contains(ts, "T") {
		return 0
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UnixMilli()
	}
	// Zone-less ISO form, with any fractional seconds cut off.
	trimmed := strings.ReplaceAll(ts, "Z", "")
	if i := strings.Index(trimmed, "."); i >= 0 {
		trimmed = trimmed[:i]
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", trimmed, time.UTC)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// formatTimestamp renders a raw CRM timestamp for display. Numeric
// millis and ISO-8601 become "2006-01-02 15:04"; anything else passes
// through unchanged, and an empty value reads "Unknown date".
func formatTimestamp(ts string) string {
	if ts == "" {
		return "Unknown date"
	}
	if isDigits(ts) {
		n, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return ts
		}
		return time.UnixMilli(n).UTC().Format(displayLayout)
	}
	if strings.Contains(ts, "T") {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, ts); err == nil {
				return t.Format(displayLayout)
			}
		}
	}
	return ts
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
