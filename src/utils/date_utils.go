package utils

import "time"

const (
	ISODateFormat     = "2006-01-02"
	EuropeanDateFormat = "02/01/2006"
)

// ParseFlexibleDate parses a date string, attempting ISO (2006-01-02,
// optionally with a time component) first and falling back to DD/MM/YYYY.
// The boolean result reports whether any layout matched.
func ParseFlexibleDate(dateStr string) (time.Time, bool) {
	if dateStr == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, dateStr); err == nil {
		return t, true
	}
	if t, err := time.Parse(ISODateFormat, dateStr); err == nil {
		return t, true
	}
	if t, err := time.Parse(EuropeanDateFormat, dateStr); err == nil {
		return t, true
	}
	return time.Time{}, false
}
