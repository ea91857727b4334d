package domain

import (
	"strconv"
	"strings"
)

// DefaultIntervalMs is used for intervals that cannot be parsed.
const DefaultIntervalMs int64 = 60_000

// IntervalMs converts a kline interval such as "5m", "1h", "1d", "1w" or "1M"
// to milliseconds. A month counts as 30 days.
func IntervalMs(interval string) int64 {
	s := strings.TrimSpace(interval)
	if len(s) < 2 {
		return DefaultIntervalMs
	}
	n, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil || n <= 0 {
		return DefaultIntervalMs
	}
	var unit float64
	switch s[len(s)-1] {
	case 'm':
		unit = 60_000
	case 'h':
		unit = 3_600_000
	case 'd':
		unit = 86_400_000
	case 'w':
		unit = 7 * 86_400_000
	case 'M':
		unit = 30 * 86_400_000
	default:
		return DefaultIntervalMs
	}
	return int64(n * unit)
}

// ValidInterval reports whether interval is a parsable kline interval.
func ValidInterval(interval string) bool {
	s := strings.TrimSpace(interval)
	if len(s) < 2 || strings.IndexByte("mhdwM", s[len(s)-1]) < 0 {
		return false
	}
	n, err := strconv.ParseFloat(s[:len(s)-1], 64)
	return err == nil && n > 0
}
