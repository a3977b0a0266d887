package kql

import (
	"fmt"
	"strconv"
	"time"
)

// ParseTimespan parses a timespan literal of the form <number><unit>
// where unit is one of d, h, m, s. The number may carry a fractional
// part ("1.5h").
func ParseTimespan(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("cannot parse timespan %q", s)
	}
	unit := s[len(s)-1]
	var base time.Duration
	switch unit {
	case 'd':
		base = 24 * time.Hour
	case 'h':
		base = time.Hour
	case 'm':
		base = time.Minute
	case 's':
		base = time.Second
	default:
		return 0, fmt.Errorf("cannot parse timespan %q: unknown unit %q", s, string(unit))
	}
	n, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse timespan %q", s)
	}
	return time.Duration(n * float64(base)), nil
}
