package timespec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// ParseInterval parses a cycle interval or TTL.
// Supports Go duration format ("20s", "1h30m") extended with day and week
// units: "7d", "1w", "1d12h". The result must be positive.
func ParseInterval(spec string) (time.Duration, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, fmt.Errorf("empty interval")
	}
	if strings.ContainsAny(spec, "+-") {
		return 0, fmt.Errorf("interval must be positive: %q", spec)
	}

	var total time.Duration
	rest := spec

	// Peel leading day/week components; the remainder goes to time.ParseDuration.
	for rest != "" {
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 0 || i == len(rest) {
			break
		}
		var unit time.Duration
		switch rest[i] {
		case 'd':
			unit = day
		case 'w':
			unit = week
		default:
			unit = 0
		}
		if unit == 0 {
			break
		}
		n, err := strconv.ParseInt(rest[:i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q: %w", spec, err)
		}
		total += time.Duration(n) * unit
		rest = rest[i+1:]
	}

	if rest != "" {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q (use a duration like '20s', '1h30m' or '7d')", spec)
		}
		total += d
	}

	if total <= 0 {
		return 0, fmt.Errorf("interval must be positive: %q", spec)
	}
	return total, nil
}

// FormatInterval renders a duration the way ParseInterval accepts it,
// preferring whole days: 168h becomes "7d", 36h becomes "1d12h0m0s".
func FormatInterval(d time.Duration) string {
	if d >= day {
		days := d / day
		rem := d % day
		if rem == 0 {
			return fmt.Sprintf("%dd", days)
		}
		return fmt.Sprintf("%dd%s", days, rem)
	}
	return d.String()
}

// Parse parses a point in time: either an RFC3339 timestamp or an interval
// meaning "that long before now". Used by the scores command's --active-since flag.
func Parse(spec string, now time.Time) (time.Time, error) {
	if spec == "" {
		return time.Time{}, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t, nil
	}

	if d, err := ParseInterval(spec); err == nil {
		return now.Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("invalid time specification: %s (use an interval like '1h30m' or '7d', or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}
