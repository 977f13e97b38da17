// Package attime parses the time expressions accepted by the events query API.
//
// Supported forms, evaluated against a reference time:
//
//	now, now-1d, -2h, +30min, -1d-12h     relative offsets
//	1700000000                            epoch seconds
//	20240131, 2024-01-31                  calendar dates (midnight)
//	14:30_20240131                        clock time on a date
//	yesterday, 3 days ago, March 3 2024   free text via go-dateparser
package attime

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

var ErrInvalidExpression = errors.New("invalid time expression")

var offsetPattern = regexp.MustCompile(`^([+-])(\d+)([a-z]+)`)

// Parse evaluates expr relative to ref. Absolute dates without a zone are
// interpreted in ref's location.
func Parse(expr string, ref time.Time) (time.Time, error) {
	value := strings.ToLower(strings.TrimSpace(expr))
	if value == "" {
		return time.Time{}, ErrInvalidExpression
	}

	loc := ref.Location()

	if value == "now" {
		return ref, nil
	}
	if rest, ok := strings.CutPrefix(value, "now"); ok {
		return applyOffsets(ref, rest, expr)
	}
	if value[0] == '-' || value[0] == '+' {
		return applyOffsets(ref, value, expr)
	}

	if isDigits(value) {
		if len(value) == 8 {
			if t, err := time.ParseInLocation("20060102", value, loc); err == nil && t.Year() > 1900 {
				return t, nil
			}
		}
		secs, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpression, expr)
		}
		return time.Unix(secs, 0).In(loc), nil
	}

	if t, err := time.ParseInLocation("15:04_20060102", value, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(expr)); err == nil {
		return t, nil
	}

	parsed, err := dps.Parse(&dps.Configuration{
		CurrentTime:     ref,
		DefaultTimezone: loc,
	}, strings.TrimSpace(expr))
	if err != nil || parsed.Time.IsZero() {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpression, expr)
	}
	return parsed.Time, nil
}

// Offsets resolving outside years 1 through 9999 are rejected.
const (
	minYear = 1
	maxYear = 9999
	maxDays = 3652059
)

func applyOffsets(ref time.Time, rest string, expr string) (time.Time, error) {
	if rest == "" {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpression, expr)
	}

	result := ref
	for rest != "" {
		match := offsetPattern.FindStringSubmatch(rest)
		if match == nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpression, expr)
		}
		amount, err := strconv.ParseInt(match[2], 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpression, expr)
		}
		sign := int64(1)
		if match[1] == "-" {
			sign = -1
		}

		if days, ok := unitDays(match[3]); ok {
			if amount > maxDays/days {
				return time.Time{}, fmt.Errorf("%w: offset out of range %q", ErrInvalidExpression, expr)
			}
			result = result.AddDate(0, 0, int(sign*amount*days))
		} else if unit, ok := unitDuration(match[3]); ok {
			if amount > math.MaxInt64/int64(unit) {
				return time.Time{}, fmt.Errorf("%w: offset out of range %q", ErrInvalidExpression, expr)
			}
			result = result.Add(time.Duration(sign * amount * int64(unit)))
		} else {
			return time.Time{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidExpression, match[3])
		}
		if year := result.Year(); year < minYear || year > maxYear {
			return time.Time{}, fmt.Errorf("%w: offset out of range %q", ErrInvalidExpression, expr)
		}
		rest = rest[len(match[0]):]
	}
	return result, nil
}

// unitDays covers the calendar units, applied as whole days.
func unitDays(unit string) (int64, bool) {
	switch unit {
	case "d", "day", "days":
		return 1, true
	case "w", "week", "weeks":
		return 7, true
	case "mon", "month", "months":
		return 30, true
	case "y", "year", "years":
		return 365, true
	}
	return 0, false
}

func unitDuration(unit string) (time.Duration, bool) {
	switch unit {
	case "s", "sec", "secs", "second", "seconds":
		return time.Second, true
	case "min", "mins", "minute", "minutes":
		return time.Minute, true
	case "h", "hour", "hours":
		return time.Hour, true
	}
	return 0, false
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}
