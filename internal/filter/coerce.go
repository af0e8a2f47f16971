package filter

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

var dayFirstPattern = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})(?:\s+(\d{1,2})(?::(\d{2}))?)?$`)

func coerce(col ColumnType, op Operator, value string, loc *time.Location) (Predicate, error) {
	switch col.Family {
	case FamilyNumeric:
		if !op.isComparison() {
			return nil, operatorError(op, col.Family)
		}
		number, err := ParseNumber(value)
		if err != nil {
			return nil, err
		}
		return NumericFilter{Column: col.Name, Op: op, Value: number}, nil
	case FamilyBoolean:
		if op != OpEq {
			return nil, operatorError(op, col.Family)
		}
		b, err := ParseBool(value)
		if err != nil {
			return nil, err
		}
		return BooleanFilter{Column: col.Name, Value: b}, nil
	case FamilyIdentifier:
		if op != OpEq {
			return nil, operatorError(op, col.Family)
		}
		return IdentifierFilter{Column: col.Name, Value: value}, nil
	case FamilyTemporal:
		if !op.isComparison() {
			return nil, operatorError(op, col.Family)
		}
		at, err := ParseTime(value, loc)
		if err != nil {
			return nil, err
		}
		return TemporalFilter{Column: col.Name, Op: op, At: at}, nil
	default:
		negate := op == OpNotEq || op == OpNotEqAlt
		return TextFilter{Column: col.Name, Negate: negate, Pattern: "%" + value + "%"}, nil
	}
}

func operatorError(op Operator, family Family) error {
	return fmt.Errorf("%w: %q is not allowed on %s columns", ErrInvalidOperatorForType, string(op), family)
}

// ParseNumber returns an int64 for integral input and a finite float64
// otherwise. Integral input outside the int64 range is returned as its
// decimal text so no digits are lost.
func ParseNumber(value string) (any, error) {
	value = strings.TrimSpace(value)
	i, err := strconv.ParseInt(value, 10, 64)
	if err == nil {
		return i, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return value, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w %q", ErrInvalidNumericValue, value)
	}
	return f, nil
}

func ParseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w %q", ErrInvalidBooleanValue, value)
	}
}

// ParseTime accepts ISO-8601 style input first and falls back to
// DD/MM/YYYY[ H[:MM]]. Input without an explicit offset is read in loc
// (UTC when nil).
func ParseTime(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimSpace(value)
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	if t, ok := parseDayFirst(value, loc); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w %q", ErrInvalidDateValue, value)
}

func parseDayFirst(value string, loc *time.Location) (time.Time, bool) {
	m := dayFirstPattern.FindStringSubmatch(value)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, minute := 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
	}
	if m[5] != "" {
		minute, _ = strconv.Atoi(m[5])
	}
	if hour > 23 || minute > 59 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	// time.Date normalizes 31/02 into March; treat that as invalid input.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// FormatTime renders t as a UTC ISO-8601 string with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
