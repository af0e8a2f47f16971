package filter

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIdentifier      = errors.New("invalid identifier")
	ErrUnknownColumn          = errors.New("unknown column")
	ErrInvalidOperatorForType = errors.New("invalid operator for type")
	ErrInvalidNumericValue    = errors.New("invalid numeric value")
	ErrInvalidBooleanValue    = errors.New("invalid boolean value")
	ErrInvalidDateValue       = errors.New("invalid date value")
	ErrNoColumns              = errors.New("no selectable columns")
)

// FilterError attributes a compilation failure to the column that caused it.
// Column is empty when the failure concerns the table itself.
type FilterError struct {
	Column string
	Err    error
}

func (e *FilterError) Error() string {
	if e.Column == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("filter on column %q: %v", e.Column, e.Err)
}

func (e *FilterError) Unwrap() error {
	return e.Err
}

// Reason returns a stable snake_case label for err, suitable for metrics and
// API error context.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidIdentifier):
		return "invalid_identifier"
	case errors.Is(err, ErrUnknownColumn):
		return "unknown_column"
	case errors.Is(err, ErrInvalidOperatorForType):
		return "invalid_operator_for_type"
	case errors.Is(err, ErrInvalidNumericValue):
		return "invalid_numeric_value"
	case errors.Is(err, ErrInvalidBooleanValue):
		return "invalid_boolean_value"
	case errors.Is(err, ErrInvalidDateValue):
		return "invalid_date_value"
	case errors.Is(err, ErrNoColumns):
		return "no_columns"
	default:
		return "unknown"
	}
}
