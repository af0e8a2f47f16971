package filter

import (
	"fmt"
	"time"
)

type Operator string

const (
	OpEq       Operator = "="
	OpLt       Operator = "<"
	OpLte      Operator = "<="
	OpGt       Operator = ">"
	OpGte      Operator = ">="
	OpNotEq    Operator = "!="
	OpNotEqAlt Operator = "<>"
)

func (o Operator) isComparison() bool {
	switch o {
	case OpEq, OpLt, OpLte, OpGt, OpGte:
		return true
	default:
		return false
	}
}

// Predicate is a coerced filter ready for emission. The set of
// implementations is closed: NumericFilter, BooleanFilter, TemporalFilter,
// IdentifierFilter and TextFilter.
type Predicate interface {
	ColumnName() string
	emit(b *binder) string
}

// NumericFilter holds an int64 when the input was integral, float64 otherwise.
type NumericFilter struct {
	Column string
	Op     Operator
	Value  any
}

type BooleanFilter struct {
	Column string
	Value  bool
}

// TemporalFilter compares against At. Equality is widened to the minute
// containing At, see Range.
type TemporalFilter struct {
	Column string
	Op     Operator
	At     time.Time
}

type IdentifierFilter struct {
	Column string
	Value  string
}

// TextFilter is a case-insensitive substring match. Pattern already carries
// the surrounding wildcards.
type TextFilter struct {
	Column  string
	Negate  bool
	Pattern string
}

func (f NumericFilter) ColumnName() string    { return f.Column }
func (f BooleanFilter) ColumnName() string    { return f.Column }
func (f TemporalFilter) ColumnName() string   { return f.Column }
func (f IdentifierFilter) ColumnName() string { return f.Column }
func (f TextFilter) ColumnName() string       { return f.Column }

func (f NumericFilter) emit(b *binder) string {
	return fmt.Sprintf("%s %s %s", QuoteIdent(f.Column), f.Op, b.bind(f.Value))
}

func (f BooleanFilter) emit(b *binder) string {
	return fmt.Sprintf("%s = %s", QuoteIdent(f.Column), b.bind(f.Value))
}

func (f IdentifierFilter) emit(b *binder) string {
	return fmt.Sprintf("%s = %s", QuoteIdent(f.Column), b.bind(f.Value))
}

func (f TextFilter) emit(b *binder) string {
	op := "ILIKE"
	if f.Negate {
		op = "NOT ILIKE"
	}
	return fmt.Sprintf("%s %s %s", QuoteIdent(f.Column), op, b.bind(f.Pattern))
}

func (f TemporalFilter) emit(b *binder) string {
	col := QuoteIdent(f.Column)
	if start, end, ok := f.Range(); ok {
		lower := b.bind(FormatTime(start))
		upper := b.bind(FormatTime(end))
		return fmt.Sprintf("(%s >= %s AND %s < %s)", col, lower, col, upper)
	}
	return fmt.Sprintf("%s %s %s", col, f.Op, b.bind(FormatTime(f.At)))
}

// Range reports the half-open minute interval an equality filter matches.
// ok is false for every other operator.
func (f TemporalFilter) Range() (start, end time.Time, ok bool) {
	if f.Op != OpEq {
		return time.Time{}, time.Time{}, false
	}
	start = f.At.Truncate(time.Minute)
	return start, start.Add(time.Minute), true
}

// binder hands out contiguous $n placeholders and records the bound values in
// the same order.
type binder struct {
	params []any
}

func (b *binder) bind(value any) string {
	b.params = append(b.params, value)
	return fmt.Sprintf("$%d", len(b.params))
}
