package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const DefaultRowCap = 500

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Request struct {
	Column   string
	Operator string
	Value    string
}

type Options struct {
	// RowCap bounds the statement with LIMIT. Zero or negative means DefaultRowCap.
	RowCap int
	// Location interprets temporal input that carries no offset. Nil means UTC.
	Location *time.Location
	// Columns restricts the projection. Empty selects every column.
	Columns []string
}

type Compiled struct {
	Predicates []Predicate
	Fragments  []string
	Params     []any
}

func (c Compiled) Where() string {
	return strings.Join(c.Fragments, " AND ")
}

type Statement struct {
	SQL     string
	Params  []any
	Columns []string
	Where   Compiled
	RowCap  int
}

func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Compile validates requests against columns and builds the bounded SELECT for
// table. Requests are processed in order and compilation stops at the first
// invalid one; validation failures are reported as *FilterError.
func Compile(table string, columns []ColumnType, requests []Request, opts Options) (Statement, error) {
	if !ValidIdentifier(table) {
		return Statement{}, &FilterError{Err: fmt.Errorf("table %q: %w", table, ErrInvalidIdentifier)}
	}
	selected, err := projection(columns, opts.Columns)
	if err != nil {
		return Statement{}, err
	}
	where, err := CompilePredicate(columns, requests, opts.Location)
	if err != nil {
		return Statement{}, err
	}

	rowCap := opts.RowCap
	if rowCap <= 0 {
		rowCap = DefaultRowCap
	}
	quoted := make([]string, 0, len(selected))
	for _, name := range selected {
		quoted = append(quoted, QuoteIdent(name))
	}
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(quoted...).
		From(QuoteIdent(table)).
		Limit(uint64(rowCap))
	if len(where.Fragments) > 0 {
		builder = builder.Where(where.Where(), where.Params...)
	}
	sqlText, params, err := builder.ToSql()
	if err != nil {
		return Statement{}, fmt.Errorf("build select for %q: %w", table, err)
	}
	return Statement{
		SQL:     sqlText,
		Params:  params,
		Columns: selected,
		Where:   where,
		RowCap:  rowCap,
	}, nil
}

// CompilePredicate turns requests into WHERE fragments and their positional
// parameters. Requests with a blank value are skipped.
func CompilePredicate(columns []ColumnType, requests []Request, loc *time.Location) (Compiled, error) {
	index := make(map[string]ColumnType, len(columns))
	for _, col := range columns {
		index[col.Name] = col
	}

	var (
		b   binder
		out Compiled
	)
	for _, req := range requests {
		if !ValidIdentifier(req.Column) {
			return Compiled{}, &FilterError{Column: req.Column, Err: ErrInvalidIdentifier}
		}
		col, ok := index[req.Column]
		if !ok {
			return Compiled{}, &FilterError{Column: req.Column, Err: ErrUnknownColumn}
		}
		value := strings.TrimSpace(req.Value)
		if value == "" {
			continue
		}
		pred, err := coerce(col, Operator(strings.TrimSpace(req.Operator)), value, loc)
		if err != nil {
			return Compiled{}, &FilterError{Column: req.Column, Err: err}
		}
		out.Predicates = append(out.Predicates, pred)
		out.Fragments = append(out.Fragments, pred.emit(&b))
	}
	out.Params = b.params
	return out, nil
}

func projection(columns []ColumnType, wanted []string) ([]string, error) {
	known := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		known[col.Name] = struct{}{}
	}
	keep := make(map[string]struct{}, len(wanted))
	for _, name := range wanted {
		if _, ok := known[name]; !ok {
			return nil, &FilterError{Column: name, Err: ErrUnknownColumn}
		}
		keep[name] = struct{}{}
	}

	selected := make([]string, 0, len(columns))
	for _, col := range columns {
		if len(keep) > 0 {
			if _, ok := keep[col.Name]; !ok {
				continue
			}
		}
		if !ValidIdentifier(col.Name) {
			return nil, &FilterError{Column: col.Name, Err: ErrInvalidIdentifier}
		}
		selected = append(selected, col.Name)
	}
	if len(selected) == 0 {
		return nil, &FilterError{Err: ErrNoColumns}
	}
	return selected, nil
}
