package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tablelens/tablelens/internal/filter"
	"github.com/tablelens/tablelens/internal/source"
)

// Dialect names the catalog schema browsed through information_schema.
// ClassifyAs, when set, rewrites a catalog type name before it is classified;
// the reported RawType stays as the catalog spells it.
type Dialect struct {
	Name       string
	Schema     string
	ClassifyAs func(rawType string) string
}

type Options struct {
	StatementTimeout time.Duration
}

// Source implements source.Source on top of a database/sql pool.
type Source struct {
	db      *sql.DB
	dialect Dialect
	opts    Options
}

func New(db *sql.DB, dialect Dialect, opts Options) *Source {
	return &Source{db: db, dialect: dialect, opts: opts}
}

func (s *Source) Dialect() Dialect {
	return s.dialect
}

func (s *Source) ListTables(ctx context.Context) ([]string, error) {
	query := `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_name ASC`

	rows, err := s.db.QueryContext(ctx, query, s.dialect.Schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}
	return tables, nil
}

func (s *Source) ColumnTypes(ctx context.Context, table string) ([]filter.ColumnType, error) {
	query := `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position ASC`

	rows, err := s.db.QueryContext(ctx, query, s.dialect.Schema, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]filter.ColumnType, 0)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		col := filter.NewColumnType(name, dataType)
		if s.dialect.ClassifyAs != nil {
			col.Family = filter.Classify(s.dialect.ClassifyAs(dataType))
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	if len(columns) == 0 {
		return nil, source.ErrTableNotFound
	}
	return columns, nil
}

func (s *Source) Execute(ctx context.Context, sqlText string, params []any) (source.Rows, error) {
	if s.opts.StatementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.StatementTimeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return source.Rows{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return source.Rows{}, fmt.Errorf("query columns: %w", err)
	}

	result := source.Rows{Columns: columns, Values: make([][]any, 0)}
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return source.Rows{}, fmt.Errorf("scan row: %w", err)
		}
		result.Values = append(result.Values, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return source.Rows{}, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

func (s *Source) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping %s: %w", s.dialect.Name, err)
	}
	return nil
}

func (s *Source) Close() error {
	return s.db.Close()
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		normalized[i] = normalizeValue(value)
	}
	return normalized
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case nil, bool, int64, float64, uint64, string:
		return typed
	case []byte:
		return string(typed)
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano)
	case int:
		return int64(typed)
	case int8:
		return int64(typed)
	case int16:
		return int64(typed)
	case int32:
		return int64(typed)
	case uint8:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint32:
		return int64(typed)
	case float32:
		return float64(typed)
	case [16]byte:
		return uuid.UUID(typed).String()
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}
