// Package explorer runs the browse cycle against the active source: resolve
// column types, compile filters, execute the bounded statement.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tablelens/tablelens/internal/export"
	"github.com/tablelens/tablelens/internal/filter"
	"github.com/tablelens/tablelens/internal/observability"
	"github.com/tablelens/tablelens/internal/source"
)

var (
	ErrTableNotFound  = source.ErrTableNotFound
	ErrExportDisabled = errors.New("explorer: export is not configured")
)

// SourceProvider lends out the active source. release is called once the
// request no longer touches it.
type SourceProvider interface {
	Acquire() (src source.Source, release func(), err error)
}

type Exporter interface {
	Export(ctx context.Context, table string, columns []string, rows [][]any) (export.Result, error)
}

type Config struct {
	RowCap   int
	Location *time.Location
}

type Column struct {
	Name    string `json:"name"`
	RawType string `json:"data_type"`
	Family  string `json:"family"`
}

type BrowseRequest struct {
	Table   string
	Columns []string
	Filters []filter.Request
}

type BrowseResult struct {
	Table      string        `json:"table"`
	Columns    []Column      `json:"columns"`
	Rows       [][]any       `json:"rows"`
	SQL        string        `json:"sql"`
	ParamCount int           `json:"param_count"`
	RowCap     int           `json:"row_cap"`
	Truncated  bool          `json:"truncated"`
	Duration   time.Duration `json:"-"`
}

type ExportResult struct {
	Browse BrowseResult
	Export export.Result
}

type Service struct {
	sources  SourceProvider
	exporter Exporter
	logger   *slog.Logger
	rowCap   int
	location *time.Location
	now      func() time.Time
}

// NewService wires the browse cycle. exporter may be nil, in which case Export
// reports ErrExportDisabled.
func NewService(sources SourceProvider, exporter Exporter, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rowCap := cfg.RowCap
	if rowCap <= 0 {
		rowCap = filter.DefaultRowCap
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	return &Service{
		sources:  sources,
		exporter: exporter,
		logger:   logger,
		rowCap:   rowCap,
		location: location,
		now:      time.Now,
	}
}

func (s *Service) ExportEnabled() bool {
	return s.exporter != nil
}

func (s *Service) Tables(ctx context.Context) ([]string, error) {
	src, release, err := s.sources.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	tables, err := src.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

func (s *Service) Describe(ctx context.Context, table string) ([]Column, error) {
	src, release, err := s.sources.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	types, err := s.columnTypes(ctx, src, table)
	if err != nil {
		return nil, err
	}
	return describeColumns(types), nil
}

func (s *Service) Browse(ctx context.Context, request BrowseRequest) (BrowseResult, error) {
	src, release, err := s.sources.Acquire()
	if err != nil {
		return BrowseResult{}, err
	}
	defer release()
	types, err := s.columnTypes(ctx, src, request.Table)
	if err != nil {
		return BrowseResult{}, err
	}

	stmt, err := filter.Compile(request.Table, types, request.Filters, filter.Options{
		RowCap:   s.rowCap,
		Location: s.location,
		Columns:  request.Columns,
	})
	if err != nil {
		reason := filter.Reason(err)
		observability.ObserveCompilation(reason)
		var filterErr *filter.FilterError
		if errors.As(err, &filterErr) {
			s.logger.WarnContext(ctx, "filter_rejected",
				slog.String("trace_id", observability.TraceIDFromContext(ctx)),
				slog.String("table", request.Table),
				slog.String("column", filterErr.Column),
				slog.String("reason", reason),
			)
		}
		return BrowseResult{}, err
	}
	observability.ObserveCompilation("")
	s.logger.DebugContext(ctx, "filter_compiled",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("table", request.Table),
		slog.String("sql", stmt.SQL),
		slog.Int("params", len(stmt.Params)),
	)

	start := s.now()
	rows, err := src.Execute(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return BrowseResult{}, fmt.Errorf("browse %q: %w", request.Table, err)
	}
	elapsed := s.now().Sub(start)
	observability.ObserveBrowse(len(rows.Values), elapsed)

	selected := selectedColumns(types, stmt.Columns)
	numeric := make([]bool, len(selected))
	for i, col := range selected {
		numeric[i] = col.Family == filter.FamilyNumeric.String()
	}
	values := make([][]any, 0, len(rows.Values))
	for _, row := range rows.Values {
		values = append(values, numericAsNumbers(row, numeric))
	}

	s.logger.InfoContext(ctx, "browse",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("table", request.Table),
		slog.Int("filters", len(stmt.Where.Predicates)),
		slog.Int("rows", len(values)),
		slog.String("duration", elapsed.String()),
	)

	return BrowseResult{
		Table:      request.Table,
		Columns:    selected,
		Rows:       values,
		SQL:        stmt.SQL,
		ParamCount: len(stmt.Params),
		RowCap:     stmt.RowCap,
		Truncated:  len(values) >= stmt.RowCap,
		Duration:   elapsed,
	}, nil
}

// Export browses with the same request and writes the result set to the
// object store.
func (s *Service) Export(ctx context.Context, request BrowseRequest) (ExportResult, error) {
	if s.exporter == nil {
		return ExportResult{}, ErrExportDisabled
	}
	browse, err := s.Browse(ctx, request)
	if err != nil {
		return ExportResult{}, err
	}
	names := make([]string, 0, len(browse.Columns))
	for _, col := range browse.Columns {
		names = append(names, col.Name)
	}

	result, err := s.exporter.Export(ctx, request.Table, names, browse.Rows)
	observability.ObserveExport(err)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export %q: %w", request.Table, err)
	}
	s.logger.InfoContext(ctx, "export",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("table", request.Table),
		slog.String("object_key", result.ObjectKey),
		slog.Int64("records", result.RecordCount),
	)
	return ExportResult{Browse: browse, Export: result}, nil
}

func (s *Service) columnTypes(ctx context.Context, src source.Source, table string) ([]filter.ColumnType, error) {
	if !filter.ValidIdentifier(table) {
		return nil, &filter.FilterError{Err: fmt.Errorf("table %q: %w", table, filter.ErrInvalidIdentifier)}
	}
	types, err := src.ColumnTypes(ctx, table)
	if err != nil {
		if errors.Is(err, source.ErrTableNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrTableNotFound, table)
		}
		return nil, fmt.Errorf("describe %q: %w", table, err)
	}
	return types, nil
}

func describeColumns(types []filter.ColumnType) []Column {
	columns := make([]Column, 0, len(types))
	for _, col := range types {
		columns = append(columns, Column{Name: col.Name, RawType: col.RawType, Family: col.Family.String()})
	}
	return columns
}

func selectedColumns(types []filter.ColumnType, names []string) []Column {
	index := make(map[string]filter.ColumnType, len(types))
	for _, col := range types {
		index[col.Name] = col
	}
	selected := make([]filter.ColumnType, 0, len(names))
	for _, name := range names {
		selected = append(selected, index[name])
	}
	return describeColumns(selected)
}

// numericAsNumbers keeps exact decimal text (e.g. postgres numeric) from being
// rendered as a JSON string.
func numericAsNumbers(row []any, numeric []bool) []any {
	out := make([]any, len(row))
	for i, value := range row {
		out[i] = value
		if i >= len(numeric) || !numeric[i] {
			continue
		}
		text, ok := value.(string)
		if !ok {
			continue
		}
		text = strings.TrimSpace(text)
		if isJSONNumber(text) {
			out[i] = json.Number(text)
		}
	}
	return out
}

func isJSONNumber(text string) bool {
	if text == "" {
		return false
	}
	if c := text[0]; c != '-' && (c < '0' || c > '9') {
		return false
	}
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return false
	}
	return json.Valid([]byte(text))
}
