package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tablelens/tablelens/internal/auth"
	"github.com/tablelens/tablelens/internal/explorer"
	"github.com/tablelens/tablelens/internal/export"
	"github.com/tablelens/tablelens/internal/filter"
	"github.com/tablelens/tablelens/internal/source"
)

type browseRequest struct {
	Columns []string        `json:"columns"`
	Filters []filterRequest `json:"filters"`
}

type filterRequest struct {
	Column   string      `json:"column"`
	Operator string      `json:"operator"`
	Value    filterValue `json:"value"`
}

// filterValue accepts the raw text a user typed as well as JSON numbers and
// booleans; null is treated as an empty value.
type filterValue string

func (v *filterValue) UnmarshalJSON(data []byte) error {
	var raw any
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	switch typed := raw.(type) {
	case nil:
		*v = ""
	case string:
		*v = filterValue(typed)
	case json.Number:
		*v = filterValue(typed.String())
	case bool:
		*v = filterValue(strconv.FormatBool(typed))
	default:
		return fmt.Errorf("filter value must be a string, number or boolean")
	}
	return nil
}

type browseResponse struct {
	explorer.BrowseResult
	Stats map[string]any `json:"stats"`
}

type exportResponse struct {
	Export export.Result  `json:"export"`
	Stats  map[string]any `json:"stats"`
}

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !explorerConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	tables, err := deps.Explorer.Tables(r.Context())
	if err != nil {
		writeExplorerError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func handleDescribeTable(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !explorerConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	table := r.PathValue("table")
	columns, err := deps.Explorer.Describe(r.Context(), table)
	if err != nil {
		writeExplorerError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "columns": columns})
}

func handleBrowseRows(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !explorerConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	request, ok := decodeBrowseRequest(w, r)
	if !ok {
		return
	}
	result, err := deps.Explorer.Browse(r.Context(), request)
	if err != nil {
		writeExplorerError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, browseResponse{
		BrowseResult: result,
		Stats: map[string]any{
			"duration_ms": result.Duration.Milliseconds(),
			"row_count":   len(result.Rows),
		},
	})
}

func handleExportRows(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !explorerConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleExporter); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	request, ok := decodeBrowseRequest(w, r)
	if !ok {
		return
	}
	result, err := deps.Explorer.Export(r.Context(), request)
	if err != nil {
		writeExplorerError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exportResponse{
		Export: result.Export,
		Stats: map[string]any{
			"duration_ms": result.Browse.Duration.Milliseconds(),
			"row_count":   len(result.Browse.Rows),
			"truncated":   result.Browse.Truncated,
			"sql":         result.Browse.SQL,
		},
	})
}

func decodeBrowseRequest(w http.ResponseWriter, r *http.Request) (explorer.BrowseRequest, bool) {
	var body browseRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid browse request body", false, map[string]any{"details": err.Error()})
		return explorer.BrowseRequest{}, false
	}
	filters := make([]filter.Request, 0, len(body.Filters))
	for _, item := range body.Filters {
		filters = append(filters, filter.Request{
			Column:   item.Column,
			Operator: item.Operator,
			Value:    string(item.Value),
		})
	}
	return explorer.BrowseRequest{
		Table:   r.PathValue("table"),
		Columns: body.Columns,
		Filters: filters,
	}, true
}

func explorerConfigured(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Explorer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPLORER_NOT_CONFIGURED", "explorer dependency is not configured", false, nil)
		return false
	}
	return true
}

func writeExplorerError(ctx context.Context, w http.ResponseWriter, err error) {
	var filterErr *filter.FilterError
	switch {
	case errors.As(err, &filterErr):
		extra := map[string]any{"reason": filter.Reason(err)}
		if filterErr.Column != "" {
			extra["column"] = filterErr.Column
		}
		writeError(ctx, w, http.StatusBadRequest, "INVALID_FILTER", err.Error(), false, extra)
	case errors.Is(err, source.ErrNotConnected):
		writeError(ctx, w, http.StatusConflict, "NOT_CONNECTED", "no source is connected", false, nil)
	case errors.Is(err, explorer.ErrTableNotFound):
		writeError(ctx, w, http.StatusNotFound, "TABLE_NOT_FOUND", err.Error(), false, nil)
	case errors.Is(err, explorer.ErrExportDisabled):
		writeError(ctx, w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "export is not enabled", false, nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(ctx, w, http.StatusGatewayTimeout, "QUERY_TIMEOUT", "query exceeded the statement timeout", true, nil)
	default:
		writeError(ctx, w, http.StatusBadGateway, "SOURCE_ERROR", "source query failed", true, map[string]any{"details": err.Error()})
	}
}
