package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/tablelens/tablelens/internal/auth"
	"github.com/tablelens/tablelens/internal/export"
	"github.com/tablelens/tablelens/internal/storage"
)

// ExportStore serves previously written exports back to callers.
type ExportStore interface {
	Open(ctx context.Context, key string) (export.Object, error)
	Delete(ctx context.Context, key string) error
}

func handleDownloadExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !exportsConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleExporter); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	obj, err := deps.Exports.Open(r.Context(), r.PathValue("key"))
	if err != nil {
		writeExportStoreError(r.Context(), w, err)
		return
	}
	defer func() { _ = obj.Body.Close() }()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if !obj.LastModified.IsZero() {
		w.Header().Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil && deps.Logger != nil {
		deps.Logger.WarnContext(r.Context(), "export download interrupted", "key", obj.Key, "error", err)
	}
}

func handleDeleteExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !exportsConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleExporter); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	if err := deps.Exports.Delete(r.Context(), r.PathValue("key")); err != nil {
		writeExportStoreError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func exportsConfigured(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Exports == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "export is not enabled", false, nil)
		return false
	}
	return true
}

func writeExportStoreError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidExportKey):
		writeError(ctx, w, http.StatusBadRequest, "INVALID_EXPORT_KEY", err.Error(), false, nil)
	case errors.Is(err, storage.ErrObjectNotFound):
		writeError(ctx, w, http.StatusNotFound, "EXPORT_NOT_FOUND", "export does not exist", false, nil)
	default:
		writeError(ctx, w, http.StatusBadGateway, "OBJECT_STORE_ERROR", "object store request failed", true, map[string]any{"details": err.Error()})
	}
}
