package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tablelens/tablelens/internal/config"
	"github.com/tablelens/tablelens/internal/explorer"
	"github.com/tablelens/tablelens/internal/observability"
	"github.com/tablelens/tablelens/internal/source"
)

type ReadinessCheck func(ctx context.Context) error

type ConnectionManager interface {
	Connect(ctx context.Context, dsn string) (source.Status, error)
	Disconnect() error
	Status(ctx context.Context) source.Status
}

type Browser interface {
	Tables(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, table string) ([]explorer.Column, error)
	Browse(ctx context.Context, request explorer.BrowseRequest) (explorer.BrowseResult, error)
	Export(ctx context.Context, request explorer.BrowseRequest) (explorer.ExportResult, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Connections       ConnectionManager
	Explorer          Browser
	Exports           ExportStore
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	routes := map[string]http.HandlerFunc{
		"POST /v1/connection": func(w http.ResponseWriter, r *http.Request) {
			handleConnect(deps, w, r)
		},
		"GET /v1/connection": func(w http.ResponseWriter, r *http.Request) {
			handleConnectionStatus(deps, w, r)
		},
		"DELETE /v1/connection": func(w http.ResponseWriter, r *http.Request) {
			handleDisconnect(deps, w, r)
		},
		"GET /v1/tables": func(w http.ResponseWriter, r *http.Request) {
			handleListTables(deps, w, r)
		},
		"GET /v1/tables/{table}/columns": func(w http.ResponseWriter, r *http.Request) {
			handleDescribeTable(deps, w, r)
		},
		"POST /v1/tables/{table}/rows": func(w http.ResponseWriter, r *http.Request) {
			handleBrowseRows(deps, w, r)
		},
		"POST /v1/tables/{table}/export": func(w http.ResponseWriter, r *http.Request) {
			handleExportRows(deps, w, r)
		},
		"GET /v1/exports/{key...}": func(w http.ResponseWriter, r *http.Request) {
			handleDownloadExport(deps, w, r)
		},
		"DELETE /v1/exports/{key...}": func(w http.ResponseWriter, r *http.Request) {
			handleDeleteExport(deps, w, r)
		},
	}

	protected := http.NewServeMux()
	for pattern, handler := range routes {
		protected.HandleFunc(pattern, handler)
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for pattern := range routes {
		mux.Handle(pattern, protectedHandler)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckSource fails readiness while the active source does not answer. With
// required unset, having no connection at all is still ready.
func CheckSource(manager ConnectionManager, required bool) ReadinessCheck {
	return func(ctx context.Context) error {
		status := manager.Status(ctx)
		if !status.Connected {
			if required {
				return errors.New("source is not connected")
			}
			return nil
		}
		if !status.Alive {
			return errors.New("source is not responding")
		}
		return nil
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.Export.Enabled {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
