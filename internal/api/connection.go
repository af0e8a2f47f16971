package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tablelens/tablelens/internal/auth"
	"github.com/tablelens/tablelens/internal/observability"
	"github.com/tablelens/tablelens/internal/source"
)

type connectRequest struct {
	DSN string `json:"dsn"`
}

type connectionResponse struct {
	Connected   bool       `json:"connected"`
	Alive       bool       `json:"alive"`
	Driver      string     `json:"driver,omitempty"`
	DSN         string     `json:"dsn,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

func handleConnect(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Connections == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CONNECTIONS_NOT_CONFIGURED", "connection manager is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request connectRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid connection request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.DSN) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "DSN_REQUIRED", "dsn is required", false, nil)
		return
	}

	status, err := deps.Connections.Connect(r.Context(), request.DSN)
	if err != nil {
		if errors.Is(err, source.ErrInvalidDSN) || errors.Is(err, source.ErrUnsupportedScheme) {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DSN", err.Error(), false, nil)
			return
		}
		if deps.Logger != nil {
			deps.Logger.WarnContext(r.Context(), "connect failed",
				slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
				slog.String("dsn", source.Redact(request.DSN)),
				slog.String("error", err.Error()),
			)
		}
		writeError(r.Context(), w, http.StatusBadGateway, "CONNECT_FAILED", "failed to connect to source", true, map[string]any{"details": err.Error()})
		return
	}
	if deps.Logger != nil {
		deps.Logger.InfoContext(r.Context(), "source connected",
			slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
			slog.String("driver", status.Driver),
			slog.String("dsn", status.DSN),
		)
	}
	writeJSON(w, http.StatusOK, toConnectionResponse(status))
}

func handleConnectionStatus(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Connections == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CONNECTIONS_NOT_CONFIGURED", "connection manager is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, toConnectionResponse(deps.Connections.Status(r.Context())))
}

func handleDisconnect(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Connections == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CONNECTIONS_NOT_CONFIGURED", "connection manager is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	if err := deps.Connections.Disconnect(); err != nil {
		if errors.Is(err, source.ErrNotConnected) {
			writeError(r.Context(), w, http.StatusConflict, "NOT_CONNECTED", "no source is connected", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "DISCONNECT_FAILED", "failed to close source", true, map[string]any{"details": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toConnectionResponse(status source.Status) connectionResponse {
	response := connectionResponse{
		Connected: status.Connected,
		Alive:     status.Alive,
		Driver:    status.Driver,
		DSN:       status.DSN,
	}
	if !status.ConnectedAt.IsZero() {
		connectedAt := status.ConnectedAt
		response.ConnectedAt = &connectedAt
	}
	return response
}

func requireRole(r *http.Request, role string) error {
	return auth.RequireRole(r.Context(), role)
}
