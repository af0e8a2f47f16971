package tablelensctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRunTablesCommand(t *testing.T) {
	var gotMethod, gotPath, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tables":["orders"]}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"-api-key", "k1",
		"tables",
	}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodGet || gotPath != "/v1/tables" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotAPIKey != "k1" {
		t.Fatalf("api key = %q", gotAPIKey)
	}
	if !strings.Contains(stdout.String(), `"orders"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunRowsCommandSendsFilters(t *testing.T) {
	var gotPath string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`{"rows":[]}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"rows", "events",
		"-c", "id,happened_at",
		"-f", "happened_at:>=:2024-03-01T10:15:00Z",
		"-f", "note::gift",
	}, Options{Stderr: &stderr})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotPath != "/v1/tables/events/rows" {
		t.Fatalf("path = %s", gotPath)
	}
	filters, _ := body["filters"].([]any)
	if len(filters) != 2 {
		t.Fatalf("filters = %#v", body["filters"])
	}
	first, _ := filters[0].(map[string]any)
	if first["column"] != "happened_at" || first["operator"] != ">=" || first["value"] != "2024-03-01T10:15:00Z" {
		t.Fatalf("first filter = %#v", first)
	}
	second, _ := filters[1].(map[string]any)
	if second["operator"] != "" || second["value"] != "gift" {
		t.Fatalf("second filter = %#v", second)
	}
	columns, _ := body["columns"].([]any)
	if len(columns) != 2 || columns[1] != "happened_at" {
		t.Fatalf("columns = %#v", body["columns"])
	}
}

func TestRunConnectAndDisconnect(t *testing.T) {
	var calls []string
	var dsn string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPost {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			dsn = body["dsn"]
			_, _ = w.Write([]byte(`{"connected":true}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if code := Run(context.Background(), []string{"-base-url", srv.URL, "connect", "duckdb:///tmp/app.db"}, Options{}); code != 0 {
		t.Fatalf("connect exit code = %d", code)
	}
	if code := Run(context.Background(), []string{"-base-url", srv.URL, "disconnect"}, Options{}); code != 0 {
		t.Fatalf("disconnect exit code = %d", code)
	}
	if dsn != "duckdb:///tmp/app.db" {
		t.Fatalf("dsn = %q", dsn)
	}
	if len(calls) != 2 || calls[0] != "POST /v1/connection" || calls[1] != "DELETE /v1/connection" {
		t.Fatalf("calls = %#v", calls)
	}
}

func TestRunExportCommand(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"export":{"export_id":"e1"}}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "export", "orders"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/tables/orders/export" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
}

func TestRunDownloadWritesRawBody(t *testing.T) {
	payload := []byte("PAR1\x00\x01binary")
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/vnd.apache.parquet")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	key := "exports/events/date=2026-03-04/0b4f2d1c-8c4e-4b8e-9a57-6f1f0f7c1a10.parquet"
	code := Run(context.Background(), []string{"-base-url", srv.URL, "download", key}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/exports/"+key {
		t.Fatalf("path = %s", gotPath)
	}
	if !bytes.Equal(stdout.Bytes(), payload) {
		t.Fatalf("stdout = %q", stdout.Bytes())
	}
}

func TestRunDeleteExportCommand(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "delete-export", "/exports/events/date=2026-03-04/a.parquet"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotMethod != http.MethodDelete || gotPath != "/v1/exports/exports/events/date=2026-03-04/a.parquet" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_code":"INVALID_FILTER"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "rows", "users", "-f", "active:=:yes"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "INVALID_FILTER") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	cases := [][]string{
		{"unknown"},
		{"columns"},
		{"connect"},
		{"rows"},
		{"rows", "users", "-f", "missing-parts"},
		{"download"},
		{"delete-export", "a", "b"},
	}
	for _, args := range cases {
		var stderr bytes.Buffer
		code := Run(context.Background(), args, Options{Stderr: &stderr})
		if code != 2 {
			t.Fatalf("%v: exit code = %d", args, code)
		}
		if stderr.Len() == 0 {
			t.Fatalf("%v: expected usage output", args)
		}
	}
}
