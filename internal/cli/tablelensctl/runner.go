package tablelensctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type filterArg struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type filterList []filterArg

func (l *filterList) String() string {
	parts := make([]string, 0, len(*l))
	for _, f := range *l {
		parts = append(parts, f.Column+":"+f.Operator+":"+f.Value)
	}
	return strings.Join(parts, ",")
}

// Set parses column:operator:value. The value keeps any further colons.
func (l *filterList) Set(raw string) error {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 || strings.TrimSpace(parts[0]) == "" {
		return fmt.Errorf("filter %q must look like column:operator:value", raw)
	}
	*l = append(*l, filterArg{Column: strings.TrimSpace(parts[0]), Operator: strings.TrimSpace(parts[1]), Value: parts[2]})
	return nil
}

type columnList []string

func (l *columnList) String() string { return strings.Join(*l, ",") }

func (l *columnList) Set(raw string) error {
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*l = append(*l, name)
		}
	}
	return nil
}

type request struct {
	method string
	path   string
	body   any
	// raw responses are copied to stdout untouched.
	raw bool
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("tablelensctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "tablelens API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 10*time.Second), "HTTP timeout (e.g. 10s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	req, err := buildRequest(command, fs.Args()[1:], stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req, endpoint, *apiKey)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if req.raw {
		if _, err := stdout.Write(responseBody); err != nil {
			_, _ = fmt.Fprintf(stderr, "write output: %v\n", err)
			return 1
		}
		return 0
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(command string, args []string, stderr io.Writer) (request, error) {
	switch command {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "status":
		return request{method: http.MethodGet, path: "/v1/connection"}, nil
	case "disconnect":
		return request{method: http.MethodDelete, path: "/v1/connection"}, nil
	case "tables":
		return request{method: http.MethodGet, path: "/v1/tables"}, nil
	case "connect":
		if len(args) != 1 {
			return request{}, fmt.Errorf("connect needs exactly one connection string")
		}
		return request{method: http.MethodPost, path: "/v1/connection", body: map[string]string{"dsn": args[0]}}, nil
	case "columns":
		if len(args) != 1 {
			return request{}, fmt.Errorf("columns needs exactly one table name")
		}
		return request{method: http.MethodGet, path: "/v1/tables/" + url.PathEscape(args[0]) + "/columns"}, nil
	case "rows", "export":
		return buildBrowseRequest(command, args, stderr)
	case "download", "delete-export":
		if len(args) != 1 {
			return request{}, fmt.Errorf("%s needs exactly one export key", command)
		}
		path := "/v1/exports/" + escapeKey(args[0])
		if command == "download" {
			return request{method: http.MethodGet, path: path, raw: true}, nil
		}
		return request{method: http.MethodDelete, path: path}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

func buildBrowseRequest(command string, args []string, stderr io.Writer) (request, error) {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return request{}, fmt.Errorf("%s needs a table name", command)
	}
	table := args[0]

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	filters := filterList{}
	var columns columnList
	fs.Var(&filters, "f", "filter as column:operator:value (repeatable)")
	fs.Var(&columns, "c", "column to select, comma separated or repeated")
	if err := fs.Parse(args[1:]); err != nil {
		return request{}, err
	}
	if fs.NArg() > 0 {
		return request{}, fmt.Errorf("unexpected arguments %v", fs.Args())
	}

	body := map[string]any{"filters": []filterArg(filters)}
	if len(columns) > 0 {
		body["columns"] = []string(columns)
	}
	suffix := "/rows"
	if command == "export" {
		suffix = "/export"
	}
	return request{method: http.MethodPost, path: "/v1/tables/" + url.PathEscape(table) + suffix, body: body}, nil
}

func escapeKey(key string) string {
	segments := strings.Split(strings.Trim(strings.TrimSpace(key), "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func doRequest(ctx context.Context, client *http.Client, spec request, url, apiKey string) (int, []byte, error) {
	var payload io.Reader
	if spec.body != nil {
		encoded, err := json.Marshal(spec.body)
		if err != nil {
			return 0, nil, err
		}
		payload = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, spec.method, url, payload)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: tablelensctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                          GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                           GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  status                          GET /v1/connection")
	_, _ = fmt.Fprintln(w, "  connect <dsn>                   POST /v1/connection")
	_, _ = fmt.Fprintln(w, "  disconnect                      DELETE /v1/connection")
	_, _ = fmt.Fprintln(w, "  tables                          GET /v1/tables")
	_, _ = fmt.Fprintln(w, "  columns <table>                 GET /v1/tables/{table}/columns")
	_, _ = fmt.Fprintln(w, "  rows <table> [-c col] [-f c:op:v]    POST /v1/tables/{table}/rows")
	_, _ = fmt.Fprintln(w, "  export <table> [-c col] [-f c:op:v]  POST /v1/tables/{table}/export")
	_, _ = fmt.Fprintln(w, "  download <key>                  GET /v1/exports/{key} (writes Parquet to stdout)")
	_, _ = fmt.Fprintln(w, "  delete-export <key>             DELETE /v1/exports/{key}")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
