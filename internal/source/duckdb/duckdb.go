package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/tablelens/tablelens/internal/source"
	"github.com/tablelens/tablelens/internal/source/sqldb"
)

const Schema = "main"

type Config struct {
	ConnectTimeout   time.Duration
	StatementTimeout time.Duration
}

// DatabasePath converts a duckdb:// connection string into the path form the
// duckdb driver accepts. An empty path or :memory: opens an in-memory database.
func DatabasePath(dsn string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(dsn))
	if err != nil {
		return "", fmt.Errorf("%w: %v", source.ErrInvalidDSN, err)
	}
	if !strings.EqualFold(parsed.Scheme, "duckdb") {
		return "", fmt.Errorf("%w: %q", source.ErrUnsupportedScheme, parsed.Scheme)
	}

	path := parsed.Host + parsed.Path
	if parsed.Opaque != "" {
		path = parsed.Opaque
	}
	if path == ":memory:" {
		path = ""
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return path, nil
}

// ClassifyAs maps DuckDB catalog spellings onto the names the classifier
// knows. DuckDB reports NUMERIC columns as DECIMAL(p,s).
func ClassifyAs(rawType string) string {
	trimmed := strings.TrimSpace(rawType)
	if len(trimmed) >= len("DECIMAL") && strings.EqualFold(trimmed[:len("DECIMAL")], "DECIMAL") {
		return "numeric" + trimmed[len("DECIMAL"):]
	}
	return trimmed
}

func Open(ctx context.Context, dsn string, cfg Config) (*sql.DB, error) {
	path, err := DatabasePath(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

func NewOpener(cfg Config) source.Opener {
	return func(ctx context.Context, dsn string) (source.Source, error) {
		db, err := Open(ctx, dsn, cfg)
		if err != nil {
			return nil, err
		}
		return sqldb.New(db, sqldb.Dialect{Name: "duckdb", Schema: Schema, ClassifyAs: ClassifyAs}, sqldb.Options{
			StatementTimeout: cfg.StatementTimeout,
		}), nil
	}
}
