package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tablelens/tablelens/internal/source"
	"github.com/tablelens/tablelens/internal/source/sqldb"
)

const DefaultSchema = "public"

type Config struct {
	Schema           string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxIdleTime  time.Duration
	ConnMaxLifetime  time.Duration
	ConnectTimeout   time.Duration
	StatementTimeout time.Duration
}

// Open opens a pgx-backed pool and verifies it with a ping.
func Open(ctx context.Context, dsn string, cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// NewOpener returns the opener registered for postgres:// and postgresql://
// connection strings.
func NewOpener(cfg Config) source.Opener {
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = DefaultSchema
	}
	return func(ctx context.Context, dsn string) (source.Source, error) {
		db, err := Open(ctx, dsn, cfg)
		if err != nil {
			return nil, err
		}
		return sqldb.New(db, sqldb.Dialect{Name: "postgres", Schema: schema}, sqldb.Options{
			StatementTimeout: cfg.StatementTimeout,
		}), nil
	}
}
