package seed

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tablelens/tablelens/internal/filter"
)

type Service struct {
	db        *sql.DB
	cfg       Config
	log       *slog.Logger
	generator *Generator
}

func NewService(db *sql.DB, cfg Config, logger *slog.Logger) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if !filter.ValidIdentifier(cfg.TableName) {
		return nil, fmt.Errorf("invalid table name %q", cfg.TableName)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0")
	}
	if cfg.UserCardinality <= 0 {
		cfg.UserCardinality = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		db:        db,
		cfg:       cfg,
		log:       logger,
		generator: NewGenerator(cfg.Seed, cfg.UserCardinality, time.Now()),
	}, nil
}

// CreateTableSQL is portable between Postgres and DuckDB.
func CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id UUID PRIMARY KEY,
	event_id BIGINT NOT NULL,
	user_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	amount NUMERIC(12, 2) NOT NULL,
	paid BOOLEAN NOT NULL,
	country TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	note TEXT
)`, filter.QuoteIdent(table))
}

// Run creates the demo table and inserts the configured number of rows in a
// single transaction. It returns the number of rows written.
func (s *Service) Run(ctx context.Context) (int, error) {
	table := filter.QuoteIdent(s.cfg.TableName)
	if s.cfg.DropExisting {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return 0, fmt.Errorf("drop demo table: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, CreateTableSQL(s.cfg.TableName)); err != nil {
		return 0, fmt.Errorf("create demo table: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	quoted := make([]string, len(columnNames))
	for i, name := range columnNames {
		quoted[i] = filter.QuoteIdent(name)
	}

	written := 0
	for written < s.cfg.Rows {
		batch := s.cfg.BatchSize
		if remaining := s.cfg.Rows - written; remaining < batch {
			batch = remaining
		}
		builder := sq.Insert(table).Columns(quoted...).PlaceholderFormat(sq.Dollar)
		for i := 0; i < batch; i++ {
			builder = builder.Values(s.generator.NextRow().values()...)
		}
		sqlText, args, err := builder.ToSql()
		if err != nil {
			return written, fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlText, args...); err != nil {
			return written, fmt.Errorf("insert demo rows: %w", err)
		}
		written += batch
		s.log.Debug("inserted demo batch", slog.String("table", s.cfg.TableName), slog.Int("rows", batch))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed transaction: %w", err)
	}
	s.log.Info("seeded demo table", slog.String("table", s.cfg.TableName), slog.Int("rows", written))
	return written, nil
}
