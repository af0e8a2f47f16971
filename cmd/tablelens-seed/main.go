package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tablelens/tablelens/internal/demo/seed"
	"github.com/tablelens/tablelens/internal/source"
	"github.com/tablelens/tablelens/internal/source/duckdb"
	"github.com/tablelens/tablelens/internal/source/postgres"
)

func main() {
	cfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	db, err := open(ctx, cfg.DSN)
	if err != nil {
		logger.Error("failed to open seed database", slog.String("dsn", source.Redact(cfg.DSN)), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	service, err := seed.NewService(db, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize seeder", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info(
		"seeding demo table",
		slog.String("dsn", source.Redact(cfg.DSN)),
		slog.String("table", cfg.TableName),
		slog.Int("rows", cfg.Rows),
		slog.Int("batch_size", cfg.BatchSize),
		slog.Int64("seed", cfg.Seed),
	)
	if _, err := service.Run(ctx); err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	scheme, err := source.Scheme(dsn)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "postgres", "postgresql":
		return postgres.Open(ctx, dsn, postgres.Config{})
	case "duckdb":
		return duckdb.Open(ctx, dsn, duckdb.Config{})
	default:
		return nil, fmt.Errorf("%w: %q", source.ErrUnsupportedScheme, scheme)
	}
}
