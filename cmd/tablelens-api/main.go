package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tablelens/tablelens/internal/api"
	"github.com/tablelens/tablelens/internal/auth"
	"github.com/tablelens/tablelens/internal/config"
	"github.com/tablelens/tablelens/internal/explorer"
	"github.com/tablelens/tablelens/internal/export"
	"github.com/tablelens/tablelens/internal/observability"
	"github.com/tablelens/tablelens/internal/source"
	"github.com/tablelens/tablelens/internal/source/duckdb"
	"github.com/tablelens/tablelens/internal/source/postgres"
	s3store "github.com/tablelens/tablelens/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("tablelens-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	pgOpener := postgres.NewOpener(postgres.Config{
		Schema:           cfg.Source.PostgresSchema,
		MaxOpenConns:     cfg.Source.MaxOpenConns,
		MaxIdleConns:     cfg.Source.MaxIdleConns,
		ConnMaxIdleTime:  cfg.Source.ConnMaxIdleTime,
		ConnMaxLifetime:  cfg.Source.ConnMaxLifetime,
		ConnectTimeout:   cfg.Source.ConnectTimeout,
		StatementTimeout: cfg.Source.StatementTimeout,
	})
	sources := source.NewManager(map[string]source.Opener{
		"postgres":   pgOpener,
		"postgresql": pgOpener,
		"duckdb": duckdb.NewOpener(duckdb.Config{
			ConnectTimeout:   cfg.Source.ConnectTimeout,
			StatementTimeout: cfg.Source.StatementTimeout,
		}),
	})
	defer func() { _ = sources.Close() }()

	if cfg.Source.DSN != "" {
		status, err := sources.Connect(context.Background(), cfg.Source.DSN)
		if err != nil {
			logger.Error("failed to connect configured source", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("connected configured source", slog.String("driver", status.Driver), slog.String("dsn", status.DSN))
	}

	var (
		exporter explorer.Exporter
		exports  api.ExportStore
	)
	if cfg.Export.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		parquetExporter := export.NewExporter(objectStore)
		exporter = parquetExporter
		exports = parquetExporter
	}

	browser := explorer.NewService(sources, exporter, logger, explorer.Config{
		RowCap:   cfg.Query.RowCap,
		Location: cfg.Query.Location,
	})

	deps := api.Dependencies{
		Logger:      logger,
		Connections: sources,
		Explorer:    browser,
		Exports:     exports,
		Readiness: api.CombineReadinessChecks(
			api.CheckSource(sources, cfg.Source.DSN != ""),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.Int("row_cap", cfg.Query.RowCap),
			slog.String("timezone", cfg.Query.TimeZone),
			slog.Bool("export_enabled", cfg.Export.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
