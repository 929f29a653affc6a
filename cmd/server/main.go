package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/rosterfilter/internal/catalog"
	"github.com/JonMunkholm/rosterfilter/internal/config"
	"github.com/JonMunkholm/rosterfilter/internal/core"
	"github.com/JonMunkholm/rosterfilter/internal/logging"
	"github.com/JonMunkholm/rosterfilter/internal/web"
)

func main() {
	loadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"max_concurrent", cfg.Roster.MaxConcurrent,
		"session_ttl", cfg.Roster.SessionTTL,
		"history_enabled", cfg.Database.Enabled(),
	)

	cat, err := catalog.Load(cfg.Roster.CatalogPath)
	if err != nil {
		slog.Error("failed to load course catalog", "path", cfg.Roster.CatalogPath, "error", err)
		os.Exit(1)
	}
	slog.Info("course catalog loaded", "name", cat.Name, "courses", len(cat.ExcludedCourses))

	ctx := context.Background()

	var history core.RunRecorder
	if cfg.Database.Enabled() {
		pool, err := connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		rec := core.NewPgRecorder(pool)
		if err := rec.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare run history table", "error", err)
			os.Exit(1)
		}
		history = rec
	}

	service := core.NewService(core.Options{
		Columns:       core.ColumnMap(cfg.Columns),
		MaxConcurrent: cfg.Roster.MaxConcurrent,
		MaxWait:       cfg.Roster.MaxWait,
		SessionTTL:    cfg.Roster.SessionTTL,
		History:       history,
	})

	server := web.NewServer(service, cat, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartSweeper(jobCtx, cfg.Roster.SweepInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			for _, run := range status.Running {
				slog.Info("waiting for run to complete", "source", run.Source, "since", run.Since)
			}
			if err := service.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time", "error", err)
			} else {
				slog.Info("all runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// connect opens the run history pool and verifies it answers.
func connect(ctx context.Context, dc config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dc.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(dc.MaxConns)
	poolConfig.MinConns = int32(dc.MinConns)
	poolConfig.MaxConnLifetime = dc.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dc.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(dc.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// loadDotEnv reads files (default .env) into the environment. Variables
// already set in the environment win, the same as in the rosterfilter CLI.
func loadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		slog.Info("no .env file found, using environment variables")
		return
	}
	slog.Info("loaded .env file")
}
