package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/gridform/internal/config"
	"github.com/JonMunkholm/gridform/internal/core"
	"github.com/JonMunkholm/gridform/internal/logging"
	"github.com/JonMunkholm/gridform/internal/persist"
	"github.com/JonMunkholm/gridform/internal/schema"
)

// app is the wired form shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	file   *schema.File
	form   *core.Form
	stores []*core.Store
	pool   *pgxpool.Pool
	repo   *persist.Repository
}

// bootstrap loads configuration, the schema and, when a database is
// configured, the stored rows of every table. Logs go to stdout unless
// logOut is set.
func bootstrap(ctx context.Context, schemaFile string, logOut io.Writer) (*app, error) {
	// Overload overwrites existing env vars with .env values
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if schemaFile != "" {
		cfg.Form.SchemaFile = schemaFile
	}

	var logger *slog.Logger
	if logOut == nil {
		logger = logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	} else {
		logger = logging.New(logOut, cfg.Logging.Level, cfg.Logging.Format)
		slog.SetDefault(logger)
	}
	logger.Debug("configuration loaded", "config", cfg.String())

	file, err := schema.Load(cfg.Form.SchemaFile)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, file: file, form: core.NewForm()}
	a.form.SetConcurrency(cfg.Form.Concurrency)
	a.stores = file.Register(a.form,
		core.WithKeyField(cfg.Form.KeyField),
		core.WithValidationTimeout(cfg.Form.ValidationTimeout),
		core.WithLogger(logging.ForComponent(logger, "store")),
	)

	if !cfg.Database.Enabled() {
		for i, s := range a.stores {
			s.Seed(file.Tables[i].SeedRows())
		}
		logger.Info("tables registered", "count", len(a.stores), "persistence", false)
		return a, nil
	}

	if err := a.connect(ctx); err != nil {
		a.close()
		return nil, err
	}
	for i, s := range a.stores {
		if err := a.repo.Attach(ctx, s, file.Tables[i].SeedRows()); err != nil {
			a.close()
			return nil, fmt.Errorf("attach %s: %w", s.Name(), err)
		}
	}
	logger.Info("tables registered", "count", len(a.stores), "persistence", true)
	return a, nil
}

// connect opens the connection pool and prepares the row tables.
func (a *app) connect(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(a.cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(a.cfg.Database.MaxConns)
	poolConfig.MinConns = int32(a.cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = a.cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = a.cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.pool = pool

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(a.cfg.Database.URL); err == nil {
		a.logger.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		a.logger.Info("connected to database")
	}

	a.repo = persist.NewRepository(pool, persist.WithLogger(logging.ForComponent(a.logger, "persist")))
	return a.repo.EnsureSchema(ctx)
}

// close stops every store and releases the pool.
func (a *app) close() {
	for _, s := range a.stores {
		s.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
