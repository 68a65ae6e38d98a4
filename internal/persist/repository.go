// Package persist writes table rows through to PostgreSQL.
//
// Rows are stored as jsonb, one record per (table, key). A store attached
// with Attach is seeded from the database and every saved or removed row is
// written back from the store's hooks. Each write is also recorded in the
// audit log.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/gridform/internal/core"
)

// DBTX is the subset of pgxpool.Pool, pgx.Conn and pgx.Tx the repository uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DefaultWriteTimeout bounds writes issued from store hooks.
const DefaultWriteTimeout = 10 * time.Second

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS gridform_rows (
		seq        bigserial,
		table_name text        NOT NULL,
		row_key    text        NOT NULL,
		data       jsonb       NOT NULL,
		updated_at timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (table_name, row_key)
	)`,
	`CREATE TABLE IF NOT EXISTS gridform_audit (
		id            uuid        PRIMARY KEY,
		action        text        NOT NULL,
		severity      text        NOT NULL,
		table_name    text        NOT NULL,
		row_key       text,
		row_data      jsonb,
		rows_affected integer,
		reason        text,
		created_at    timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS gridform_audit_table_created_idx
		ON gridform_audit (table_name, created_at DESC)`,
}

const (
	loadRowsSQL = `SELECT COALESCE(jsonb_agg(data ORDER BY seq), '[]'::jsonb)
		FROM gridform_rows WHERE table_name = $1`

	upsertRowSQL = `INSERT INTO gridform_rows (table_name, row_key, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (table_name, row_key)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

	deleteRowSQL = `DELETE FROM gridform_rows WHERE table_name = $1 AND row_key = $2`

	deleteTableSQL = `DELETE FROM gridform_rows WHERE table_name = $1`
)

// Repository reads and writes rows.
type Repository struct {
	db           DBTX
	audit        *AuditLog
	logger       *slog.Logger
	writeTimeout time.Duration
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for hook write failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithWriteTimeout bounds each write issued from a store hook.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// NewRepository creates a repository over db.
func NewRepository(db DBTX, opts ...Option) *Repository {
	r := &Repository{
		db:           db,
		audit:        NewAuditLog(db),
		logger:       slog.Default(),
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Audit returns the audit log sharing the repository's connection.
func (r *Repository) Audit() *AuditLog {
	return r.audit
}

// EnsureSchema creates the tables if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Load returns the stored rows of a table in insertion order.
func (r *Repository) Load(ctx context.Context, table string) ([]core.Row, error) {
	var raw []byte
	if err := r.db.QueryRow(ctx, loadRowsSQL, table).Scan(&raw); err != nil {
		return nil, fmt.Errorf("load rows of %s: %w", table, err)
	}
	var rows []core.Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode rows of %s: %w", table, err)
	}
	return rows, nil
}

// Upsert stores row under (table, key).
func (r *Repository) Upsert(ctx context.Context, table, key string, row core.Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row %s/%s: %w", table, key, err)
	}
	if _, err := r.db.Exec(ctx, upsertRowSQL, table, key, data); err != nil {
		return fmt.Errorf("upsert row %s/%s: %w", table, key, err)
	}
	return nil
}

// Delete removes (table, key). Missing rows are not an error.
func (r *Repository) Delete(ctx context.Context, table, key string) error {
	if _, err := r.db.Exec(ctx, deleteRowSQL, table, key); err != nil {
		return fmt.Errorf("delete row %s/%s: %w", table, key, err)
	}
	return nil
}

// DeleteTable removes every stored row of table and returns how many.
func (r *Repository) DeleteTable(ctx context.Context, table string) (int64, error) {
	tag, err := r.db.Exec(ctx, deleteTableSQL, table)
	if err != nil {
		return 0, fmt.Errorf("delete rows of %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// Attach seeds store from the database and writes saved and removed rows
// back. When the table has no stored rows, fallback seeds the store and is
// written to the database.
func (r *Repository) Attach(ctx context.Context, store *core.Store, fallback []core.Row) error {
	table := store.Name()
	rows, err := r.Load(ctx, table)
	if err != nil {
		return err
	}

	if len(rows) == 0 && len(fallback) > 0 {
		for _, row := range fallback {
			if err := r.Upsert(ctx, table, store.KeyOf(row), row); err != nil {
				return err
			}
		}
		rows = fallback
	}
	store.Seed(rows)

	store.OnRowSaved(func(key string, row core.Row) {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		defer cancel()
		if err := r.Upsert(ctx, table, key, row); err != nil {
			r.logger.Error("persist saved row", "table", table, "key", key, "error", err)
			return
		}
		r.record(ctx, AuditParams{Action: ActionRowSave, Table: table, RowKey: key, RowData: row})
	})
	store.OnRowDeleted(func(key string) {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		defer cancel()
		if err := r.Delete(ctx, table, key); err != nil {
			r.logger.Error("persist removed row", "table", table, "key", key, "error", err)
			return
		}
		r.record(ctx, AuditParams{Action: ActionRowDelete, Table: table, RowKey: key})
	})

	r.logger.Info("table attached", "table", table, "rows", len(rows))
	return nil
}

// Reset deletes the stored rows of a table and records it.
func (r *Repository) Reset(ctx context.Context, table, reason string) (int64, error) {
	n, err := r.DeleteTable(ctx, table)
	if err != nil {
		return 0, err
	}
	r.record(ctx, AuditParams{Action: ActionTableReset, Table: table, RowsAffected: int(n), Reason: reason})
	return n, nil
}

func (r *Repository) record(ctx context.Context, p AuditParams) {
	if _, err := r.audit.Log(ctx, p); err != nil {
		r.logger.Warn("audit log write failed", "action", p.Action, "table", p.Table, "error", err)
	}
}
