// Package admin provides administrative operations on registered tables.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/gridform/internal/core"
	"github.com/JonMunkholm/gridform/internal/persist"
	"github.com/JonMunkholm/gridform/internal/schema"
)

// ResetTimeout is the maximum duration for a reset of every table.
const ResetTimeout = 30 * time.Second

// ResetResult reports one reset table.
type ResetResult struct {
	Table   string `json:"table"`
	Rows    int    `json:"rows"`
	Deleted int64  `json:"deleted"`
}

// Resetter restores tables to their seed rows. Repo may be nil, in which
// case only the in-memory stores are reset.
type Resetter struct {
	Form   *core.Form
	Schema *schema.File
	Repo   *persist.Repository
	Logger *slog.Logger
}

// Reset discards every row, error and operation of the named table and
// reseeds it. Stored rows are replaced first so a database failure leaves
// the store untouched.
func (r *Resetter) Reset(ctx context.Context, name, reason string) (ResetResult, error) {
	store, err := r.Form.MustStore(name)
	if err != nil {
		return ResetResult{}, err
	}

	var seed []core.Row
	if r.Schema != nil {
		if table, ok := r.Schema.Table(name); ok {
			seed = table.SeedRows()
		}
	}

	var deleted int64
	if r.Repo != nil {
		if deleted, err = r.Repo.Reset(ctx, name, reason); err != nil {
			return ResetResult{}, fmt.Errorf("reset %s: %w", name, err)
		}
		for _, row := range seed {
			if err := r.Repo.Upsert(ctx, name, store.KeyOf(row), row); err != nil {
				return ResetResult{}, fmt.Errorf("reseed %s: %w", name, err)
			}
		}
	}

	store.Clear(false)
	store.Seed(seed)

	r.logger().Warn("table reset", "table", name, "reason", reason, "deleted", deleted, "seeded", len(seed))
	return ResetResult{Table: name, Rows: store.Len(), Deleted: deleted}, nil
}

// ResetAll resets every registered table in registration order and stops
// at the first failure.
func (r *Resetter) ResetAll(ctx context.Context, reason string) ([]ResetResult, error) {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	names := r.Form.Names()
	results := make([]ResetResult, 0, len(names))
	for _, name := range names {
		res, err := r.Reset(ctx, name, reason)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Resetter) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
