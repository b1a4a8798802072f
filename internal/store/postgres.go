package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"funneldash/internal/funnel"
	"funneldash/internal/logging"
	"funneldash/internal/util"
)

// pgxPoolNewFunc allows overriding pgxpool.New for testing.
var pgxPoolNewFunc = pgxpool.New

// Default database connection and query timeout.
const defaultDBTimeout = 30 * time.Second

// PostgresPersistence stores each funnel as a JSONB document keyed by
// creator ID. The table is created on first use.
type PostgresPersistence struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresPersistence connects to the database and ensures the funnel
// table exists. The connection string may reference environment variables.
func NewPostgresPersistence(connStr, table string) (*PostgresPersistence, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultDBTimeout)
	defer cancel()

	expanded := util.ExpandEnvUniversal(connStr)
	pool, err := pgxPoolNewFunc(ctx, expanded)
	if err != nil {
		masked := util.MaskCredentials(expanded)
		logging.Logf(logging.Error, "Failed to create connection pool for: %s", masked)
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("database connection timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to connect to database (using %s): %w", masked, err)
	}

	p := &PostgresPersistence{pool: pool, table: pgIdentifier(table)}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		creator_id TEXT PRIMARY KEY,
		funnel JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, p.table)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring funnel table '%s': %w", table, err)
	}
	return p, nil
}

// pgIdentifier quotes a table name for safe interpolation into DDL.
func pgIdentifier(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r != '"' {
			out = append(out, r)
		}
	}
	return `"` + string(out) + `"`
}

// Load reads every persisted funnel document.
func (p *PostgresPersistence) Load() ([]funnel.CreatorFunnel, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultDBTimeout)
	defer cancel()

	rows, err := p.pool.Query(ctx, fmt.Sprintf("SELECT funnel FROM %s ORDER BY creator_id", p.table))
	if err != nil {
		return nil, fmt.Errorf("querying persisted funnels: %w", err)
	}
	defer rows.Close()

	funnels := []funnel.CreatorFunnel{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning funnel row: %w", err)
		}
		var f funnel.CreatorFunnel
		if err := json.Unmarshal(doc, &f); err != nil {
			logging.Logf(logging.Warning, "Skipping corrupt funnel document: %v", err)
			continue
		}
		funnels = append(funnels, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating funnel rows: %w", err)
	}
	return funnels, nil
}

// Save replaces the persisted set inside one transaction: existing rows are
// deleted and the new set upserted.
func (p *PostgresPersistence) Save(funnels []funnel.CreatorFunnel) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultDBTimeout)
	defer cancel()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning funnel save transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", p.table)); err != nil {
		return fmt.Errorf("clearing funnel table: %w", err)
	}

	upsert := fmt.Sprintf(`INSERT INTO %s (creator_id, funnel, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (creator_id) DO UPDATE SET funnel = EXCLUDED.funnel, updated_at = now()`, p.table)
	for _, f := range funnels {
		doc, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("marshaling funnel for creator '%s': %w", f.CreatorID, err)
		}
		if _, err := tx.Exec(ctx, upsert, f.CreatorID, doc); err != nil {
			return fmt.Errorf("upserting funnel for creator '%s': %w", f.CreatorID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing funnel save transaction: %w", err)
	}
	logging.Logf(logging.Debug, "Persisted %d funnel(s) to Postgres", len(funnels))
	return nil
}

// Clear drops every persisted funnel row.
func (p *PostgresPersistence) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultDBTimeout)
	defer cancel()
	if _, err := p.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", p.table)); err != nil {
		return fmt.Errorf("clearing funnel table: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *PostgresPersistence) Close() error {
	p.pool.Close()
	return nil
}
