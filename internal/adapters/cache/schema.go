package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Dialect selects the DDL flavour for InitSchema.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// InitSchema creates the leg cache table and its index if missing.
func InitSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	intType := "INTEGER"
	switch dialect {
	case DialectSQLite:
	case DialectPostgres:
		intType = "BIGINT"
	default:
		return fmt.Errorf("init schema: unknown dialect %q", dialect)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createLegCacheQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS leg_cache (
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		distance_meters INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		computed_at %s NOT NULL,
		PRIMARY KEY (origin, destination)
	);
	`, intType)

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_leg_cache_computed_at
	ON leg_cache(computed_at);
	`

	statements := []string{
		createLegCacheQuery,
		createIndexQuery,
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit: %w", err)
	}

	return nil
}
