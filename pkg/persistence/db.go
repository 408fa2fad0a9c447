package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/seekerror/logw"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if necessary) a sqlite database at path, applies the
// pragmas the write-heavy workload here wants, runs pending migrations, and
// performs the one-time legacy-JSON import if applicable.
func Open(ctx context.Context, path string, legacyDir string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, wrapIO("opening database "+path, err)
	}
	// A single writer connection avoids sqlite's "database is locked" churn
	// under concurrent transactions; reads go through the same pool.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, wrapIO("pinging database "+path, err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: migrating %v: %w", path, err)
	}

	if legacyDir != "" {
		empty, err := schemaIsEmpty(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if empty {
			if err := migrateLegacyJSON(ctx, db, legacyDir); err != nil {
				logw.Errorf(ctx, "persistence: legacy json import from %v: %v", legacyDir, err)
			}
		}
	}

	return db, nil
}

func schemaIsEmpty(ctx context.Context, db *sql.DB) (bool, error) {
	var n int
	row := db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM suspended_sessions) +
			(SELECT COUNT(*) FROM finished_games) +
			(SELECT COUNT(*) FROM stored_positions)
	`)
	if err := row.Scan(&n); err != nil {
		return false, wrapIO("checking schema emptiness", err)
	}
	return n == 0, nil
}
