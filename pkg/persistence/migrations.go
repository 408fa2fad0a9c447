package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations is a forward-only ordered list of schema statements. Entities
// mirror the domain per spec §4.2: parent/child tables with ON DELETE
// CASCADE, and foreign keys that make a review impossible without its
// finished game.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS suspended_sessions (
		id         TEXT PRIMARY KEY,
		fen        TEXT NOT NULL,
		mode_kind  INTEGER NOT NULL,
		white_ms   INTEGER NOT NULL,
		black_ms   INTEGER NOT NULL,
		saved_at   INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS stored_positions (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		fen        TEXT NOT NULL,
		tags       TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS finished_games (
		game_id    TEXT PRIMARY KEY,
		start_fen  TEXT NOT NULL,
		result     INTEGER NOT NULL,
		reason     TEXT NOT NULL,
		ended_at   INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS stored_moves (
		game_id        TEXT NOT NULL REFERENCES finished_games(game_id) ON DELETE CASCADE,
		ply            INTEGER NOT NULL,
		uci            TEXT NOT NULL,
		san            TEXT NOT NULL,
		piece_moved    TEXT NOT NULL,
		piece_captured TEXT NOT NULL,
		fen_after      TEXT NOT NULL,
		clock_ms       INTEGER,
		PRIMARY KEY (game_id, ply)
	)`,

	`CREATE TABLE IF NOT EXISTS game_reviews (
		game_id             TEXT PRIMARY KEY REFERENCES finished_games(game_id) ON DELETE CASCADE,
		status              TEXT NOT NULL,
		status_current_ply  INTEGER,
		status_total_plies  INTEGER,
		status_error        TEXT,
		white_accuracy      REAL,
		black_accuracy      REAL,
		total_plies         INTEGER NOT NULL,
		analyzed_plies      INTEGER NOT NULL,
		analysis_depth      INTEGER NOT NULL,
		created_at          INTEGER NOT NULL,
		started_at          INTEGER,
		completed_at        INTEGER,
		winner              TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS position_reviews (
		game_id          TEXT NOT NULL REFERENCES game_reviews(game_id) ON DELETE CASCADE,
		ply              INTEGER NOT NULL,
		fen              TEXT NOT NULL,
		played_san       TEXT NOT NULL,
		best_move_san    TEXT NOT NULL,
		best_move_uci    TEXT NOT NULL,
		eval_before_type TEXT NOT NULL,
		eval_before_value INTEGER NOT NULL,
		eval_after_type  TEXT NOT NULL,
		eval_after_value INTEGER NOT NULL,
		eval_best_type   TEXT NOT NULL,
		eval_best_value  INTEGER NOT NULL,
		classification   TEXT NOT NULL,
		cp_loss          INTEGER NOT NULL,
		pv               TEXT NOT NULL,
		depth            INTEGER NOT NULL,
		clock_ms         INTEGER,
		PRIMARY KEY (game_id, ply)
	)`,

	`CREATE TABLE IF NOT EXISTS advanced_game_analyses (
		game_id                    TEXT PRIMARY KEY REFERENCES game_reviews(game_id) ON DELETE CASCADE,
		pipeline_version           INTEGER NOT NULL,
		shallow_depth              INTEGER NOT NULL,
		deep_depth                 INTEGER NOT NULL,
		critical_positions_count   INTEGER NOT NULL,
		computed_at                INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS psychological_profiles (
		game_id                    TEXT NOT NULL REFERENCES advanced_game_analyses(game_id) ON DELETE CASCADE,
		color                      TEXT NOT NULL,
		max_consecutive_errors     INTEGER NOT NULL,
		favorable_swings           INTEGER NOT NULL,
		unfavorable_swings         INTEGER NOT NULL,
		max_momentum_streak        INTEGER NOT NULL,
		avg_blunder_time_ms        INTEGER,
		avg_good_move_time_ms      INTEGER,
		opening_avg_cp_loss        REAL NOT NULL,
		middlegame_avg_cp_loss     REAL NOT NULL,
		endgame_avg_cp_loss        REAL NOT NULL,
		PRIMARY KEY (game_id, color)
	)`,

	`CREATE TABLE IF NOT EXISTS advanced_position_analyses (
		game_id          TEXT NOT NULL REFERENCES advanced_game_analyses(game_id) ON DELETE CASCADE,
		ply              INTEGER NOT NULL,
		tension          REAL NOT NULL,
		king_safety_white REAL NOT NULL,
		king_safety_black REAL NOT NULL,
		tactical_tags    TEXT NOT NULL,
		PRIMARY KEY (game_id, ply)
	)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return wrapIO("beginning migration transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migrations[0]); err != nil {
		return wrapIO("creating schema_migrations", err)
	}

	var applied int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		return wrapIO("counting applied migrations", err)
	}

	for i := applied + 1; i <= len(migrations); i++ {
		stmt := migrations[i-1]
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return wrapIO(fmt.Sprintf("applying migration %d", i), err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_migrations (version, applied_at) VALUES (?, strftime('%s','now'))`,
		len(migrations)); err != nil {
		return wrapIO("recording migration version", err)
	}

	return wrapIO("committing migrations", tx.Commit())
}
