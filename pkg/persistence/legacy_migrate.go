package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/seekerror/logw"
)

// legacySuspended/legacyPosition/legacyFinished are the JSON shapes the
// pre-sqlite store wrote one file per record, mirroring
// original_source/server/src/persistence/{sessions,positions,finished_games}
// closely enough to round-trip the fields this schema keeps.
type legacySuspended struct {
	ID       string `json:"id"`
	FEN      string `json:"fen"`
	ModeKind int    `json:"mode_kind"`
	WhiteMs  int64  `json:"white_remaining_ms"`
	BlackMs  int64  `json:"black_remaining_ms"`
}

type legacyPosition struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	FEN  string   `json:"fen"`
	Tags []string `json:"tags"`
}

type legacyFinishedGame struct {
	GameID   string       `json:"game_id"`
	StartFEN string       `json:"start_fen"`
	Result   int          `json:"result"`
	Reason   string       `json:"reason"`
	Moves    []MoveRecord `json:"moves"`
}

// migrationReport mirrors MigrationReport from
// original_source/server/src/persistence/sqlite/migrate_json.rs, logged
// rather than returned since the server only needs it for startup output.
type migrationReport struct {
	Sessions       int
	Positions      int
	FinishedGames  int
}

// migrateLegacyJSON loads every legacy JSON record under dir and inserts
// them in one outer transaction, per spec §4.2's one-time migration. It
// runs only when the relational store is empty.
func migrateLegacyJSON(ctx context.Context, db *sql.DB, dir string) error {
	sessions, err := readLegacyDir[legacySuspended](filepath.Join(dir, "sessions"))
	if err != nil {
		return err
	}
	positions, err := readLegacyDir[legacyPosition](filepath.Join(dir, "positions"))
	if err != nil {
		return err
	}
	games, err := readLegacyDir[legacyFinishedGame](filepath.Join(dir, "finished_games"))
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return wrapIO("beginning legacy migration transaction", err)
	}
	defer tx.Rollback()

	for _, s := range sessions {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO suspended_sessions (id, fen, mode_kind, white_ms, black_ms, saved_at)
			VALUES (?, ?, ?, ?, ?, strftime('%s','now'))`,
			s.ID, s.FEN, s.ModeKind, s.WhiteMs, s.BlackMs); err != nil {
			return wrapIO("migrating legacy session "+s.ID, err)
		}
	}
	for _, p := range positions {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO stored_positions (id, name, fen, tags, created_at)
			VALUES (?, ?, ?, ?, strftime('%s','now'))`,
			p.ID, p.Name, p.FEN, joinTags(p.Tags)); err != nil {
			return wrapIO("migrating legacy position "+p.ID, err)
		}
	}
	for _, g := range games {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO finished_games (game_id, start_fen, result, reason, ended_at)
			VALUES (?, ?, ?, ?, strftime('%s','now'))`,
			g.GameID, g.StartFEN, g.Result, g.Reason); err != nil {
			return wrapIO("migrating legacy finished game "+g.GameID, err)
		}
		for ply, mv := range g.Moves {
			var clockMs sql.NullInt64
			if mv.ClockMs != nil {
				clockMs = sql.NullInt64{Int64: *mv.ClockMs, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO stored_moves (game_id, ply, uci, san, piece_moved, piece_captured, fen_after, clock_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				g.GameID, ply+1, mv.UCI, mv.SAN, mv.PieceMoved, mv.PieceCaptured, mv.FENAfter, clockMs); err != nil {
				return wrapIO("migrating legacy move", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapIO("committing legacy migration", err)
	}

	report := migrationReport{Sessions: len(sessions), Positions: len(positions), FinishedGames: len(games)}
	logw.Infof(ctx, "persistence: legacy json migration complete: sessions=%d positions=%d finished_games=%d",
		report.Sessions, report.Positions, report.FinishedGames)
	return nil
}

func readLegacyDir[T any](dir string) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, wrapIO("reading legacy directory "+dir, err)
	}

	var out []T
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, wrapIO("reading legacy file "+e.Name(), err)
		}
		var rec T
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, &Error{Kind: KindCorrupt, Msg: "parsing legacy file " + e.Name(), Cause: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	out := tags[0]
	for _, t := range tags[1:] {
		out += "," + t
	}
	return out
}
