package persistence

import (
	"context"
	"database/sql"
)

// FinishedGameRepo persists archived completed games, per spec §4.2. Save
// is a full-entity replace: delete children for the id, then insert header
// and children inside one transaction.
type FinishedGameRepo interface {
	Save(rec FinishedGameData) error
	Load(gameID string) (FinishedGameData, bool, error)
	List() ([]FinishedGameData, error)
	Delete(gameID string) error
	HasReview(gameID string) (bool, error)
}

type sqliteFinishedGameRepo struct {
	ctx context.Context
	db  *sql.DB
}

// NewFinishedGameRepo builds the sqlite-backed FinishedGameRepo.
func NewFinishedGameRepo(ctx context.Context, db *sql.DB) FinishedGameRepo {
	return &sqliteFinishedGameRepo{ctx: ctx, db: db}
}

func (r *sqliteFinishedGameRepo) Save(rec FinishedGameData) error {
	tx, err := r.db.BeginTx(r.ctx, nil)
	if err != nil {
		return wrapIO("beginning finished-game transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(r.ctx, `DELETE FROM stored_moves WHERE game_id = ?`, rec.GameID); err != nil {
		return wrapIO("clearing prior moves for "+rec.GameID, err)
	}
	if _, err := tx.ExecContext(r.ctx, `
		INSERT OR REPLACE INTO finished_games (game_id, start_fen, result, reason, ended_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.GameID, rec.StartFEN, rec.Result, rec.Reason, rec.EndedAt.Unix()); err != nil {
		return wrapIO("saving finished game "+rec.GameID, err)
	}

	for ply, mv := range rec.Moves {
		var clockMs sql.NullInt64
		if mv.ClockMs != nil {
			clockMs = sql.NullInt64{Int64: *mv.ClockMs, Valid: true}
		}
		if _, err := tx.ExecContext(r.ctx, `
			INSERT INTO stored_moves (game_id, ply, uci, san, piece_moved, piece_captured, fen_after, clock_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.GameID, ply+1, mv.UCI, mv.SAN, mv.PieceMoved, mv.PieceCaptured, mv.FENAfter, clockMs); err != nil {
			return wrapIO("saving move", err)
		}
	}

	return wrapIO("committing finished game "+rec.GameID, tx.Commit())
}

func (r *sqliteFinishedGameRepo) Load(gameID string) (FinishedGameData, bool, error) {
	row := r.db.QueryRowContext(r.ctx, `
		SELECT game_id, start_fen, result, reason, ended_at FROM finished_games WHERE game_id = ?`, gameID)

	var rec FinishedGameData
	var endedAt int64
	if err := row.Scan(&rec.GameID, &rec.StartFEN, &rec.Result, &rec.Reason, &endedAt); err != nil {
		if err == sql.ErrNoRows {
			return FinishedGameData{}, false, nil
		}
		return FinishedGameData{}, false, wrapIO("loading finished game "+gameID, err)
	}
	rec.EndedAt = unixTime(endedAt)

	moves, err := r.loadMoves(gameID)
	if err != nil {
		return FinishedGameData{}, false, err
	}
	rec.Moves = moves
	return rec, true, nil
}

func (r *sqliteFinishedGameRepo) loadMoves(gameID string) ([]MoveRecord, error) {
	rows, err := r.db.QueryContext(r.ctx, `
		SELECT uci, san, piece_moved, piece_captured, fen_after, clock_ms
		FROM stored_moves WHERE game_id = ? ORDER BY ply ASC`, gameID)
	if err != nil {
		return nil, wrapIO("loading moves for "+gameID, err)
	}
	defer rows.Close()

	var out []MoveRecord
	for rows.Next() {
		var mv MoveRecord
		var clockMs sql.NullInt64
		if err := rows.Scan(&mv.UCI, &mv.SAN, &mv.PieceMoved, &mv.PieceCaptured, &mv.FENAfter, &clockMs); err != nil {
			return nil, wrapIO("scanning move row", err)
		}
		if clockMs.Valid {
			v := clockMs.Int64
			mv.ClockMs = &v
		}
		out = append(out, mv)
	}
	return out, wrapIO("iterating moves for "+gameID, rows.Err())
}

func (r *sqliteFinishedGameRepo) List() ([]FinishedGameData, error) {
	rows, err := r.db.QueryContext(r.ctx, `SELECT game_id FROM finished_games`)
	if err != nil {
		return nil, wrapIO("listing finished games", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, wrapIO("scanning finished game id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapIO("iterating finished games", err)
	}

	out := make([]FinishedGameData, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := r.Load(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Delete removes the finished game and cascades to its review, advanced
// analysis, and moves. Callers (the review manager) are responsible for
// refusing deletion while the game is in the pending review set, per spec
// §4.5.
func (r *sqliteFinishedGameRepo) Delete(gameID string) error {
	_, err := r.db.ExecContext(r.ctx, `DELETE FROM finished_games WHERE game_id = ?`, gameID)
	return wrapIO("deleting finished game "+gameID, err)
}

func (r *sqliteFinishedGameRepo) HasReview(gameID string) (bool, error) {
	var n int
	row := r.db.QueryRowContext(r.ctx, `SELECT COUNT(*) FROM game_reviews WHERE game_id = ?`, gameID)
	if err := row.Scan(&n); err != nil {
		return false, wrapIO("checking review existence for "+gameID, err)
	}
	return n > 0, nil
}
