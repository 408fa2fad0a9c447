package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// ReviewRepo persists game reviews, per spec §4.2/§4.5. SaveIncremental
// mirrors original_source/server/src/persistence/sqlite/review_repo.rs:
// INSERT OR REPLACE on the header, INSERT OR IGNORE on each position row,
// so re-running analysis extends rather than overwrites analyzed plies.
type ReviewRepo interface {
	SaveIncremental(rev GameReviewData) error
	Load(gameID string) (GameReviewData, bool, error)
	Delete(gameID string) error
}

type sqliteReviewRepo struct {
	ctx context.Context
	db  *sql.DB
}

// NewReviewRepo builds the sqlite-backed ReviewRepo.
func NewReviewRepo(ctx context.Context, db *sql.DB) ReviewRepo {
	return &sqliteReviewRepo{ctx: ctx, db: db}
}

func (r *sqliteReviewRepo) SaveIncremental(rev GameReviewData) error {
	tx, err := r.db.BeginTx(r.ctx, nil)
	if err != nil {
		return wrapIO("beginning review transaction", err)
	}
	defer tx.Rollback()

	var startedAt, completedAt sql.NullInt64
	if rev.StartedAt != nil {
		startedAt = sql.NullInt64{Int64: rev.StartedAt.Unix(), Valid: true}
	}
	if rev.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: rev.CompletedAt.Unix(), Valid: true}
	}
	var winner sql.NullString
	if rev.Winner != nil {
		winner = sql.NullString{String: *rev.Winner, Valid: true}
	}
	var whiteAcc, blackAcc sql.NullFloat64
	if rev.WhiteAccuracy != nil {
		whiteAcc = sql.NullFloat64{Float64: *rev.WhiteAccuracy, Valid: true}
	}
	if rev.BlackAccuracy != nil {
		blackAcc = sql.NullFloat64{Float64: *rev.BlackAccuracy, Valid: true}
	}
	var curPly, totPlies sql.NullInt64
	if rev.Status.CurrentPly != nil {
		curPly = sql.NullInt64{Int64: *rev.Status.CurrentPly, Valid: true}
	}
	if rev.Status.TotalPlies != nil {
		totPlies = sql.NullInt64{Int64: *rev.Status.TotalPlies, Valid: true}
	}
	var statusErr sql.NullString
	if rev.Status.ErrorMsg != nil {
		statusErr = sql.NullString{String: *rev.Status.ErrorMsg, Valid: true}
	}

	if _, err := tx.ExecContext(r.ctx, `
		INSERT OR REPLACE INTO game_reviews
			(game_id, status, status_current_ply, status_total_plies, status_error,
			 white_accuracy, black_accuracy, total_plies, analyzed_plies, analysis_depth,
			 created_at, started_at, completed_at, winner)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rev.GameID, rev.Status.Kind, curPly, totPlies, statusErr,
		whiteAcc, blackAcc, rev.TotalPlies, rev.AnalyzedPlies, rev.AnalysisDepth,
		time.Now().Unix(), startedAt, completedAt, winner); err != nil {
		return wrapIO("saving review header "+rev.GameID, err)
	}

	for _, pos := range rev.Positions {
		var clockMs sql.NullInt64
		if pos.ClockMs != nil {
			clockMs = sql.NullInt64{Int64: *pos.ClockMs, Valid: true}
		}
		if _, err := tx.ExecContext(r.ctx, `
			INSERT OR IGNORE INTO position_reviews
				(game_id, ply, fen, played_san, best_move_san, best_move_uci,
				 eval_before_type, eval_before_value, eval_after_type, eval_after_value,
				 eval_best_type, eval_best_value, classification, cp_loss, pv, depth, clock_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rev.GameID, pos.Ply, pos.FEN, pos.PlayedSAN, pos.BestMoveSAN, pos.BestMoveUCI,
			pos.EvalBefore.Kind, pos.EvalBefore.Value, pos.EvalAfter.Kind, pos.EvalAfter.Value,
			pos.EvalBest.Kind, pos.EvalBest.Value, pos.Classification, pos.CpLoss,
			strings.Join(pos.PV, " "), pos.Depth, clockMs); err != nil {
			return wrapIO("saving position review", err)
		}
	}

	return wrapIO("committing review "+rev.GameID, tx.Commit())
}

func (r *sqliteReviewRepo) Load(gameID string) (GameReviewData, bool, error) {
	row := r.db.QueryRowContext(r.ctx, `
		SELECT status, status_current_ply, status_total_plies, status_error,
		       white_accuracy, black_accuracy, total_plies, analyzed_plies,
		       analysis_depth, started_at, completed_at, winner
		FROM game_reviews WHERE game_id = ?`, gameID)

	var rev GameReviewData
	rev.GameID = gameID
	var curPly, totPlies, startedAt, completedAt sql.NullInt64
	var statusErr, winner sql.NullString
	var whiteAcc, blackAcc sql.NullFloat64

	if err := row.Scan(&rev.Status.Kind, &curPly, &totPlies, &statusErr,
		&whiteAcc, &blackAcc, &rev.TotalPlies, &rev.AnalyzedPlies, &rev.AnalysisDepth,
		&startedAt, &completedAt, &winner); err != nil {
		if err == sql.ErrNoRows {
			return GameReviewData{}, false, nil
		}
		return GameReviewData{}, false, wrapIO("loading review "+gameID, err)
	}

	if curPly.Valid {
		rev.Status.CurrentPly = &curPly.Int64
	}
	if totPlies.Valid {
		rev.Status.TotalPlies = &totPlies.Int64
	}
	if statusErr.Valid {
		rev.Status.ErrorMsg = &statusErr.String
	}
	if whiteAcc.Valid {
		rev.WhiteAccuracy = &whiteAcc.Float64
	}
	if blackAcc.Valid {
		rev.BlackAccuracy = &blackAcc.Float64
	}
	if startedAt.Valid {
		t := unixTime(startedAt.Int64)
		rev.StartedAt = &t
	}
	if completedAt.Valid {
		t := unixTime(completedAt.Int64)
		rev.CompletedAt = &t
	}
	if winner.Valid {
		rev.Winner = &winner.String
	}

	positions, err := r.loadPositions(gameID)
	if err != nil {
		return GameReviewData{}, false, err
	}
	rev.Positions = positions
	return rev, true, nil
}

func (r *sqliteReviewRepo) loadPositions(gameID string) ([]PositionReviewData, error) {
	rows, err := r.db.QueryContext(r.ctx, `
		SELECT ply, fen, played_san, best_move_san, best_move_uci,
		       eval_before_type, eval_before_value, eval_after_type, eval_after_value,
		       eval_best_type, eval_best_value, classification, cp_loss, pv, depth, clock_ms
		FROM position_reviews WHERE game_id = ? ORDER BY ply ASC`, gameID)
	if err != nil {
		return nil, wrapIO("loading position reviews for "+gameID, err)
	}
	defer rows.Close()

	var out []PositionReviewData
	for rows.Next() {
		var pos PositionReviewData
		var pv string
		var clockMs sql.NullInt64
		if err := rows.Scan(&pos.Ply, &pos.FEN, &pos.PlayedSAN, &pos.BestMoveSAN, &pos.BestMoveUCI,
			&pos.EvalBefore.Kind, &pos.EvalBefore.Value, &pos.EvalAfter.Kind, &pos.EvalAfter.Value,
			&pos.EvalBest.Kind, &pos.EvalBest.Value, &pos.Classification, &pos.CpLoss, &pv, &pos.Depth, &clockMs); err != nil {
			return nil, wrapIO("scanning position review row", err)
		}
		if pv != "" {
			pos.PV = strings.Fields(pv)
		}
		if clockMs.Valid {
			v := clockMs.Int64
			pos.ClockMs = &v
		}
		out = append(out, pos)
	}
	return out, wrapIO("iterating position reviews for "+gameID, rows.Err())
}

func (r *sqliteReviewRepo) Delete(gameID string) error {
	_, err := r.db.ExecContext(r.ctx, `DELETE FROM game_reviews WHERE game_id = ?`, gameID)
	return wrapIO("deleting review "+gameID, err)
}
