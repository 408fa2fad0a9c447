package persistence

import (
	"context"
	"database/sql"
	"strings"
)

// AdvancedRepo persists advanced per-game analyses, per spec §4.2 and the
// Supplemented Features note in the expanded spec. Save deletes-then-
// inserts children within one transaction, mirroring
// original_source/server/src/persistence/sqlite/advanced_repo.rs.
type AdvancedRepo interface {
	Save(a AdvancedAnalysisData) error
	Load(gameID string) (AdvancedAnalysisData, bool, error)
}

type sqliteAdvancedRepo struct {
	ctx context.Context
	db  *sql.DB
}

// NewAdvancedRepo builds the sqlite-backed AdvancedRepo.
func NewAdvancedRepo(ctx context.Context, db *sql.DB) AdvancedRepo {
	return &sqliteAdvancedRepo{ctx: ctx, db: db}
}

func (r *sqliteAdvancedRepo) Save(a AdvancedAnalysisData) error {
	tx, err := r.db.BeginTx(r.ctx, nil)
	if err != nil {
		return wrapIO("beginning advanced-analysis transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(r.ctx, `
		INSERT OR REPLACE INTO advanced_game_analyses
			(game_id, pipeline_version, shallow_depth, deep_depth, critical_positions_count, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.GameID, a.PipelineVersion, a.ShallowDepth, a.DeepDepth, a.CriticalPositionsCount, a.ComputedAt.Unix()); err != nil {
		return wrapIO("saving advanced analysis header "+a.GameID, err)
	}

	if _, err := tx.ExecContext(r.ctx, `DELETE FROM psychological_profiles WHERE game_id = ?`, a.GameID); err != nil {
		return wrapIO("clearing psychological profiles", err)
	}
	for _, p := range []PsychProfileData{a.WhitePsychology, a.BlackPsychology} {
		if err := insertProfile(r.ctx, tx, a.GameID, p); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(r.ctx, `DELETE FROM advanced_position_analyses WHERE game_id = ?`, a.GameID); err != nil {
		return wrapIO("clearing advanced position analyses", err)
	}
	for _, pos := range a.Positions {
		if _, err := tx.ExecContext(r.ctx, `
			INSERT INTO advanced_position_analyses (game_id, ply, tension, king_safety_white, king_safety_black, tactical_tags)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.GameID, pos.Ply, pos.Tension, pos.KingSafetyWhite, pos.KingSafetyBlack, strings.Join(pos.TacticalTags, ",")); err != nil {
			return wrapIO("saving advanced position analysis", err)
		}
	}

	return wrapIO("committing advanced analysis "+a.GameID, tx.Commit())
}

func insertProfile(ctx context.Context, tx *sql.Tx, gameID string, p PsychProfileData) error {
	var avgBlunder, avgGood sql.NullInt64
	if p.AvgBlunderTimeMs != nil {
		avgBlunder = sql.NullInt64{Int64: *p.AvgBlunderTimeMs, Valid: true}
	}
	if p.AvgGoodMoveTimeMs != nil {
		avgGood = sql.NullInt64{Int64: *p.AvgGoodMoveTimeMs, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO psychological_profiles
			(game_id, color, max_consecutive_errors, favorable_swings, unfavorable_swings,
			 max_momentum_streak, avg_blunder_time_ms, avg_good_move_time_ms,
			 opening_avg_cp_loss, middlegame_avg_cp_loss, endgame_avg_cp_loss)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gameID, p.Color, p.MaxConsecutiveErrors, p.FavorableSwings, p.UnfavorableSwings,
		p.MaxMomentumStreak, avgBlunder, avgGood, p.OpeningAvgCpLoss, p.MiddlegameAvgCpLoss, p.EndgameAvgCpLoss)
	return wrapIO("saving psychological profile", err)
}

func (r *sqliteAdvancedRepo) Load(gameID string) (AdvancedAnalysisData, bool, error) {
	row := r.db.QueryRowContext(r.ctx, `
		SELECT pipeline_version, shallow_depth, deep_depth, critical_positions_count, computed_at
		FROM advanced_game_analyses WHERE game_id = ?`, gameID)

	var a AdvancedAnalysisData
	a.GameID = gameID
	var computedAt int64
	if err := row.Scan(&a.PipelineVersion, &a.ShallowDepth, &a.DeepDepth, &a.CriticalPositionsCount, &computedAt); err != nil {
		if err == sql.ErrNoRows {
			return AdvancedAnalysisData{}, false, nil
		}
		return AdvancedAnalysisData{}, false, wrapIO("loading advanced analysis "+gameID, err)
	}
	a.ComputedAt = unixTime(computedAt)

	profiles, err := r.loadProfiles(gameID)
	if err != nil {
		return AdvancedAnalysisData{}, false, err
	}
	for _, p := range profiles {
		if p.Color == "White" {
			a.WhitePsychology = p
		} else {
			a.BlackPsychology = p
		}
	}

	positions, err := r.loadPositions(gameID)
	if err != nil {
		return AdvancedAnalysisData{}, false, err
	}
	a.Positions = positions
	return a, true, nil
}

func (r *sqliteAdvancedRepo) loadProfiles(gameID string) ([]PsychProfileData, error) {
	rows, err := r.db.QueryContext(r.ctx, `
		SELECT color, max_consecutive_errors, favorable_swings, unfavorable_swings,
		       max_momentum_streak, avg_blunder_time_ms, avg_good_move_time_ms,
		       opening_avg_cp_loss, middlegame_avg_cp_loss, endgame_avg_cp_loss
		FROM psychological_profiles WHERE game_id = ?`, gameID)
	if err != nil {
		return nil, wrapIO("loading psychological profiles for "+gameID, err)
	}
	defer rows.Close()

	var out []PsychProfileData
	for rows.Next() {
		var p PsychProfileData
		var avgBlunder, avgGood sql.NullInt64
		if err := rows.Scan(&p.Color, &p.MaxConsecutiveErrors, &p.FavorableSwings, &p.UnfavorableSwings,
			&p.MaxMomentumStreak, &avgBlunder, &avgGood, &p.OpeningAvgCpLoss, &p.MiddlegameAvgCpLoss, &p.EndgameAvgCpLoss); err != nil {
			return nil, wrapIO("scanning psychological profile row", err)
		}
		if avgBlunder.Valid {
			v := avgBlunder.Int64
			p.AvgBlunderTimeMs = &v
		}
		if avgGood.Valid {
			v := avgGood.Int64
			p.AvgGoodMoveTimeMs = &v
		}
		out = append(out, p)
	}
	return out, wrapIO("iterating psychological profiles for "+gameID, rows.Err())
}

func (r *sqliteAdvancedRepo) loadPositions(gameID string) ([]AdvancedPositionData, error) {
	rows, err := r.db.QueryContext(r.ctx, `
		SELECT ply, tension, king_safety_white, king_safety_black, tactical_tags
		FROM advanced_position_analyses WHERE game_id = ? ORDER BY ply ASC`, gameID)
	if err != nil {
		return nil, wrapIO("loading advanced positions for "+gameID, err)
	}
	defer rows.Close()

	var out []AdvancedPositionData
	for rows.Next() {
		var pos AdvancedPositionData
		var tags string
		if err := rows.Scan(&pos.Ply, &pos.Tension, &pos.KingSafetyWhite, &pos.KingSafetyBlack, &tags); err != nil {
			return nil, wrapIO("scanning advanced position row", err)
		}
		pos.TacticalTags = splitTags(tags)
		out = append(out, pos)
	}
	return out, wrapIO("iterating advanced positions for "+gameID, rows.Err())
}
