package persistence

import (
	"context"
	"database/sql"
)

// SuspendedRepo persists paused sessions, per spec §4.2.
type SuspendedRepo interface {
	Save(rec SuspendedSession) error
	Load(id string) (SuspendedSession, bool, error)
	List() ([]SuspendedSession, error)
	Delete(id string) error
}

type sqliteSuspendedRepo struct {
	ctx context.Context
	db  *sql.DB
}

// NewSuspendedRepo builds the sqlite-backed SuspendedRepo.
func NewSuspendedRepo(ctx context.Context, db *sql.DB) SuspendedRepo {
	return &sqliteSuspendedRepo{ctx: ctx, db: db}
}

func (r *sqliteSuspendedRepo) Save(rec SuspendedSession) error {
	_, err := r.db.ExecContext(r.ctx, `
		INSERT OR REPLACE INTO suspended_sessions (id, fen, mode_kind, white_ms, black_ms, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FEN, rec.ModeKind, rec.Timer.WhiteMs, rec.Timer.BlackMs, rec.SavedAt.Unix())
	return wrapIO("saving suspended session "+rec.ID, err)
}

func (r *sqliteSuspendedRepo) Load(id string) (SuspendedSession, bool, error) {
	row := r.db.QueryRowContext(r.ctx, `
		SELECT id, fen, mode_kind, white_ms, black_ms, saved_at
		FROM suspended_sessions WHERE id = ?`, id)

	var rec SuspendedSession
	var savedAt int64
	if err := row.Scan(&rec.ID, &rec.FEN, &rec.ModeKind, &rec.Timer.WhiteMs, &rec.Timer.BlackMs, &savedAt); err != nil {
		if err == sql.ErrNoRows {
			return SuspendedSession{}, false, nil
		}
		return SuspendedSession{}, false, wrapIO("loading suspended session "+id, err)
	}
	rec.SavedAt = unixTime(savedAt)
	return rec, true, nil
}

func (r *sqliteSuspendedRepo) List() ([]SuspendedSession, error) {
	rows, err := r.db.QueryContext(r.ctx, `
		SELECT id, fen, mode_kind, white_ms, black_ms, saved_at FROM suspended_sessions`)
	if err != nil {
		return nil, wrapIO("listing suspended sessions", err)
	}
	defer rows.Close()

	var out []SuspendedSession
	for rows.Next() {
		var rec SuspendedSession
		var savedAt int64
		if err := rows.Scan(&rec.ID, &rec.FEN, &rec.ModeKind, &rec.Timer.WhiteMs, &rec.Timer.BlackMs, &savedAt); err != nil {
			return nil, wrapIO("scanning suspended session row", err)
		}
		rec.SavedAt = unixTime(savedAt)
		out = append(out, rec)
	}
	return out, wrapIO("iterating suspended sessions", rows.Err())
}

func (r *sqliteSuspendedRepo) Delete(id string) error {
	_, err := r.db.ExecContext(r.ctx, `DELETE FROM suspended_sessions WHERE id = ?`, id)
	return wrapIO("deleting suspended session "+id, err)
}
