package persistence

import (
	"context"
	"database/sql"
	"strings"
)

// PositionRepo persists user-named positions, per spec §4.2/§3.
type PositionRepo interface {
	Save(rec StoredPosition) error
	Load(id string) (StoredPosition, bool, error)
	List() ([]StoredPosition, error)
	Delete(id string) error
}

type sqlitePositionRepo struct {
	ctx context.Context
	db  *sql.DB
}

// NewPositionRepo builds the sqlite-backed PositionRepo.
func NewPositionRepo(ctx context.Context, db *sql.DB) PositionRepo {
	return &sqlitePositionRepo{ctx: ctx, db: db}
}

func (r *sqlitePositionRepo) Save(rec StoredPosition) error {
	_, err := r.db.ExecContext(r.ctx, `
		INSERT OR REPLACE INTO stored_positions (id, name, fen, tags, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.FEN, strings.Join(rec.Tags, ","), rec.CreatedAt.Unix())
	return wrapIO("saving position "+rec.ID, err)
}

func (r *sqlitePositionRepo) Load(id string) (StoredPosition, bool, error) {
	row := r.db.QueryRowContext(r.ctx, `
		SELECT id, name, fen, tags, created_at FROM stored_positions WHERE id = ?`, id)

	var rec StoredPosition
	var tags string
	var createdAt int64
	if err := row.Scan(&rec.ID, &rec.Name, &rec.FEN, &tags, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return StoredPosition{}, false, nil
		}
		return StoredPosition{}, false, wrapIO("loading position "+id, err)
	}
	rec.Tags = splitTags(tags)
	rec.CreatedAt = unixTime(createdAt)
	return rec, true, nil
}

func (r *sqlitePositionRepo) List() ([]StoredPosition, error) {
	rows, err := r.db.QueryContext(r.ctx, `SELECT id, name, fen, tags, created_at FROM stored_positions`)
	if err != nil {
		return nil, wrapIO("listing positions", err)
	}
	defer rows.Close()

	var out []StoredPosition
	for rows.Next() {
		var rec StoredPosition
		var tags string
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.FEN, &tags, &createdAt); err != nil {
			return nil, wrapIO("scanning position row", err)
		}
		rec.Tags = splitTags(tags)
		rec.CreatedAt = unixTime(createdAt)
		out = append(out, rec)
	}
	return out, wrapIO("iterating positions", rows.Err())
}

func (r *sqlitePositionRepo) Delete(id string) error {
	_, err := r.db.ExecContext(r.ctx, `DELETE FROM stored_positions WHERE id = ?`, id)
	return wrapIO("deleting position "+id, err)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
