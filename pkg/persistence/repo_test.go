package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"chesstty/pkg/chessmodel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, ":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, migrate(ctx, db))
	require.NoError(t, migrate(ctx, db))
}

func TestSuspendedRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewSuspendedRepo(ctx, db)

	rec := SuspendedSession{
		ID:       "sess-1",
		FEN:      chessmodel.Initial,
		ModeKind: 1,
		Timer:    TimerFields{WhiteMs: 60000, BlackMs: 60000},
		SavedAt:  time.Now(),
	}
	require.NoError(t, repo.Save(rec))

	got, ok, err := repo.Load("sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.FEN, got.FEN)
	assert.Equal(t, rec.ModeKind, got.ModeKind)

	list, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete("sess-1"))
	_, ok, err = repo.Load("sess-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPositionRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewPositionRepo(ctx, db)

	rec := StoredPosition{ID: "pos-1", Name: "Italian", FEN: chessmodel.Initial, Tags: []string{"opening", "e4"}}
	require.NoError(t, repo.Save(rec))

	got, ok, err := repo.Load("pos-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"opening", "e4"}, got.Tags)
}

func TestFinishedGameRepoSaveReplacesMoves(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewFinishedGameRepo(ctx, db)

	rec := FinishedGameData{
		GameID:   "game-1",
		StartFEN: chessmodel.Initial,
		Moves:    []MoveRecord{{UCI: "e2e4", SAN: "e4", FENAfter: chessmodel.Initial}},
		Result:   1,
		Reason:   "Checkmate",
		EndedAt:  time.Now(),
	}
	require.NoError(t, repo.Save(rec))

	got, ok, err := repo.Load("game-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Moves, 1)
	assert.Equal(t, "e2e4", got.Moves[0].UCI)

	rec.Moves = append(rec.Moves, MoveRecord{UCI: "e7e5", SAN: "e5"})
	require.NoError(t, repo.Save(rec))

	got, _, err = repo.Load("game-1")
	require.NoError(t, err)
	assert.Len(t, got.Moves, 2)
}

func TestReviewRepoSaveIncrementalAppendsPositions(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	finished := NewFinishedGameRepo(ctx, db)
	require.NoError(t, finished.Save(FinishedGameData{GameID: "game-1", StartFEN: chessmodel.Initial}))

	repo := NewReviewRepo(ctx, db)
	rev := GameReviewData{
		GameID: "game-1",
		Status: ReviewStatusData{Kind: "Analyzing"},
		Positions: []PositionReviewData{
			{Ply: 1, FEN: chessmodel.Initial, Classification: "Best"},
		},
	}
	require.NoError(t, repo.SaveIncremental(rev))

	rev.Positions = append(rev.Positions, PositionReviewData{Ply: 2, FEN: chessmodel.Initial, Classification: "Good"})
	rev.Status = ReviewStatusData{Kind: "Complete"}
	require.NoError(t, repo.SaveIncremental(rev))

	got, ok, err := repo.Load("game-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Complete", got.Status.Kind)
	assert.Len(t, got.Positions, 2)
}
