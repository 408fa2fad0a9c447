package session

import (
	"context"
	"sync"
	"testing"

	"chesstty/pkg/chessmodel"
	"chesstty/pkg/persistence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSuspendedRepo struct {
	mu   sync.Mutex
	recs map[string]persistence.SuspendedSession
}

func newFakeSuspendedRepo() *fakeSuspendedRepo {
	return &fakeSuspendedRepo{recs: map[string]persistence.SuspendedSession{}}
}

func (f *fakeSuspendedRepo) Save(rec persistence.SuspendedSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[rec.ID] = rec
	return nil
}
func (f *fakeSuspendedRepo) Load(id string) (persistence.SuspendedSession, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	return r, ok, nil
}
func (f *fakeSuspendedRepo) List() ([]persistence.SuspendedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]persistence.SuspendedSession, 0, len(f.recs))
	for _, r := range f.recs {
		out = append(out, r)
	}
	return out, nil
}
func (f *fakeSuspendedRepo) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recs, id)
	return nil
}

type fakeFinishedRepo struct {
	mu    sync.Mutex
	games map[string]persistence.FinishedGameData
}

func newFakeFinishedRepo() *fakeFinishedRepo {
	return &fakeFinishedRepo{games: map[string]persistence.FinishedGameData{}}
}

func (f *fakeFinishedRepo) Save(rec persistence.FinishedGameData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.games[rec.GameID] = rec
	return nil
}
func (f *fakeFinishedRepo) Load(id string) (persistence.FinishedGameData, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[id]
	return g, ok, nil
}
func (f *fakeFinishedRepo) List() ([]persistence.FinishedGameData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]persistence.FinishedGameData, 0, len(f.games))
	for _, g := range f.games {
		out = append(out, g)
	}
	return out, nil
}
func (f *fakeFinishedRepo) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.games, id)
	return nil
}
func (f *fakeFinishedRepo) HasReview(id string) (bool, error) { return false, nil }

func newTestSessionManager() (*Manager, *fakeSuspendedRepo, *fakeFinishedRepo) {
	suspended := newFakeSuspendedRepo()
	finished := newFakeFinishedRepo()
	m := NewManager(context.Background(), suspended, finished, nil)
	return m, suspended, finished
}

func TestManagerCreateAndLookup(t *testing.T) {
	m, _, _ := newTestSessionManager()
	h, snap := m.Create(chessmodel.Initial, GameMode{Kind: HumanVsHuman}, TimerState{}, EngineConfig{})
	defer m.Shutdown()

	got, ok := m.Lookup(h.ID)
	require.True(t, ok)
	assert.Equal(t, h.ID, got.ID)
	assert.Equal(t, chessmodel.Initial, snap.FEN)
}

func TestManagerCloseArchivesEndedGame(t *testing.T) {
	m, _, finished := newTestSessionManager()
	defer m.Shutdown()

	h, _ := m.Create(chessmodel.Initial, GameMode{Kind: HumanVsHuman}, TimerState{}, EngineConfig{})

	reply := make(chan error, 1)
	h.Send(MakeMove{Move: mustMove(t, "f2f3"), Reply: reply})
	require.NoError(t, <-reply)
	reply = make(chan error, 1)
	h.Send(MakeMove{Move: mustMove(t, "e7e5"), Reply: reply})
	require.NoError(t, <-reply)
	reply = make(chan error, 1)
	h.Send(MakeMove{Move: mustMove(t, "g2g4"), Reply: reply})
	require.NoError(t, <-reply)
	reply = make(chan error, 1)
	h.Send(MakeMove{Move: mustMove(t, "d8h4"), Reply: reply})
	require.NoError(t, <-reply)

	require.NoError(t, m.Close(h.ID))

	_, ok := m.Lookup(h.ID)
	assert.False(t, ok)

	game, ok, err := finished.Load(h.ID.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int(chessmodel.BlackWins), game.Result)
	assert.Len(t, game.Moves, 4)
}

func TestManagerSuspendAndResume(t *testing.T) {
	m, suspended, _ := newTestSessionManager()
	defer m.Shutdown()

	h, _ := m.Create(chessmodel.Initial, GameMode{Kind: HumanVsHuman}, TimerState{WhiteRemainingMs: 1000, BlackRemainingMs: 1000}, EngineConfig{})
	reply := make(chan error, 1)
	h.Send(MakeMove{Move: mustMove(t, "e2e4"), Reply: reply})
	require.NoError(t, <-reply)

	require.NoError(t, m.Suspend(h.ID))
	_, ok := m.Lookup(h.ID)
	assert.False(t, ok)

	rec, ok, err := suspended.Load(h.ID.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, rec.FEN)

	newHandle, snap, err := m.Resume(h.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.FEN, snap.FEN)
	_, ok = m.Lookup(newHandle.ID)
	assert.True(t, ok)
}
