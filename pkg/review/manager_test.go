package review

import (
	"context"
	"sync"
	"testing"

	"chesstty/pkg/persistence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFinished and fakeReviews are minimal in-memory stand-ins for the
// sqlite-backed repos, enough to exercise Manager's guard logic without a
// database.
type fakeFinished struct {
	mu    sync.Mutex
	games map[string]persistence.FinishedGameData
}

func newFakeFinished() *fakeFinished { return &fakeFinished{games: map[string]persistence.FinishedGameData{}} }

func (f *fakeFinished) Save(rec persistence.FinishedGameData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.games[rec.GameID] = rec
	return nil
}
func (f *fakeFinished) Load(id string) (persistence.FinishedGameData, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[id]
	return g, ok, nil
}
func (f *fakeFinished) List() ([]persistence.FinishedGameData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]persistence.FinishedGameData, 0, len(f.games))
	for _, g := range f.games {
		out = append(out, g)
	}
	return out, nil
}
func (f *fakeFinished) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.games, id)
	return nil
}
func (f *fakeFinished) HasReview(id string) (bool, error) { return false, nil }

type fakeReviews struct {
	mu      sync.Mutex
	reviews map[string]persistence.GameReviewData
}

func newFakeReviews() *fakeReviews { return &fakeReviews{reviews: map[string]persistence.GameReviewData{}} }

func (f *fakeReviews) SaveIncremental(rev persistence.GameReviewData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews[rev.GameID] = rev
	return nil
}
func (f *fakeReviews) Load(id string) (persistence.GameReviewData, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[id]
	return r, ok, nil
}
func (f *fakeReviews) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reviews, id)
	return nil
}

type fakeAdvanced struct{}

func (fakeAdvanced) Save(a persistence.AdvancedAnalysisData) error { return nil }
func (fakeAdvanced) Load(id string) (persistence.AdvancedAnalysisData, bool, error) {
	return persistence.AdvancedAnalysisData{}, false, nil
}

func newTestManager(t *testing.T, finished *fakeFinished, reviews *fakeReviews) *Manager {
	t.Helper()
	cfg := ReviewConfig{WorkerCount: 1, AnalysisDepth: 4}
	locate := func() (string, []string) { return "", nil }
	m := NewManager(context.Background(), cfg, finished, reviews, fakeAdvanced{}, locate)
	return m
}

func TestEnqueueRejectsUnknownGame(t *testing.T) {
	m := newTestManager(t, newFakeFinished(), newFakeReviews())
	err := m.Enqueue("missing")
	require.Error(t, err)
	rerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, rerr.Kind)
}

func TestEnqueueRejectsDuplicatePending(t *testing.T) {
	finished := newFakeFinished()
	finished.Save(persistence.FinishedGameData{GameID: "g1"})
	reviews := newFakeReviews()
	reviews.SaveIncremental(persistence.GameReviewData{GameID: "g1", Status: persistence.ReviewStatusData{Kind: "Analyzing"}})

	m := &Manager{
		cfg:          ReviewConfig{WorkerCount: 1},
		finished:     finished,
		reviews:      reviews,
		advanced:     fakeAdvanced{},
		locateEngine: func() (string, []string) { return "", nil },
		pending:      map[string]struct{}{"g1": {}},
		jobs:         make(chan string, 1),
	}

	err := m.Enqueue("g1")
	require.Error(t, err)
	rerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindDuplicate, rerr.Kind)
}

func TestEnqueueRejectsAlreadyComplete(t *testing.T) {
	finished := newFakeFinished()
	finished.Save(persistence.FinishedGameData{GameID: "g1"})
	reviews := newFakeReviews()
	reviews.SaveIncremental(persistence.GameReviewData{GameID: "g1", Status: persistence.ReviewStatusData{Kind: "Complete"}})

	m := newTestManager(t, finished, reviews)
	err := m.Enqueue("g1")
	require.Error(t, err)
	rerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindAlreadyDone, rerr.Kind)
}

func TestDeleteGameRefusesWhilePending(t *testing.T) {
	finished := newFakeFinished()
	finished.Save(persistence.FinishedGameData{GameID: "g1"})
	m := &Manager{
		finished: finished,
		pending:  map[string]struct{}{"g1": {}},
	}
	err := m.DeleteGame("g1")
	require.Error(t, err)
	rerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindPending, rerr.Kind)
}
