package review

import (
	"context"
	"fmt"
	"sync"

	"chesstty/pkg/persistence"

	"github.com/seekerror/logw"
)

// EngineLocator resolves the analysis engine binary path and args.
type EngineLocator func() (string, []string)

// ErrorKind is the review-level error taxonomy, per spec §7.
type ErrorKind int

const (
	KindDuplicate ErrorKind = iota
	KindAlreadyDone
	KindNotFound
	KindQueueFull
	KindPending
)

// Error wraps a review-manager failure with its taxonomy kind.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Manager is the review pipeline's coordinator, per spec §4.5: a bounded
// job channel, a fixed worker pool, and a mutex-guarded pending set.
type Manager struct {
	ctx context.Context
	cfg ReviewConfig

	finished persistence.FinishedGameRepo
	reviews  persistence.ReviewRepo
	advanced persistence.AdvancedRepo

	locateEngine EngineLocator

	mu      sync.Mutex
	pending map[string]struct{}
	jobs    chan string
}

// NewManager builds a Manager and starts its fixed worker pool.
func NewManager(ctx context.Context, cfg ReviewConfig, finished persistence.FinishedGameRepo, reviews persistence.ReviewRepo, advanced persistence.AdvancedRepo, locate EngineLocator) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	m := &Manager{
		ctx:          ctx,
		cfg:          cfg,
		finished:     finished,
		reviews:      reviews,
		advanced:     advanced,
		locateEngine: locate,
		pending:      make(map[string]struct{}),
		jobs:         make(chan string, cfg.WorkerCount*4),
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		go m.runWorker(ctx, m.jobs)
	}
	return m
}

// Enqueue applies the guards from spec §4.5 in order, then hands the game
// id to the worker pool.
func (m *Manager) Enqueue(gameID string) error {
	m.mu.Lock()
	if _, dup := m.pending[gameID]; dup {
		m.mu.Unlock()
		return &Error{Kind: KindDuplicate, Msg: fmt.Sprintf("review: %v is already queued or analyzing", gameID)}
	}
	m.mu.Unlock()

	existing, found, err := m.reviews.Load(gameID)
	if err != nil {
		return fmt.Errorf("review: checking existing review: %w", err)
	}
	if found && existing.Status.Kind == "Complete" {
		return &Error{Kind: KindAlreadyDone, Msg: fmt.Sprintf("review: %v already has a complete review", gameID)}
	}

	if _, ok, err := m.finished.Load(gameID); err != nil {
		return fmt.Errorf("review: loading finished game: %w", err)
	} else if !ok {
		return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("review: finished game %v not found", gameID)}
	}

	m.mu.Lock()
	m.pending[gameID] = struct{}{}
	m.mu.Unlock()

	select {
	case m.jobs <- gameID:
		return nil
	default:
		m.mu.Lock()
		delete(m.pending, gameID)
		m.mu.Unlock()
		return &Error{Kind: KindQueueFull, Msg: "review: job queue is full"}
	}
}

// GetStatus computes status per spec §4.5's rule: the pending set and an
// in-flight Analyzing write both take precedence over a stale stored value.
func (m *Manager) GetStatus(gameID string) (Status, error) {
	m.mu.Lock()
	_, isPending := m.pending[gameID]
	m.mu.Unlock()

	data, found, err := m.reviews.Load(gameID)
	if err != nil {
		return Status{}, fmt.Errorf("review: loading status: %w", err)
	}

	if isPending {
		if found && data.Status.Kind == "Analyzing" {
			return statusFromData(data.Status), nil
		}
		return Status{Kind: Queued}, nil
	}
	if !found {
		return Status{}, &Error{Kind: KindNotFound, Msg: fmt.Sprintf("review: no review for %v", gameID)}
	}
	return statusFromData(data.Status), nil
}

// GetReview returns the full stored review.
func (m *Manager) GetReview(gameID string) (GameReview, error) {
	data, found, err := m.reviews.Load(gameID)
	if err != nil {
		return GameReview{}, fmt.Errorf("review: loading review: %w", err)
	}
	if !found {
		return GameReview{}, &Error{Kind: KindNotFound, Msg: fmt.Sprintf("review: no review for %v", gameID)}
	}
	return reviewFromData(data), nil
}

// GetAdvanced returns the stored advanced analysis, if any.
func (m *Manager) GetAdvanced(gameID string) (persistence.AdvancedAnalysisData, error) {
	data, found, err := m.advanced.Load(gameID)
	if err != nil {
		return persistence.AdvancedAnalysisData{}, fmt.Errorf("review: loading advanced analysis: %w", err)
	}
	if !found {
		return persistence.AdvancedAnalysisData{}, &Error{Kind: KindNotFound, Msg: fmt.Sprintf("review: no advanced analysis for %v", gameID)}
	}
	return data, nil
}

// DeleteGame refuses while gameID is pending; otherwise cascades via the
// finished-game repo, per spec §4.5.
func (m *Manager) DeleteGame(gameID string) error {
	m.mu.Lock()
	_, pending := m.pending[gameID]
	m.mu.Unlock()
	if pending {
		return &Error{Kind: KindPending, Msg: fmt.Sprintf("review: %v is still pending analysis", gameID)}
	}
	return m.finished.Delete(gameID)
}

// RecoverOnStartup re-enqueues interrupted reviews and any finished game
// lacking a review, per spec §4.5. Failed reviews are never auto-retried.
func (m *Manager) RecoverOnStartup() {
	games, err := m.finished.List()
	if err != nil {
		logw.Errorf(m.ctx, "review: recovery: listing finished games: %v", err)
		return
	}

	for _, g := range games {
		data, found, err := m.reviews.Load(g.GameID)
		if err != nil {
			logw.Errorf(m.ctx, "review: recovery: loading review for %v: %v", g.GameID, err)
			continue
		}
		if !found {
			if err := m.Enqueue(g.GameID); err != nil {
				logw.Errorf(m.ctx, "review: recovery: enqueue %v: %v", g.GameID, err)
			}
			continue
		}
		switch data.Status.Kind {
		case "Analyzing", "Queued":
			if err := m.Enqueue(g.GameID); err != nil {
				logw.Errorf(m.ctx, "review: recovery: re-enqueue %v: %v", g.GameID, err)
			}
		}
	}
}
