package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chesstty/pkg/persistence"

	"github.com/google/uuid"
	"github.com/seekerror/logw"
)

// EngineLocator resolves the UCI engine binary path, injected so the
// manager never hardcodes a filesystem layout.
type EngineLocator func() (string, []string, error)

// Manager is the process-wide session registry, per spec §4.4: a
// `map[uuid.UUID]Handle` behind one RWMutex held only for lookup/insert/
// remove, never across actor calls.
type Manager struct {
	ctx context.Context

	mu       sync.RWMutex
	sessions map[uuid.UUID]Handle

	suspended persistence.SuspendedRepo
	finished  persistence.FinishedGameRepo

	locateEngine EngineLocator

	timerStop chan struct{}
}

// NewManager builds a Manager and starts its shared timer driver.
func NewManager(ctx context.Context, suspended persistence.SuspendedRepo, finished persistence.FinishedGameRepo, locate EngineLocator) *Manager {
	m := &Manager{
		ctx:          ctx,
		sessions:     make(map[uuid.UUID]Handle),
		suspended:    suspended,
		finished:     finished,
		locateEngine: locate,
		timerStop:    make(chan struct{}),
	}
	go m.runTimerDriver(100 * time.Millisecond)
	return m
}

// Create allocates a UUID, spawns the actor, and returns its handle and
// initial snapshot, per spec §4.4 Create.
func (m *Manager) Create(fen string, mode GameMode, timer TimerState, engine EngineConfig) (Handle, Snapshot) {
	id := uuid.New()

	var path string
	var args []string
	if engine.Enabled && m.locateEngine != nil {
		if p, a, err := m.locateEngine(); err == nil {
			path, args = p, a
		}
	}

	h, snap := Start(m.ctx, StartOptions{
		ID:         id,
		FEN:        fen,
		Mode:       mode,
		Timer:      timer,
		Engine:     engine,
		EnginePath: path,
		EngineArgs: args,
	})

	m.mu.Lock()
	m.sessions[id] = h
	m.mu.Unlock()

	logw.Infof(m.ctx, "session manager: created session %v", id)
	return h, snap
}

// Lookup returns the handle for id, or ok=false if it does not exist (or
// has already been closed).
func (m *Manager) Lookup(id uuid.UUID) (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.sessions[id]
	return h, ok
}

// Close removes the handle; if the session ended, it is archived as a
// finished game before the actor is told to shut down, per spec §4.4.
func (m *Manager) Close(id uuid.UUID) error {
	h, ok := m.take(id)
	if !ok {
		return newErr(KindNotFound, "session %v does not exist", id)
	}

	reply := make(chan Snapshot, 1)
	h.Send(GetSnapshot{Reply: reply})
	snap := <-reply

	if snap.Phase == Ended {
		if err := m.archiveFinished(snap); err != nil {
			logw.Errorf(m.ctx, "session manager: archiving finished game %v: %v", id, err)
		}
	}

	done := make(chan struct{})
	h.Send(Shutdown{Done: done})
	<-done
	return nil
}

func (m *Manager) take(id uuid.UUID) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	return h, ok
}

func (m *Manager) archiveFinished(snap Snapshot) error {
	if m.finished == nil {
		return nil
	}
	ended, _ := snap.Ended.V()

	moves := make([]persistence.MoveRecord, len(snap.History))
	for i, rec := range snap.History {
		moves[i] = persistence.MoveRecord{
			UCI:           rec.Move.UCI(),
			SAN:           rec.SAN,
			PieceMoved:    rec.PieceMoved.String(),
			PieceCaptured: rec.PieceCaptured.String(),
			FENAfter:      rec.FENAfter,
		}
		if ms, ok := rec.ClockMs.V(); ok {
			moves[i].ClockMs = &ms
		}
	}

	data := persistence.FinishedGameData{
		GameID:   snap.ID.String(),
		StartFEN: snap.StartFEN,
		Moves:    moves,
		Result:   int(ended.Result),
		Reason:   ended.Reason,
		EndedAt:  time.Now(),
	}
	return m.finished.Save(data)
}

// Suspend captures the current snapshot, persists it, and closes the
// session without archiving it as finished, per spec §4.4 Suspend.
func (m *Manager) Suspend(id uuid.UUID) error {
	h, ok := m.take(id)
	if !ok {
		return newErr(KindNotFound, "session %v does not exist", id)
	}

	reply := make(chan Snapshot, 1)
	h.Send(GetSnapshot{Reply: reply})
	snap := <-reply

	if m.suspended != nil {
		rec := persistence.SuspendedSession{
			ID:       snap.ID.String(),
			FEN:      snap.FEN,
			ModeKind: int(snap.Mode.Kind),
			Timer:    persistence.TimerFields{WhiteMs: snap.Timer.WhiteRemainingMs, BlackMs: snap.Timer.BlackRemainingMs},
			SavedAt:  time.Now(),
		}
		if err := m.suspended.Save(rec); err != nil {
			return fmt.Errorf("session manager: suspend save: %w", err)
		}
	}

	done := make(chan struct{})
	h.Send(Shutdown{Done: done})
	<-done
	return nil
}

// Resume loads and deletes a suspended record, then creates a fresh
// session from its FEN and mode, per spec §4.4 Resume.
func (m *Manager) Resume(id uuid.UUID) (Handle, Snapshot, error) {
	if m.suspended == nil {
		return Handle{}, Snapshot{}, newErr(KindNotFound, "no suspended-session store configured")
	}
	rec, ok, err := m.suspended.Load(id.String())
	if err != nil {
		return Handle{}, Snapshot{}, fmt.Errorf("session manager: resume load: %w", err)
	}
	if !ok {
		return Handle{}, Snapshot{}, newErr(KindNotFound, "no suspended session %v", id)
	}
	if err := m.suspended.Delete(id.String()); err != nil {
		logw.Errorf(m.ctx, "session manager: deleting suspended record %v: %v", id, err)
	}

	mode := GameMode{Kind: GameModeKind(rec.ModeKind)}
	timer := TimerState{WhiteRemainingMs: rec.Timer.WhiteMs, BlackRemainingMs: rec.Timer.BlackMs}
	h, snap := m.Create(rec.FEN, mode, timer, EngineConfig{})
	return h, snap, nil
}

// IDs returns every currently live session id, used by the server's
// graceful shutdown and by diagnostics.
func (m *Manager) IDs() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// runTimerDriver is the single shared clock task, per spec §4.4: it is the
// only producer of Tick, fanned to every live session's inbox. Whether a
// given session actually acts on the tick (Playing + timed) is the actor's
// own decision, not the driver's.
func (m *Manager) runTimerDriver(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.mu.RLock()
			handles := make([]Handle, 0, len(m.sessions))
			for _, h := range m.sessions {
				handles = append(handles, h)
			}
			m.mu.RUnlock()

			for _, h := range handles {
				h.Send(Tick{Now: now})
			}
		case <-m.timerStop:
			return
		case <-m.ctx.Done():
			return
		}
	}
}

// Shutdown stops the timer driver. It does not close live sessions; callers
// typically Close each session explicitly during graceful shutdown.
func (m *Manager) Shutdown() {
	close(m.timerStop)
}
