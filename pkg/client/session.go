package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"chesstty/pkg/rpc"
	"chesstty/pkg/session"

	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
)

// GameSession is the client-side view of one server session. Per the
// redesign note in spec §9, it never computes board state itself: the
// cached snapshot is replaced wholesale by each StateChanged snapshot and by
// each MakeMove result; a GameEnded event sets only its Ended field, and an
// ErrorEvent sets lastErr.
type GameSession struct {
	conn *Conn
	id   string

	mu       sync.RWMutex
	snapshot session.Snapshot
	lastErr  string

	events <-chan rpc.Envelope
	done   chan struct{}
}

// OpenSession creates a new session on the server and subscribes to its
// event stream.
func OpenSession(ctx context.Context, conn *Conn, req rpc.CreateSessionRequest) (*GameSession, error) {
	var snap session.Snapshot
	if err := conn.Call(ctx, rpc.MethodCreateSession, req, &snap); err != nil {
		return nil, err
	}
	return attach(ctx, conn, snap)
}

// AttachSession subscribes to an already-existing server session, seeded
// with a snapshot the caller already fetched (e.g. via ResumeSuspended).
func AttachSession(ctx context.Context, conn *Conn, initial session.Snapshot) (*GameSession, error) {
	return attach(ctx, conn, initial)
}

func attach(ctx context.Context, conn *Conn, snap session.Snapshot) (*GameSession, error) {
	id := snap.ID.String()
	gs := &GameSession{
		conn:     conn,
		id:       id,
		snapshot: snap,
		done:     make(chan struct{}),
	}

	var sub struct{}
	if err := conn.Call(ctx, rpc.MethodStreamSessionEvents, rpc.SessionIDRequest{SessionID: id}, &sub); err != nil {
		return nil, fmt.Errorf("client: subscribing to session %v: %w", id, err)
	}
	gs.events = conn.subscribe(id)
	go gs.pump(ctx)
	return gs, nil
}

func (gs *GameSession) pump(ctx context.Context) {
	defer close(gs.done)
	defer gs.conn.unsubscribe(gs.id)

	for env := range gs.events {
		if env.Kind == rpc.KindDropped {
			logw.Errorf(ctx, "client: session %v event subscription dropped (too slow)", gs.id)
			return
		}
		gs.apply(ctx, env)
	}
}

// apply updates cached state from each server event; MakeMove is the only
// other writer, storing its call result.
func (gs *GameSession) apply(ctx context.Context, env rpc.Envelope) {
	switch env.Method {
	case "StateChanged":
		var ev session.StateChanged
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			logw.Errorf(ctx, "client: decoding StateChanged: %v", err)
			return
		}
		gs.mu.Lock()
		gs.snapshot = ev.Snapshot
		gs.mu.Unlock()

	case "GameEnded":
		var ev session.GameEnded
		if err := json.Unmarshal(env.Payload, &ev); err == nil {
			gs.mu.Lock()
			gs.snapshot.Ended = lang.Some(ev.Result)
			gs.mu.Unlock()
		}

	case "ErrorEvent":
		var ev session.ErrorEvent
		if err := json.Unmarshal(env.Payload, &ev); err == nil {
			gs.mu.Lock()
			gs.lastErr = ev.Msg
			gs.mu.Unlock()
		}

	case "EngineThinking", "UciMessage":
		// Transient engine telemetry; nothing cached for these beyond what
		// the next StateChanged snapshot already reflects.
	}
}

// Snapshot returns the last cached server snapshot.
func (gs *GameSession) Snapshot() session.Snapshot {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.snapshot
}

// LastError returns the last ErrorEvent message seen, if any.
func (gs *GameSession) LastError() string {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.lastErr
}

// MakeMove sends a move and waits for the server's response, which arrives
// both as this call's result and as a StateChanged event; the two may
// arrive in either order.
func (gs *GameSession) MakeMove(ctx context.Context, uci string) error {
	var snap session.Snapshot
	err := gs.conn.Call(ctx, rpc.MethodMakeMove, rpc.MoveRequest{SessionID: gs.id, UCI: uci}, &snap)
	if err == nil {
		gs.mu.Lock()
		gs.snapshot = snap
		gs.mu.Unlock()
	}
	return err
}

// Close unsubscribes and closes the session on the server.
func (gs *GameSession) Close(ctx context.Context) error {
	return gs.conn.Call(ctx, rpc.MethodCloseSession, rpc.SessionIDRequest{SessionID: gs.id}, nil)
}
