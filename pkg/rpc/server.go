package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"chesstty/pkg/chessmodel"
	"chesstty/pkg/persistence"
	"chesstty/pkg/review"
	"chesstty/pkg/session"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/seekerror/build"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
)

// sendBufferSize bounds each connection's outbound envelope queue, ahead of
// the per-session bounded subscriber buffer enforced inside the bus itself.
const sendBufferSize = 64

// version is reported by GetVersion, grounded in the teacher's
// pkg/engine.version build identifier.
var version = build.NewVersion(0, 1, 0)

// Server answers every unary call from spec §4.6 and upgrades
// StreamSessionEvents connections into long-lived subscriptions. It holds no
// state of its own beyond references to the two domain managers and the
// handful of repos that don't live behind a manager.
type Server struct {
	upgrader websocket.Upgrader

	sessions *session.Manager
	reviews  *review.Manager
	positions persistence.PositionRepo
	suspended persistence.SuspendedRepo
	finished  persistence.FinishedGameRepo
	advanced  persistence.AdvancedRepo
}

// NewServer wires a Server to the process-wide managers and repos.
func NewServer(sessions *session.Manager, reviews *review.Manager, positions persistence.PositionRepo, suspended persistence.SuspendedRepo, finished persistence.FinishedGameRepo, advanced persistence.AdvancedRepo) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The client is a dedicated native client, not a browser page
			// served from a different origin, so origin checks are not a
			// meaningful boundary here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions:  sessions,
		reviews:   reviews,
		positions: positions,
		suspended: suspended,
		finished:  finished,
		advanced:  advanced,
	}
}

// ServeHTTP upgrades the connection and runs its read/write loops until the
// client disconnects, per spec §4.6: one websocket connection per client.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logw.Errorf(r.Context(), "rpc: upgrade failed: %v", err)
		return
	}
	s.serveConn(r.Context(), conn)
}

func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	out := newConnWriter(sendBufferSize)
	go s.writeLoop(conn, out)

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			out.Close()
			return
		}

		switch env.Kind {
		case KindCall:
			if env.Method == MethodStreamSessionEvents {
				s.handleStream(ctx, env, out)
				continue
			}
			go s.dispatch(ctx, env, out)
		default:
			out.Write(Envelope{ID: env.ID, Kind: KindError, Error: fmt.Sprintf("rpc: unsupported envelope kind %q", env.Kind)})
		}
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, out *connWriter) {
	for env := range out.send {
		if err := conn.WriteJSON(env); err != nil {
			return
		}
	}
}

func (s *Server) handleStream(ctx context.Context, env Envelope, out *connWriter) {
	var req SessionIDRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		out.Write(errEnvelope(env.ID, err))
		return
	}
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		out.Write(errEnvelope(env.ID, err))
		return
	}
	h, ok := s.sessions.Lookup(id)
	if !ok {
		out.Write(errEnvelope(env.ID, fmt.Errorf("rpc: session %v not found", id)))
		return
	}
	out.Write(Envelope{ID: env.ID, Kind: KindResult, SessionID: req.SessionID})
	go streamSession(ctx, h, out)
}

func errEnvelope(id string, err error) Envelope {
	return Envelope{ID: id, Kind: KindError, Error: err.Error()}
}

// dispatch decodes env.Payload per env.Method, invokes the matching manager
// or repo call, and writes exactly one KindResult or KindError envelope
// carrying the same ID, per spec §4.6's call/response correlation rule.
func (s *Server) dispatch(ctx context.Context, env Envelope, out *connWriter) {
	payload, err := s.call(ctx, env.Method, env.Payload)
	if err != nil {
		out.Write(errEnvelope(env.ID, err))
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		out.Write(errEnvelope(env.ID, err))
		return
	}
	out.Write(Envelope{ID: env.ID, Kind: KindResult, Method: env.Method, Payload: raw})
}

func (s *Server) call(ctx context.Context, method string, payload json.RawMessage) (any, error) {
	switch method {
	case MethodGetVersion:
		return VersionResponse{Version: fmt.Sprintf("%v", version)}, nil

	case MethodCreateSession:
		return s.createSession(payload)
	case MethodCloseSession:
		return s.withSessionID(payload, func(id uuid.UUID) (any, error) { return nil, s.sessions.Close(id) })
	case MethodMakeMove:
		return s.makeMove(payload)
	case MethodGetLegalMoves:
		return s.getLegalMoves(payload)
	case MethodUndoMove:
		return s.sendSessionCmd(payload, func(reply chan error) session.Command { return session.UndoMove{Reply: reply} })
	case MethodResetGame:
		return s.resetGame(payload)
	case MethodSetEngine:
		return s.setEngine(payload)
	case MethodPause:
		return s.sendSessionCmd(payload, func(reply chan error) session.Command { return session.Pause{Reply: reply} })
	case MethodUnpause:
		return s.sendSessionCmd(payload, func(reply chan error) session.Command { return session.Unpause{Reply: reply} })

	case MethodListSuspended:
		return s.suspended.List()
	case MethodResumeSuspended:
		return s.resumeSuspended(payload)
	case MethodDeleteSuspended:
		return s.withSessionID(payload, func(id uuid.UUID) (any, error) { return nil, s.suspended.Delete(id.String()) })

	case MethodListPositions:
		return s.positions.List()
	case MethodSavePosition:
		return s.savePosition(payload)
	case MethodDeletePosition:
		return s.deleteByID(payload, s.positions.Delete)

	case MethodListFinishedGames:
		return s.finished.List()
	case MethodDeleteFinishedGame:
		return s.deleteByGameID(payload, func(id string) error { return s.reviews.DeleteGame(id) })

	case MethodEnqueueReview:
		return s.withGameID(payload, func(id string) (any, error) { return nil, s.reviews.Enqueue(id) })
	case MethodGetReviewStatus:
		return s.withGameID(payload, func(id string) (any, error) { return s.reviews.GetStatus(id) })
	case MethodGetReview:
		return s.withGameID(payload, func(id string) (any, error) { return s.reviews.GetReview(id) })
	case MethodGetAdvancedAnalysis:
		return s.withGameID(payload, func(id string) (any, error) { return s.reviews.GetAdvanced(id) })

	default:
		return nil, fmt.Errorf("rpc: unknown method %q", method)
	}
}

func (s *Server) createSession(payload json.RawMessage) (any, error) {
	var req CreateSessionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	fen := req.FEN
	if fen == "" {
		fen = chessmodel.Initial
	}
	mode := session.GameMode{Kind: session.GameModeKind(req.ModeKind)}
	if req.HumanIsWhite != nil {
		side := chessmodel.Black
		if *req.HumanIsWhite {
			side = chessmodel.White
		}
		mode.HumanSide = lang.Some(side)
	}
	timer := session.TimerState{WhiteRemainingMs: req.WhiteMs, BlackRemainingMs: req.BlackMs}
	engine := session.EngineConfig{Enabled: req.EngineEnabled, Skill: req.EngineSkill}

	_, snap := s.sessions.Create(fen, mode, timer, engine)
	return snap, nil
}

func (s *Server) makeMove(payload json.RawMessage) (any, error) {
	var req MoveRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, err
	}
	h, ok := s.sessions.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("rpc: session %v not found", id)
	}
	mv, err := chessmodel.ParseUCIMove(req.UCI)
	if err != nil {
		return nil, err
	}
	reply := make(chan error, 1)
	h.Send(session.MakeMove{Move: mv, Reply: reply})
	if err := <-reply; err != nil {
		return nil, err
	}
	return s.snapshotOf(h), nil
}

func (s *Server) getLegalMoves(payload json.RawMessage) (any, error) {
	var req SessionIDRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, err
	}
	h, ok := s.sessions.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("rpc: session %v not found", id)
	}
	snap := s.snapshotOf(h)
	moves, err := chessmodel.LegalMoves(snap.FEN)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(moves))
	for i, mv := range moves {
		out[i] = mv.UCI()
	}
	return out, nil
}

func (s *Server) resetGame(payload json.RawMessage) (any, error) {
	var req struct {
		SessionID string `json:"session_id"`
		FEN       string `json:"fen,omitempty"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, err
	}
	h, ok := s.sessions.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("rpc: session %v not found", id)
	}
	var fen lang.Optional[string]
	if req.FEN != "" {
		fen = lang.Some(req.FEN)
	}
	reply := make(chan error, 1)
	h.Send(session.ResetGame{FEN: fen, Reply: reply})
	if err := <-reply; err != nil {
		return nil, err
	}
	return s.snapshotOf(h), nil
}

func (s *Server) setEngine(payload json.RawMessage) (any, error) {
	var req struct {
		SessionID string `json:"session_id"`
		Enabled   bool   `json:"enabled"`
		Skill     int    `json:"skill"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, err
	}
	h, ok := s.sessions.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("rpc: session %v not found", id)
	}
	reply := make(chan error, 1)
	h.Send(session.SetEngine{Enabled: req.Enabled, Skill: req.Skill, Reply: reply})
	if err := <-reply; err != nil {
		return nil, err
	}
	return s.snapshotOf(h), nil
}

func (s *Server) sendSessionCmd(payload json.RawMessage, build func(reply chan error) session.Command) (any, error) {
	var req SessionIDRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, err
	}
	h, ok := s.sessions.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("rpc: session %v not found", id)
	}
	reply := make(chan error, 1)
	h.Send(build(reply))
	if err := <-reply; err != nil {
		return nil, err
	}
	return s.snapshotOf(h), nil
}

func (s *Server) withSessionID(payload json.RawMessage, fn func(id uuid.UUID) (any, error)) (any, error) {
	var req SessionIDRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, err
	}
	return fn(id)
}

func (s *Server) withGameID(payload json.RawMessage, fn func(id string) (any, error)) (any, error) {
	var req GameIDRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	return fn(req.GameID)
}

func (s *Server) deleteByID(payload json.RawMessage, fn func(id string) error) (any, error) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	return nil, fn(req.ID)
}

func (s *Server) deleteByGameID(payload json.RawMessage, fn func(id string) error) (any, error) {
	return s.withGameID(payload, func(id string) (any, error) { return nil, fn(id) })
}

func (s *Server) savePosition(payload json.RawMessage) (any, error) {
	var req struct {
		Name string   `json:"name"`
		FEN  string   `json:"fen"`
		Tags []string `json:"tags,omitempty"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	if _, err := chessmodel.ParseFEN(req.FEN); err != nil {
		return nil, err
	}
	rec := persistence.StoredPosition{ID: uuid.NewString(), Name: req.Name, FEN: req.FEN, Tags: req.Tags}
	if err := s.positions.Save(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Server) resumeSuspended(payload json.RawMessage) (any, error) {
	var req SessionIDRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, err
	}
	_, snap, err := s.sessions.Resume(id)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Server) snapshotOf(h session.Handle) session.Snapshot {
	reply := make(chan session.Snapshot, 1)
	h.Send(session.GetSnapshot{Reply: reply})
	return <-reply
}
