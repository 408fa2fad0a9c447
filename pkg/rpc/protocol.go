// Package rpc exposes the session/review/persistence managers over a
// websocket-framed streaming RPC surface, per spec §4.6: one connection per
// client carries both unary request/response pairs and server-streaming
// session events, multiplexed through a JSON envelope. The
// register/unregister/broadcast hub shape is grounded in the
// gorilla/websocket usage pattern retrieved across the example pack
// (notably the poker-server hub), narrowed from "one hub of all clients"
// to one event pump per (connection, session) subscription.
package rpc

import "encoding/json"

// Kind tags an Envelope's role on the wire.
type Kind string

const (
	KindCall    Kind = "call"
	KindResult  Kind = "result"
	KindEvent   Kind = "event"
	KindError   Kind = "error"
	KindDropped Kind = "dropped"
)

// Envelope is the single JSON message shape carried by the connection, per
// spec §4.6: "{id, kind, method, payload}". Unary calls correlate request
// and response by ID; event envelopes carry a SessionID instead.
type Envelope struct {
	ID        string          `json:"id,omitempty"`
	Kind      Kind            `json:"kind"`
	Method    string          `json:"method,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Unary method names, per spec §4.6. Naming is illustrative; the contract
// (request/response shape) is what the client/manager code depends on.
const (
	MethodCreateSession       = "CreateSession"
	MethodCloseSession        = "CloseSession"
	MethodMakeMove            = "MakeMove"
	MethodGetLegalMoves       = "GetLegalMoves"
	MethodUndoMove            = "UndoMove"
	MethodResetGame           = "ResetGame"
	MethodSetEngine           = "SetEngine"
	MethodPause               = "Pause"
	MethodUnpause             = "Unpause"
	MethodListSuspended       = "ListSuspended"
	MethodResumeSuspended     = "ResumeSuspended"
	MethodDeleteSuspended     = "DeleteSuspended"
	MethodListPositions       = "ListPositions"
	MethodSavePosition        = "SavePosition"
	MethodDeletePosition      = "DeletePosition"
	MethodListFinishedGames   = "ListFinishedGames"
	MethodDeleteFinishedGame  = "DeleteFinishedGame"
	MethodEnqueueReview       = "EnqueueReview"
	MethodGetReviewStatus     = "GetReviewStatus"
	MethodGetReview           = "GetReview"
	MethodGetAdvancedAnalysis = "GetAdvancedAnalysis"
	MethodStreamSessionEvents = "StreamSessionEvents"
	MethodGetVersion          = "GetVersion"
)

// CreateSessionRequest is the payload for MethodCreateSession.
type CreateSessionRequest struct {
	FEN           string `json:"fen,omitempty"`
	ModeKind      int    `json:"mode_kind"`
	HumanIsWhite  *bool  `json:"human_is_white,omitempty"`
	WhiteMs       int64  `json:"white_ms,omitempty"`
	BlackMs       int64  `json:"black_ms,omitempty"`
	EngineEnabled bool   `json:"engine_enabled"`
	EngineSkill   int    `json:"engine_skill,omitempty"`
}

// MoveRequest is the payload for MethodMakeMove.
type MoveRequest struct {
	SessionID string `json:"session_id"`
	UCI       string `json:"uci"`
}

// SessionIDRequest covers every unary call that only needs a session id.
type SessionIDRequest struct {
	SessionID string `json:"session_id"`
}

// GameIDRequest covers every unary call keyed by a finished game id.
type GameIDRequest struct {
	GameID string `json:"game_id"`
}

// VersionResponse is the payload for MethodGetVersion.
type VersionResponse struct {
	Version string `json:"version"`
}
