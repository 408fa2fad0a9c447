// Package session implements the per-session actor and the session
// registry, per spec §4.3/§4.4: one goroutine owns a session's mutable
// state; every other task reaches it only through channels. The
// architecture is grounded in the teacher's pkg/engine/console driver (a
// single select loop over an inbox) and pkg/engine/uci's channel-in/
// channel-out shape, generalized from "one engine process" to "one game
// session with an optional attached engine".
package session

import (
	"time"

	"chesstty/pkg/chessmodel"
	"chesstty/pkg/engineadapter"

	"github.com/google/uuid"
	"github.com/seekerror/stdlib/pkg/lang"
)

// Phase is the game phase, per spec §3.
type Phase int

const (
	Lobby Phase = iota
	Playing
	Paused
	Ended
)

func (p Phase) String() string {
	switch p {
	case Lobby:
		return "Lobby"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case Ended:
		return "Ended"
	default:
		return "Unknown"
	}
}

// EndedInfo carries the terminal result and a free-form reason, per spec §3.
type EndedInfo struct {
	Result chessmodel.Result
	Reason string
}

// GameModeKind is the tag of the Game mode sum type, per spec §3.
type GameModeKind int

const (
	HumanVsHuman GameModeKind = iota
	HumanVsEngine
	EngineVsEngine
	Analysis
	Review
)

// GameMode determines whose turn dispatches to the engine.
type GameMode struct {
	Kind      GameModeKind
	HumanSide lang.Optional[chessmodel.Color] // meaningful iff Kind == HumanVsEngine
}

// enginePlays reports whether the side to move in this mode/turn should be
// handed to the attached engine.
func (m GameMode) enginePlays(turn chessmodel.Color) bool {
	switch m.Kind {
	case EngineVsEngine:
		return true
	case HumanVsEngine:
		side, ok := m.HumanSide.V()
		return !ok || side != turn
	default:
		return false
	}
}

// TimerState is server-owned wall-clock accounting, per spec §3.
type TimerState struct {
	WhiteRemainingMs int64
	BlackRemainingMs int64
	ActiveSide       lang.Optional[chessmodel.Color]
}

func (t TimerState) timed() bool {
	return t.WhiteRemainingMs > 0 || t.BlackRemainingMs > 0
}

// EngineConfig is the per-session engine configuration, per spec §3.
type EngineConfig struct {
	Enabled bool
	Skill   int // 0-20
	Threads lang.Optional[int]
	HashMB  lang.Optional[int]
}

// MoveRecord is one played move plus its derived facts, per spec §3. Never
// mutated after being appended to a session's history.
type MoveRecord struct {
	Move          chessmodel.Move
	PieceMoved    chessmodel.PieceType
	PieceCaptured chessmodel.PieceType // chess.NoPieceType if none
	SAN           string
	FENAfter      string
	ClockMs       lang.Optional[int64]
}

// UciLogEntry is one line exchanged with an attached engine, per spec §3.
type UciLogEntry struct {
	Direction engineadapter.Direction
	RawLine   string
	Timestamp time.Time
	Context   lang.Optional[string]
}

// uciLogCap bounds the per-session ring of UciLogEntry, per spec §4.3.
const uciLogCap = 100

// Snapshot is the only shape sent to clients, per spec §3.
type Snapshot struct {
	ID             uuid.UUID
	StartFEN       string
	FEN            string
	SideToMove     chessmodel.Color
	History        []MoveRecord
	Phase          Phase
	Ended          lang.Optional[EndedInfo]
	Mode           GameMode
	Timer          TimerState
	EngineThinking bool
	LastMove       lang.Optional[MoveRecord]
	LastEngineInfo lang.Optional[engineadapter.Info]
	Revision       uint64
}

// MoveCount is the convenience accessor scenarios S1 and S6 check.
func (s Snapshot) MoveCount() int { return len(s.History) }
