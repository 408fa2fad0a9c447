// Package persistence implements the relational storage layer, per spec
// §4.2: one small repository per entity kind, each idempotent
// (save-upserts-by-id), backed by a transactional relational store. The
// teacher has no persistence layer; this package uses sqlite-backed durable
// storage via github.com/mattn/go-sqlite3 — the dependency the rest of the
// retrieved pack reaches for persistence (see lixenwraith-chess's go.mod).
package persistence

import "time"

// MoveRecord is the storage-layer shape of one played move. It mirrors
// pkg/session.MoveRecord field-for-field but lives here, independently,
// so this package never imports pkg/session (which imports this package).
type MoveRecord struct {
	UCI           string
	SAN           string
	PieceMoved    string
	PieceCaptured string
	FENAfter      string
	ClockMs       *int64
}

// TimerFields is the storage-layer shape of a session's clock state.
type TimerFields struct {
	WhiteMs int64
	BlackMs int64
}

// SuspendedSession is a paused session's durable snapshot, per spec §3/§4.4.
type SuspendedSession struct {
	ID       string
	FEN      string
	ModeKind int
	Timer    TimerFields
	SavedAt  time.Time
}

// StoredPosition is a user-named saved position, per spec §3.
type StoredPosition struct {
	ID        string
	Name      string
	FEN       string
	Tags      []string
	CreatedAt time.Time
}

// FinishedGameData is an archived completed game, per spec §3.
type FinishedGameData struct {
	GameID   string
	StartFEN string
	Moves    []MoveRecord
	Result   int // chessmodel.Result, stored as its numeric tag to avoid an import cycle
	Reason   string
	EndedAt  time.Time
}

// ReviewStatusData is the storage-layer shape of a GameReview's status, per
// spec §4.5. Exactly one of the optional fields is meaningful per Kind.
type ReviewStatusData struct {
	Kind        string // "Queued" | "Analyzing" | "Complete" | "Failed"
	CurrentPly  *int64
	TotalPlies  *int64
	ErrorMsg    *string
}

// ScoreData is the storage-layer shape of an engine evaluation.
type ScoreData struct {
	Kind  string // "Cp" | "Mate"
	Value int32
}

// PositionReviewData is one analyzed ply, per spec §3/§4.5.
type PositionReviewData struct {
	Ply            int
	FEN            string
	PlayedSAN      string
	BestMoveSAN    string
	BestMoveUCI    string
	EvalBefore     ScoreData
	EvalAfter      ScoreData
	EvalBest       ScoreData
	Classification string
	CpLoss         int
	PV             []string
	Depth          int
	ClockMs        *int64
}

// GameReviewData is the full storage-layer shape of a GameReview, per spec
// §3/§4.5.
type GameReviewData struct {
	GameID         string
	Status         ReviewStatusData
	WhiteAccuracy  *float64
	BlackAccuracy  *float64
	TotalPlies     int
	AnalyzedPlies  int
	AnalysisDepth  int
	StartedAt      *time.Time
	CompletedAt    *time.Time
	Winner         *string
	Positions      []PositionReviewData
}

// PsychProfileData is one side's psychological-profile aggregate, per the
// Supplemented Features note in the expanded spec.
type PsychProfileData struct {
	Color                  string
	MaxConsecutiveErrors   int
	FavorableSwings        int
	UnfavorableSwings      int
	MaxMomentumStreak      int
	AvgBlunderTimeMs       *int64
	AvgGoodMoveTimeMs      *int64
	OpeningAvgCpLoss       float64
	MiddlegameAvgCpLoss    float64
	EndgameAvgCpLoss       float64
}

// AdvancedPositionData is one ply's advanced heuristics.
type AdvancedPositionData struct {
	Ply             int
	Tension         float64
	KingSafetyWhite float64
	KingSafetyBlack float64
	TacticalTags    []string
}

// AdvancedAnalysisData is the full storage-layer shape of an
// AdvancedGameAnalysis.
type AdvancedAnalysisData struct {
	GameID                 string
	PipelineVersion        int
	ShallowDepth           int
	DeepDepth              int
	CriticalPositionsCount int
	ComputedAt             time.Time
	WhitePsychology        PsychProfileData
	BlackPsychology        PsychProfileData
	Positions              []AdvancedPositionData
}
