// Package review implements the post-game analysis pipeline, per spec
// §4.5: a bounded job queue plus a fixed worker pool runs ply-by-ply
// engine analysis over a finished game, resumable across restarts. The
// queue/worker-pool shape is grounded in the teacher's pkg/search
// iterative-deepening driver generalized from "search one position" to
// "analyze every ply of a finished game".
package review

import (
	"time"

	"chesstty/pkg/engineadapter"
)

// StatusKind is the review state-machine tag, per spec §4.5.
type StatusKind int

const (
	Queued StatusKind = iota
	Analyzing
	Complete
	Failed
)

func (k StatusKind) String() string {
	switch k {
	case Queued:
		return "Queued"
	case Analyzing:
		return "Analyzing"
	case Complete:
		return "Complete"
	default:
		return "Failed"
	}
}

// Status is the current progress of a review, per spec §4.5.
type Status struct {
	Kind         StatusKind
	CurrentPly   int
	TotalPlies   int
	ErrorMsg     string
}

// Classification is the per-move quality label, per spec §4.5's table.
type Classification int

const (
	Best Classification = iota
	Excellent
	Good
	Inaccuracy
	Mistake
	Blunder
	Forced
	Brilliant
	Book
)

func (c Classification) String() string {
	switch c {
	case Best:
		return "Best"
	case Excellent:
		return "Excellent"
	case Good:
		return "Good"
	case Inaccuracy:
		return "Inaccuracy"
	case Mistake:
		return "Mistake"
	case Blunder:
		return "Blunder"
	case Forced:
		return "Forced"
	case Brilliant:
		return "Brilliant"
	case Book:
		return "Book"
	default:
		return "Unknown"
	}
}

// PositionReview is one analyzed ply, per spec §3.
type PositionReview struct {
	Ply            int
	FEN            string
	PlayedSAN      string
	BestMoveSAN    string
	BestMoveUCI    string
	EvalBefore     engineadapter.Score
	EvalAfter      engineadapter.Score
	EvalBest       engineadapter.Score
	Classification Classification
	CpLoss         int
	PV             []string
	Depth          int
	ClockMs        *int64
}

// GameReview is the full review state for one finished game, per spec §3.
type GameReview struct {
	GameID        string
	Status        Status
	WhiteAccuracy *float64
	BlackAccuracy *float64
	TotalPlies    int
	AnalyzedPlies int
	AnalysisDepth int
	StartedAt     *time.Time
	CompletedAt   *time.Time
	Winner        *string
	Positions     []PositionReview
}

// AnalysisConfig tunes the depth and scope of advanced analysis, per the
// Supplemented Features note in the expanded spec (grounded in
// original_source/server/src/review/mod.rs's config tests).
type AnalysisConfig struct {
	ComputeAdvanced      bool
	ShallowDepth         int
	DeepDepth            int
	MaxCriticalPositions int
}

// ReviewConfig configures the pipeline, per the Supplemented Features note.
type ReviewConfig struct {
	WorkerCount   int
	AnalysisDepth int
	Analysis      AnalysisConfig
}

// DefaultConfig mirrors the original implementation's defaults.
func DefaultConfig() ReviewConfig {
	return ReviewConfig{
		WorkerCount:   2,
		AnalysisDepth: 14,
		Analysis: AnalysisConfig{
			ComputeAdvanced:      true,
			ShallowDepth:         8,
			DeepDepth:            18,
			MaxCriticalPositions: 10,
		},
	}
}
