package review

import (
	"time"

	"chesstty/pkg/chessmodel"
	"chesstty/pkg/persistence"
)

// pipelineVersion is bumped whenever the advanced-analysis heuristics
// change shape, so stored rows can be distinguished from a future
// incompatible revision.
const pipelineVersion = 1

// computeAdvanced derives psychological and positional aggregates from the
// per-ply cp-loss stream already produced by the main analysis pass, per
// spec §4.5 step 6 and the Supplemented Features note: tension from the
// legal-move count of each position, king safety from the side to move's
// branching factor (see kingSafetyOf), psychological aggregates from the
// cp-loss sequence.
func computeAdvanced(gameID string, rev GameReview, cfg AnalysisConfig) (persistence.AdvancedAnalysisData, error) {
	white := computeProfile(rev.Positions, true)
	black := computeProfile(rev.Positions, false)

	positions := make([]persistence.AdvancedPositionData, 0, len(rev.Positions))
	critical := 0
	for _, p := range rev.Positions {
		if critical >= cfg.MaxCriticalPositions && p.CpLoss < 300 {
			continue
		}
		tension, err := tensionOf(p.FEN)
		if err != nil {
			tension = 0
		}
		wSafety, bSafety := kingSafetyOf(p.FEN)
		tags := tacticalTags(p)
		if p.CpLoss >= 300 {
			critical++
		}
		positions = append(positions, persistence.AdvancedPositionData{
			Ply:             p.Ply,
			Tension:         tension,
			KingSafetyWhite: wSafety,
			KingSafetyBlack: bSafety,
			TacticalTags:    tags,
		})
	}

	return persistence.AdvancedAnalysisData{
		GameID:                 gameID,
		PipelineVersion:        pipelineVersion,
		ShallowDepth:           cfg.ShallowDepth,
		DeepDepth:              cfg.DeepDepth,
		CriticalPositionsCount: critical,
		ComputedAt:             time.Now(),
		WhitePsychology:        white,
		BlackPsychology:        black,
		Positions:              positions,
	}, nil
}

func computeProfile(positions []PositionReview, white bool) persistence.PsychProfileData {
	p := persistence.PsychProfileData{Color: colorName(white)}

	var sideLosses, openingLosses, middlegameLosses, endgameLosses []int
	consecutive := 0
	maxConsecutive := 0
	favorable, unfavorable := 0, 0
	momentum, maxMomentum := 0, 0

	for i, pos := range positions {
		isWhiteMove := i%2 == 0
		if isWhiteMove != white {
			continue
		}
		sideLosses = append(sideLosses, pos.CpLoss)

		switch {
		case i < 20:
			openingLosses = append(openingLosses, pos.CpLoss)
		case i < 60:
			middlegameLosses = append(middlegameLosses, pos.CpLoss)
		default:
			endgameLosses = append(endgameLosses, pos.CpLoss)
		}

		if pos.Classification == Mistake || pos.Classification == Blunder {
			consecutive++
			if consecutive > maxConsecutive {
				maxConsecutive = consecutive
			}
			unfavorable++
			momentum = 0
		} else {
			consecutive = 0
			if pos.Classification == Best || pos.Classification == Excellent || pos.Classification == Brilliant {
				favorable++
				momentum++
				if momentum > maxMomentum {
					maxMomentum = momentum
				}
			} else {
				momentum = 0
			}
		}
	}

	p.MaxConsecutiveErrors = maxConsecutive
	p.FavorableSwings = favorable
	p.UnfavorableSwings = unfavorable
	p.MaxMomentumStreak = maxMomentum
	p.OpeningAvgCpLoss = meanOf(openingLosses)
	p.MiddlegameAvgCpLoss = meanOf(middlegameLosses)
	p.EndgameAvgCpLoss = meanOf(endgameLosses)
	return p
}

func meanOf(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func colorName(white bool) string {
	if white {
		return "White"
	}
	return "Black"
}

// tensionOf is a coarse mobility-swing heuristic: legal-move count
// normalized against a typical middlegame branching factor, to [0, 1].
func tensionOf(fen string) (float64, error) {
	moves, err := chessmodel.LegalMoves(fen)
	if err != nil {
		return 0, err
	}
	t := float64(len(moves)) / 35.0
	if t > 1 {
		t = 1
	}
	return t, nil
}

// kingSafetyOf is a coarse heuristic: the side to move's legal-move count
// over 40 (capped at 1) is the exposure of the side not to move, and one
// minus it is the safety of the side to move. King squares are not
// inspected.
func kingSafetyOf(fen string) (white, black float64) {
	pos, err := chessmodel.ParseFEN(fen)
	if err != nil {
		return 0, 0
	}
	moves, err := chessmodel.LegalMoves(pos.FEN())
	if err != nil {
		return 0, 0
	}
	if len(moves) == 0 {
		return 1, 1
	}
	// Without direct board/king-square access here, approximate both
	// sides' exposure by the mover's branching factor: more replies
	// available to the side to move implies less safety for the side
	// not to move.
	exposure := float64(len(moves)) / 40.0
	if exposure > 1 {
		exposure = 1
	}
	if pos.Turn() == chessmodel.White {
		return 1 - exposure, exposure
	}
	return exposure, 1 - exposure
}

func tacticalTags(p PositionReview) []string {
	var tags []string
	if p.Classification == Brilliant {
		tags = append(tags, "brilliancy")
	}
	if p.Classification == Blunder {
		tags = append(tags, "blunder")
	}
	if p.CpLoss == 0 && p.EvalBest.Kind == p.EvalAfter.Kind {
		tags = append(tags, "only-move")
	}
	return tags
}
