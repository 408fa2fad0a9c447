package review

import (
	"chesstty/pkg/engineadapter"
	"chesstty/pkg/persistence"
)

func scoreToData(s engineadapter.Score) persistence.ScoreData {
	kind := "Cp"
	if s.Kind == engineadapter.Mate {
		kind = "Mate"
	}
	return persistence.ScoreData{Kind: kind, Value: s.Value}
}

func scoreFromData(d persistence.ScoreData) engineadapter.Score {
	kind := engineadapter.Cp
	if d.Kind == "Mate" {
		kind = engineadapter.Mate
	}
	return engineadapter.Score{Kind: kind, Value: d.Value}
}

func statusToData(s Status) persistence.ReviewStatusData {
	d := persistence.ReviewStatusData{Kind: s.Kind.String()}
	if s.Kind == Analyzing {
		cur := int64(s.CurrentPly)
		tot := int64(s.TotalPlies)
		d.CurrentPly = &cur
		d.TotalPlies = &tot
	}
	if s.Kind == Failed {
		msg := s.ErrorMsg
		d.ErrorMsg = &msg
	}
	return d
}

func statusFromData(d persistence.ReviewStatusData) Status {
	var kind StatusKind
	switch d.Kind {
	case "Queued":
		kind = Queued
	case "Analyzing":
		kind = Analyzing
	case "Complete":
		kind = Complete
	default:
		kind = Failed
	}
	s := Status{Kind: kind}
	if d.CurrentPly != nil {
		s.CurrentPly = int(*d.CurrentPly)
	}
	if d.TotalPlies != nil {
		s.TotalPlies = int(*d.TotalPlies)
	}
	if d.ErrorMsg != nil {
		s.ErrorMsg = *d.ErrorMsg
	}
	return s
}

func positionToData(p PositionReview) persistence.PositionReviewData {
	return persistence.PositionReviewData{
		Ply:            p.Ply,
		FEN:            p.FEN,
		PlayedSAN:      p.PlayedSAN,
		BestMoveSAN:    p.BestMoveSAN,
		BestMoveUCI:    p.BestMoveUCI,
		EvalBefore:     scoreToData(p.EvalBefore),
		EvalAfter:      scoreToData(p.EvalAfter),
		EvalBest:       scoreToData(p.EvalBest),
		Classification: p.Classification.String(),
		CpLoss:         p.CpLoss,
		PV:             p.PV,
		Depth:          p.Depth,
		ClockMs:        p.ClockMs,
	}
}

func positionFromData(d persistence.PositionReviewData) PositionReview {
	return PositionReview{
		Ply:            d.Ply,
		FEN:            d.FEN,
		PlayedSAN:      d.PlayedSAN,
		BestMoveSAN:    d.BestMoveSAN,
		BestMoveUCI:    d.BestMoveUCI,
		EvalBefore:     scoreFromData(d.EvalBefore),
		EvalAfter:      scoreFromData(d.EvalAfter),
		EvalBest:       scoreFromData(d.EvalBest),
		Classification: classificationFromString(d.Classification),
		CpLoss:         d.CpLoss,
		PV:             d.PV,
		Depth:          d.Depth,
		ClockMs:        d.ClockMs,
	}
}

func classificationFromString(s string) Classification {
	switch s {
	case "Best":
		return Best
	case "Excellent":
		return Excellent
	case "Good":
		return Good
	case "Inaccuracy":
		return Inaccuracy
	case "Mistake":
		return Mistake
	case "Blunder":
		return Blunder
	case "Forced":
		return Forced
	case "Brilliant":
		return Brilliant
	case "Book":
		return Book
	default:
		// Best is Classification's zero value; an unrecognized stored
		// string should never be guessed as Brilliant.
		return Best
	}
}

func reviewToData(r GameReview) persistence.GameReviewData {
	positions := make([]persistence.PositionReviewData, len(r.Positions))
	for i, p := range r.Positions {
		positions[i] = positionToData(p)
	}
	return persistence.GameReviewData{
		GameID:        r.GameID,
		Status:        statusToData(r.Status),
		WhiteAccuracy: r.WhiteAccuracy,
		BlackAccuracy: r.BlackAccuracy,
		TotalPlies:    r.TotalPlies,
		AnalyzedPlies: r.AnalyzedPlies,
		AnalysisDepth: r.AnalysisDepth,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		Winner:        r.Winner,
		Positions:     positions,
	}
}

func reviewFromData(d persistence.GameReviewData) GameReview {
	positions := make([]PositionReview, len(d.Positions))
	for i, p := range d.Positions {
		positions[i] = positionFromData(p)
	}
	return GameReview{
		GameID:        d.GameID,
		Status:        statusFromData(d.Status),
		WhiteAccuracy: d.WhiteAccuracy,
		BlackAccuracy: d.BlackAccuracy,
		TotalPlies:    d.TotalPlies,
		AnalyzedPlies: d.AnalyzedPlies,
		AnalysisDepth: d.AnalysisDepth,
		StartedAt:     d.StartedAt,
		CompletedAt:   d.CompletedAt,
		Winner:        d.Winner,
		Positions:     positions,
	}
}
