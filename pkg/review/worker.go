package review

import (
	"context"
	"fmt"
	"time"

	"chesstty/pkg/chessmodel"
	"chesstty/pkg/engineadapter"
	"chesstty/pkg/persistence"

	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
)

// runWorker pulls game ids off jobs until the channel is closed, analyzing
// each per spec §4.5's worker algorithm.
func (m *Manager) runWorker(ctx context.Context, jobs <-chan string) {
	for gameID := range jobs {
		m.analyze(ctx, gameID)
		m.mu.Lock()
		delete(m.pending, gameID)
		m.mu.Unlock()
	}
}

func (m *Manager) analyze(ctx context.Context, gameID string) {
	existing, found, err := m.reviews.Load(gameID)
	if err != nil {
		logw.Errorf(ctx, "review: loading existing review for %v: %v", gameID, err)
		return
	}
	rev := GameReview{GameID: gameID, AnalysisDepth: m.cfg.AnalysisDepth}
	if found {
		rev = reviewFromData(existing)
	}
	already := len(rev.Positions)

	game, ok, err := m.finished.Load(gameID)
	if err != nil {
		logw.Errorf(ctx, "review: loading finished game %v: %v", gameID, err)
		return
	}
	if !ok {
		logw.Errorf(ctx, "review: finished game %v vanished before analysis", gameID)
		return
	}
	total := len(game.Moves)
	rev.TotalPlies = total

	path, args := "", []string(nil)
	if m.locateEngine != nil {
		path, args = m.locateEngine()
	}
	adapter, err := engineadapter.Start(ctx, engineadapter.Options{Path: path, Args: args})
	if err != nil {
		rev.Status = Status{Kind: Failed, ErrorMsg: err.Error()}
		m.saveProgress(ctx, rev)
		return
	}
	defer adapter.Close()

	if rev.StartedAt == nil {
		now := time.Now()
		rev.StartedAt = &now
	}
	rev.Status = Status{Kind: Analyzing, CurrentPly: already, TotalPlies: total}
	m.saveProgress(ctx, rev)

	fens := replayFENs(game.StartFEN, game.Moves)

	var prevEvalAfter engineadapter.Score
	havePrev := false
	if already > 0 {
		prevEvalAfter = rev.Positions[already-1].EvalAfter
		havePrev = true
	}

	for p := already + 1; p <= total; p++ {
		fenBefore := fens[p-1]
		fenAfter := fens[p]
		mv := game.Moves[p-1]

		legal, err := chessmodel.LegalMoves(fenBefore)
		if err != nil {
			rev.Status = Status{Kind: Failed, ErrorMsg: err.Error()}
			m.saveProgress(ctx, rev)
			return
		}
		isForced := len(legal) == 1

		bestUCI, bestSAN, evalBest, pv, err := searchPosition(adapter, fenBefore, m.cfg.AnalysisDepth)
		if err != nil {
			rev.Status = Status{Kind: Failed, ErrorMsg: err.Error()}
			m.saveProgress(ctx, rev)
			return
		}

		_, _, evalAfter, _, err := searchPosition(adapter, fenAfter, m.cfg.AnalysisDepth)
		if err != nil {
			rev.Status = Status{Kind: Failed, ErrorMsg: err.Error()}
			m.saveProgress(ctx, rev)
			return
		}

		evalBefore := evalBest
		if havePrev {
			evalBefore = prevEvalAfter
		}
		havePrev = true
		prevEvalAfter = evalAfter

		cpLoss, cls := classifyPly(evalBefore, evalAfter, evalBest, isForced)

		pos := PositionReview{
			Ply:            p,
			FEN:            fenBefore,
			PlayedSAN:      mv.SAN,
			BestMoveSAN:    bestSAN,
			BestMoveUCI:    bestUCI,
			EvalBefore:     evalBefore,
			EvalAfter:      evalAfter,
			EvalBest:       evalBest,
			Classification: cls,
			CpLoss:         cpLoss,
			PV:             pvToUCI(pv),
			Depth:          m.cfg.AnalysisDepth,
		}
		rev.Positions = append(rev.Positions, pos)
		rev.AnalyzedPlies = p
		rev.Status = Status{Kind: Analyzing, CurrentPly: p, TotalPlies: total}
		m.saveProgress(ctx, rev)
	}

	rev.WhiteAccuracy = floatPtr(accuracy(cpLossesForSide(rev.Positions, true)))
	rev.BlackAccuracy = floatPtr(accuracy(cpLossesForSide(rev.Positions, false)))
	now := time.Now()
	rev.CompletedAt = &now
	winner := winnerOf(game.Result)
	rev.Winner = &winner
	rev.Status = Status{Kind: Complete}
	m.saveProgress(ctx, rev)

	if m.cfg.Analysis.ComputeAdvanced {
		adv, err := computeAdvanced(gameID, rev, m.cfg.Analysis)
		if err != nil {
			logw.Errorf(ctx, "review: advanced analysis for %v: %v", gameID, err)
		} else if err := m.advanced.Save(adv); err != nil {
			logw.Errorf(ctx, "review: saving advanced analysis for %v: %v", gameID, err)
		}
	}

	logw.Infof(ctx, "review: completed analysis of %v (%d plies)", gameID, total)
}

func (m *Manager) saveProgress(ctx context.Context, rev GameReview) {
	if err := m.reviews.SaveIncremental(reviewToData(rev)); err != nil {
		logw.Errorf(ctx, "review: saving progress for %v: %v", rev.GameID, err)
	}
}

// classifyPly derives a ply's cp-loss and Classification. evalAfter is
// computed from fenAfter's side to move (the opponent); negate it to read
// it from the mover's own perspective before comparing to evalBefore or
// evalBest, per spec §4.5 step 4.d and the Brilliant open-question
// resolution in SPEC_FULL.md §9.
func classifyPly(evalBefore, evalAfter, evalBest engineadapter.Score, isForced bool) (int, Classification) {
	moverEvalAfter := -evalAfter.ToCentipawns()
	cpLoss := clampCpLoss(evalBefore.ToCentipawns(), moverEvalAfter)
	isBrilliant := !isForced && moverEvalAfter > evalBest.ToCentipawns()
	return cpLoss, classify(cpLoss, isForced, isBrilliant)
}

func replayFENs(startFEN string, moves []persistence.MoveRecord) []string {
	fens := make([]string, len(moves)+1)
	fens[0] = startFEN
	for i, mv := range moves {
		if mv.FENAfter != "" {
			fens[i+1] = mv.FENAfter
		} else if i+1 < len(fens) {
			fens[i+1] = fens[i]
		}
	}
	return fens
}

func pvToUCI(pv []chessmodel.Move) []string {
	out := make([]string, len(pv))
	for i, mv := range pv {
		out[i] = mv.UCI()
	}
	return out
}

func floatPtr(v float64) *float64 { return &v }

func cpLossesForSide(positions []PositionReview, white bool) []int {
	var out []int
	for i, p := range positions {
		isWhiteMove := i%2 == 0
		if isWhiteMove == white {
			out = append(out, p.CpLoss)
		}
	}
	return out
}

func winnerOf(result int) string {
	switch chessmodel.Result(result) {
	case chessmodel.WhiteWins:
		return "White"
	case chessmodel.BlackWins:
		return "Black"
	default:
		return "Draw"
	}
}

// searchPosition sets position fen, runs a fixed-depth search, and collects
// the best move, its SAN, evaluation, and principal variation.
func searchPosition(adapter *engineadapter.Adapter, fen string, depth int) (bestUCI, bestSAN string, eval engineadapter.Score, pv []chessmodel.Move, err error) {
	adapter.Commands() <- engineadapter.SetPosition{FEN: fen}
	adapter.Commands() <- engineadapter.Go{Depth: lang.Some(depth)}

	for ev := range adapter.Events() {
		switch e := ev.(type) {
		case engineadapter.Info:
			eval = e.Score
			if len(e.PV) > 0 {
				pv = e.PV
			}
		case engineadapter.BestMove:
			bestUCI = e.Move.UCI()
			if res, serr := chessmodel.ApplyMove(fen, e.Move); serr == nil {
				bestSAN = res.SAN
			}
			return bestUCI, bestSAN, eval, pv, nil
		case engineadapter.Error:
			return "", "", eval, nil, fmt.Errorf("review: engine error: %v", e.Msg)
		}
	}
	return "", "", eval, nil, fmt.Errorf("review: engine closed mid-search")
}
