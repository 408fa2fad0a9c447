package engineadapter

import (
	"testing"

	"chesstty/pkg/chessmodel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatGoDerivesMovetimeFromSkill(t *testing.T) {
	line, ok := formatCommand(Go{Skill: 3})
	require.True(t, ok)
	assert.Equal(t, "go movetime 200", line)

	line, ok = formatCommand(Go{Skill: 18})
	require.True(t, ok)
	assert.Equal(t, "go movetime 2000", line)
}

func TestFormatSetPositionWithMoves(t *testing.T) {
	line, ok := formatCommand(SetPosition{FEN: chessmodel.Initial, Moves: []string{"e2e4", "e7e5"}})
	require.True(t, ok)
	assert.Equal(t, "position fen "+chessmodel.Initial+" moves e2e4 e7e5", line)
}

func TestParseInfoLine(t *testing.T) {
	ev := parseInfo("info depth 12 seldepth 18 time 340 nodes 102983 nps 302000 score cp 34 pv e2e4 e7e5 g1f3")
	info, ok := ev.(Info)
	require.True(t, ok)
	assert.Equal(t, 12, info.Depth)
	assert.Equal(t, 18, info.SelDepth)
	assert.Equal(t, 340, info.TimeMs)
	assert.EqualValues(t, 102983, info.Nodes)
	assert.Equal(t, Score{Kind: Cp, Value: 34}, info.Score)
	require.Len(t, info.PV, 3)
	assert.Equal(t, "e2e4", info.PV[0].UCI())
}

func TestParseInfoMateScore(t *testing.T) {
	ev := parseInfo("info depth 5 score mate 3 pv d1h5")
	info := ev.(Info)
	assert.Equal(t, Score{Kind: Mate, Value: 3}, info.Score)
	assert.EqualValues(t, 19997, info.Score.ToCentipawns())
}

func TestParseBestMoveNormalizesCastling(t *testing.T) {
	legalFEN := []chessmodel.Move{}
	for _, uci := range []string{"e1g1", "e1d1"} {
		mv, err := chessmodel.ParseUCIMove(uci)
		require.NoError(t, err)
		legalFEN = append(legalFEN, mv)
	}

	ev, ok := parseBestMove("bestmove e1h1", func() ([]chessmodel.Move, error) { return legalFEN, nil })
	require.True(t, ok)
	bm, ok := ev.(BestMove)
	require.True(t, ok)
	assert.Equal(t, "e1g1", bm.Move.UCI())
}

func TestParseBestMoveNoLegalMatchErrors(t *testing.T) {
	ev, ok := parseBestMove("bestmove e1h1", func() ([]chessmodel.Move, error) { return nil, nil })
	require.True(t, ok)
	_, isErr := ev.(Error)
	assert.True(t, isErr)
}

func TestParseBestMoveNone(t *testing.T) {
	ev, ok := parseBestMove("bestmove (none)", nil)
	require.True(t, ok)
	_, isErr := ev.(Error)
	assert.True(t, isErr)
}
