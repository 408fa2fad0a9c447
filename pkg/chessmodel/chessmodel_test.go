package chessmodel_test

import (
	"testing"

	"chesstty/pkg/chessmodel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFENRoundTrip(t *testing.T) {
	tests := []string{
		chessmodel.Initial,
		"8/P7/8/8/8/8/8/k6K w - - 0 1",
		"rnbqkbnr/pppppppp/8/8/8/5P2/PPPPP1PP/RNBQKBNR w KQkq - 0 1",
	}

	for _, tt := range tests {
		p, err := chessmodel.ParseFEN(tt)
		require.NoError(t, err)
		assert.Equal(t, tt, p.FEN())
	}
}

func TestApplyMoveFoolsMate(t *testing.T) {
	fen := chessmodel.Initial
	moves := []string{"f2f3", "e7e5", "g2g4", "d8h4"}

	var last chessmodel.ApplyResult
	for _, uci := range moves {
		mv, err := chessmodel.ParseUCIMove(uci)
		require.NoError(t, err)

		res, err := chessmodel.ApplyMove(fen, mv)
		require.NoError(t, err)
		fen = res.FENAfter
		last = res
	}

	require.True(t, last.Status.Terminal)
	assert.Equal(t, chessmodel.BlackWins, last.Status.Result)
	assert.Equal(t, "Checkmate", last.Status.Reason)
	assert.Regexp(t, "^Qh4", last.SAN)
}

func TestReplayFENReproducesPosition(t *testing.T) {
	moves := []chessmodel.Move{}
	for _, uci := range []string{"e2e4", "e7e5", "g1f3"} {
		mv, err := chessmodel.ParseUCIMove(uci)
		require.NoError(t, err)
		moves = append(moves, mv)
	}

	got, err := chessmodel.ReplayFEN(chessmodel.Initial, moves)
	require.NoError(t, err)

	final := chessmodel.Initial
	for _, mv := range moves {
		res, err := chessmodel.ApplyMove(final, mv)
		require.NoError(t, err)
		final = res.FENAfter
	}
	assert.Equal(t, final, got)
}

func TestPromotion(t *testing.T) {
	fen := "8/P7/8/8/8/8/8/k6K w - - 0 1"
	mv, err := chessmodel.ParseUCIMove("a7a8q")
	require.NoError(t, err)

	res, err := chessmodel.ApplyMove(fen, mv)
	require.NoError(t, err)
	assert.Contains(t, res.FENAfter, "Q7")
}

func TestNormalizeCastlingRewritesKingToRook(t *testing.T) {
	// White has both castling rights and a clear kingside; e1h1 (king to
	// own rook) must be rewritten to e1g1.
	fen := "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1"
	mv := chessmodel.Move{From: squareOf(t, "e1"), To: squareOf(t, "h1")}

	norm, err := chessmodel.NormalizeCastling(fen, mv)
	require.NoError(t, err)
	assert.Equal(t, "e1g1", norm.UCI())
}

func squareOf(t *testing.T, s string) chessmodel.Square {
	t.Helper()
	mv, err := chessmodel.ParseUCIMove(s + s)
	require.NoError(t, err)
	return mv.From
}
