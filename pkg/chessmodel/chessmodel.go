// Package chessmodel adapts github.com/notnil/chess into the value types the
// rest of chesstty passes across actor boundaries and over the wire: an
// immutable Position, a wire-shaped Move, and the terminal-status detection
// the session actor and review worker both need.
//
// The chess rules themselves — legal move generation, SAN, FEN — are not
// reimplemented here; they are out of scope per the platform spec and are
// delegated entirely to notnil/chess.
package chessmodel

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// Square and PieceType are re-exported so callers never need to import
// notnil/chess directly for wire-level move handling.
type Square = chess.Square
type PieceType = chess.PieceType
type Color = chess.Color

const (
	White = chess.White
	Black = chess.Black
)

// Move is the wire shape from spec §3: (from, to, optional promotion).
// Castling is always represented as a king two-square move.
type Move struct {
	From      Square
	To        Square
	Promotion PieceType // chess.NoPieceType if none
}

// UCI renders the move the way it travels on the wire and to the engine,
// e.g. "e2e4" or "e7e8q".
func (m Move) UCI() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != chess.NoPieceType {
		s += strings.ToLower(m.Promotion.String())
	}
	return s
}

// ParseUCIMove parses "e2e4" / "e7e8q" into a Move. It does not validate
// legality; use LegalMoves or ApplyMove for that.
func ParseUCIMove(s string) (Move, error) {
	s = strings.TrimSpace(s)
	if len(s) < 4 || len(s) > 5 {
		return Move{}, fmt.Errorf("chessmodel: malformed uci move %q", s)
	}
	from, err := parseSquare(s[0:2])
	if err != nil {
		return Move{}, fmt.Errorf("chessmodel: malformed uci move %q: %w", s, err)
	}
	to, err := parseSquare(s[2:4])
	if err != nil {
		return Move{}, fmt.Errorf("chessmodel: malformed uci move %q: %w", s, err)
	}
	promo := chess.NoPieceType
	if len(s) == 5 {
		promo = promoFromLetter(rune(s[4]))
		if promo == chess.NoPieceType {
			return Move{}, fmt.Errorf("chessmodel: invalid promotion piece in %q", s)
		}
	}
	return Move{From: from, To: to, Promotion: promo}, nil
}

// parseSquare converts "e4"-style algebraic coordinates into a Square
// without depending on any exported string-parsing helper from notnil/chess.
func parseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("chessmodel: malformed square %q", s)
	}
	file := s[0]
	rank := s[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return 0, fmt.Errorf("chessmodel: malformed square %q", s)
	}
	return chess.NewSquare(chess.File(int(file-'a')), chess.Rank(int(rank-'1'))), nil
}

func promoFromLetter(r rune) chess.PieceType {
	switch r {
	case 'q', 'Q':
		return chess.Queen
	case 'r', 'R':
		return chess.Rook
	case 'b', 'B':
		return chess.Bishop
	case 'n', 'N':
		return chess.Knight
	default:
		return chess.NoPieceType
	}
}

// Position is an immutable FEN-backed snapshot, per spec §3: every position
// stored or sent over the wire round-trips through FEN.
type Position struct {
	fen string
}

// ParseFEN parses a standard six-field FEN into a Position. Round-trip
// faithful: FEN(ParseFEN(s)) == s for any FEN notnil/chess accepts.
func ParseFEN(s string) (Position, error) {
	g, err := newGameFromFEN(s)
	if err != nil {
		return Position{}, err
	}
	return Position{fen: g.Position().String()}, nil
}

// FEN formats the position back to its canonical six-field string.
func (p Position) FEN() string {
	return p.fen
}

func (p Position) String() string { return p.fen }

// Turn reports which side is to move.
func (p Position) Turn() chess.Color {
	g, _ := newGameFromFEN(p.fen)
	return g.Position().Turn()
}

func newGameFromFEN(s string) (*chess.Game, error) {
	fn, err := chess.FEN(s)
	if err != nil {
		return nil, fmt.Errorf("chessmodel: invalid fen %q: %w", s, err)
	}
	return chess.NewGame(fn), nil
}

// Result is the finished-game outcome, per spec §3's Game phase.
type Result int

const (
	NoResult Result = iota
	WhiteWins
	BlackWins
	Draw
)

func (r Result) String() string {
	switch r {
	case WhiteWins:
		return "WhiteWins"
	case BlackWins:
		return "BlackWins"
	case Draw:
		return "Draw"
	default:
		return "NoResult"
	}
}

// GameStatus is the terminal-status detection result for a position.
type GameStatus struct {
	Terminal bool
	Result   Result
	Reason   string // "Checkmate", "Resignation", "Stalemate", "Threefold Repetition", "Fifty-move Rule", "Insufficient Material", "Agreement", "Draw"
}

// Status inspects a FEN and reports whether it is terminal, and why.
func Status(fen string) (GameStatus, error) {
	g, err := newGameFromFEN(fen)
	if err != nil {
		return GameStatus{}, err
	}
	return statusFromGame(g), nil
}

func statusFromGame(g *chess.Game) GameStatus {
	outcome := g.Outcome()
	if outcome == chess.NoOutcome {
		return GameStatus{Terminal: false}
	}

	var result Result
	switch outcome {
	case chess.WhiteWon:
		result = WhiteWins
	case chess.BlackWon:
		result = BlackWins
	default:
		result = Draw
	}

	reason := "Draw"
	switch g.Method() {
	case chess.Checkmate:
		reason = "Checkmate"
	case chess.Resignation:
		reason = "Resignation"
	case chess.Stalemate:
		reason = "Stalemate"
	case chess.ThreefoldRepetition:
		reason = "Threefold Repetition"
	case chess.FiftyMoveRule:
		reason = "Fifty-move Rule"
	case chess.InsufficientMaterial:
		reason = "Insufficient Material"
	case chess.DrawOffer:
		reason = "Agreement"
	}
	return GameStatus{Terminal: true, Result: result, Reason: reason}
}

// LegalMoves returns the legal moves from a FEN position, wire-shaped.
func LegalMoves(fen string) ([]Move, error) {
	g, err := newGameFromFEN(fen)
	if err != nil {
		return nil, err
	}
	valid := g.ValidMoves()
	out := make([]Move, 0, len(valid))
	for _, m := range valid {
		out = append(out, Move{From: m.S1(), To: m.S2(), Promotion: m.Promo()})
	}
	return out, nil
}

// findLegal locates the notnil/chess move matching mv exactly (from, to,
// promotion), if legal from fen.
func findLegal(g *chess.Game, mv Move) *chess.Move {
	for _, m := range g.ValidMoves() {
		if m.S1() == mv.From && m.S2() == mv.To && m.Promo() == mv.Promotion {
			return m
		}
	}
	return nil
}

// NormalizeCastling rewrites a king-moves-to-own-rook UCI move (the form
// some engines still emit) into the king-two-square form chesstty requires
// on the wire, per spec §4.1. If mv is already legal as given, it is
// returned unchanged. If no legal move matches either interpretation, it
// returns an error.
func NormalizeCastling(fen string, mv Move) (Move, error) {
	g, err := newGameFromFEN(fen)
	if err != nil {
		return Move{}, err
	}
	if findLegal(g, mv) != nil {
		return mv, nil
	}

	// Try king-moves-to-rook: same "from" square, same rank, the "to"
	// square holds a friendly rook. Rewrite to a two-square king move on
	// the same rank, toward the rook's side.
	b := g.Position().Board()
	fromPiece := b.Piece(mv.From)
	if fromPiece.Type() != chess.King {
		return Move{}, fmt.Errorf("chessmodel: illegal move %v in position %v", mv.UCI(), fen)
	}
	fromFile := int(mv.From.File())
	toFile := int(mv.To.File())
	rank := mv.From.Rank()

	kingTwoSquareFile := fromFile + 2
	if toFile < fromFile {
		kingTwoSquareFile = fromFile - 2
	}
	candidateSquare := chess.NewSquare(chess.File(kingTwoSquareFile), rank)
	candidate := Move{From: mv.From, To: candidateSquare}
	if findLegal(g, candidate) != nil {
		return candidate, nil
	}
	return Move{}, fmt.Errorf("chessmodel: could not normalize castling move %v in position %v", mv.UCI(), fen)
}

// ApplyResult is everything the session actor needs to build a MoveRecord.
type ApplyResult struct {
	SAN           string
	PieceMoved    chess.PieceType
	PieceCaptured chess.PieceType // chess.NoPieceType if none
	FENAfter      string
	Status        GameStatus
}

// ApplyMove validates mv as legal from fen and applies it, returning the
// resulting SAN, captured piece (if any), the FEN after, and the terminal
// status. It never mutates its input.
func ApplyMove(fen string, mv Move) (ApplyResult, error) {
	g, err := newGameFromFEN(fen)
	if err != nil {
		return ApplyResult{}, err
	}
	legal := findLegal(g, mv)
	if legal == nil {
		return ApplyResult{}, fmt.Errorf("chessmodel: illegal move %v in position %v", mv.UCI(), fen)
	}

	pos := g.Position()
	movedPiece := pos.Board().Piece(mv.From).Type()
	capturedPiece := chess.NoPieceType
	if legal.HasTag(chess.EnPassant) {
		capturedPiece = chess.Pawn
	} else if captured := pos.Board().Piece(mv.To); captured.Type() != chess.NoPieceType {
		capturedPiece = captured.Type()
	}

	san := chess.AlgebraicNotation{}.Encode(pos, legal)

	if err := g.Move(legal); err != nil {
		return ApplyResult{}, fmt.Errorf("chessmodel: applying legal move %v: %w", mv.UCI(), err)
	}

	return ApplyResult{
		SAN:           san,
		PieceMoved:    movedPiece,
		PieceCaptured: capturedPiece,
		FENAfter:      g.Position().String(),
		Status:        statusFromGame(g),
	}, nil
}

// ReplayFEN replays moves from startFEN and returns the resulting FEN,
// satisfying invariant 1 (history replay reproduces current position).
func ReplayFEN(startFEN string, moves []Move) (string, error) {
	fen := startFEN
	for i, mv := range moves {
		res, err := ApplyMove(fen, mv)
		if err != nil {
			return "", fmt.Errorf("chessmodel: replay failed at ply %d: %w", i+1, err)
		}
		fen = res.FENAfter
	}
	return fen, nil
}

// Initial is the standard starting position.
const Initial = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
