package engineadapter

import (
	"fmt"
	"strconv"
	"strings"

	"chesstty/pkg/chessmodel"
)

// formatCommand renders a Command as the UCI line sent on stdin, per the
// dialect in spec §6.
func formatCommand(c Command) (string, bool) {
	switch cmd := c.(type) {
	case SetPosition:
		var sb strings.Builder
		sb.WriteString("position fen ")
		sb.WriteString(cmd.FEN)
		if len(cmd.Moves) > 0 {
			sb.WriteString(" moves ")
			sb.WriteString(strings.Join(cmd.Moves, " "))
		}
		return sb.String(), true
	case Go:
		if cmd.Infinite {
			return "go infinite", true
		}
		if d, ok := cmd.Depth.V(); ok {
			return fmt.Sprintf("go depth %d", d), true
		}
		if ms, ok := cmd.MovetimeMs.V(); ok {
			return fmt.Sprintf("go movetime %d", ms), true
		}
		return fmt.Sprintf("go movetime %d", MovetimeForSkill(cmd.Skill).Milliseconds()), true
	case Stop:
		return "stop", true
	case SetOption:
		if cmd.Value == "" {
			return fmt.Sprintf("setoption name %s", cmd.Name), true
		}
		return fmt.Sprintf("setoption name %s value %s", cmd.Name, cmd.Value), true
	case Quit:
		return "quit", true
	default:
		return "", false
	}
}

// parseLine parses one stdout line from the engine into an Event. legal
// resolves the legal-move set for castling normalization of bestmove lines;
// it may be nil, in which case bestmove lines pass through unnormalized.
func parseLine(line string, legal func() ([]chessmodel.Move, error)) (Event, bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "uciok", line == "readyok":
		return Ready{}, true
	case strings.HasPrefix(line, "bestmove"):
		return parseBestMove(line, legal)
	case strings.HasPrefix(line, "info"):
		return parseInfo(line), true
	default:
		return nil, false
	}
}

func parseBestMove(line string, legal func() ([]chessmodel.Move, error)) (Event, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Error{Msg: "malformed bestmove line: " + line}, true
	}
	uci := fields[1]
	if uci == "(none)" {
		return Error{Msg: "engine reports no legal move"}, true
	}

	mv, err := chessmodel.ParseUCIMove(uci)
	if err != nil {
		return Error{Msg: err.Error()}, true
	}

	if legal != nil {
		moves, err := legal()
		if err == nil {
			if !containsMove(moves, mv) {
				normalized, nerr := normalizeAgainst(moves, mv)
				if nerr != nil {
					return Error{Msg: nerr.Error()}, true
				}
				mv = normalized
			}
		}
	}
	return BestMove{Move: mv}, true
}

func containsMove(moves []chessmodel.Move, mv chessmodel.Move) bool {
	for _, m := range moves {
		if m == mv {
			return true
		}
	}
	return false
}

// normalizeAgainst rewrites a king-to-rook move into the matching
// king-two-square legal move, per spec §4.1. Returns an error if no legal
// move matches either form.
func normalizeAgainst(moves []chessmodel.Move, mv chessmodel.Move) (chessmodel.Move, error) {
	fromFile := int(mv.From.File())
	toFile := int(mv.To.File())
	rank := mv.From.Rank()

	delta := 2
	if toFile < fromFile {
		delta = -2
	}
	targetFile := fromFile + delta
	for _, m := range moves {
		if m.From == mv.From && int(m.To.File()) == targetFile && m.To.Rank() == rank {
			return m, nil
		}
	}
	return chessmodel.Move{}, fmt.Errorf("engineadapter: bestmove %v is not a legal move and could not be normalized", mv.UCI())
}

func parseInfo(line string) Event {
	fields := strings.Fields(line)
	info := Info{}

	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			i++
			if i < len(fields) {
				info.Depth, _ = strconv.Atoi(fields[i])
			}
		case "seldepth":
			i++
			if i < len(fields) {
				info.SelDepth, _ = strconv.Atoi(fields[i])
			}
		case "time":
			i++
			if i < len(fields) {
				info.TimeMs, _ = strconv.Atoi(fields[i])
			}
		case "nodes":
			i++
			if i < len(fields) {
				v, _ := strconv.ParseInt(fields[i], 10, 64)
				info.Nodes = v
			}
		case "nps":
			i++
			if i < len(fields) {
				v, _ := strconv.ParseInt(fields[i], 10, 64)
				info.Nps = v
			}
		case "multipv":
			i++
			if i < len(fields) {
				info.MultiPV, _ = strconv.Atoi(fields[i])
			}
		case "score":
			i++
			if i < len(fields) {
				switch fields[i] {
				case "cp":
					i++
					if i < len(fields) {
						v, _ := strconv.Atoi(fields[i])
						info.Score = Score{Kind: Cp, Value: int32(v)}
					}
				case "mate":
					i++
					if i < len(fields) {
						v, _ := strconv.Atoi(fields[i])
						info.Score = Score{Kind: Mate, Value: int32(v)}
					}
				}
			}
		case "pv":
			var pv []chessmodel.Move
			for j := i + 1; j < len(fields); j++ {
				mv, err := chessmodel.ParseUCIMove(fields[j])
				if err != nil {
					break
				}
				pv = append(pv, mv)
			}
			info.PV = pv
			i = len(fields)
		default:
			// Unknown info field: ignored, per spec §6.
		}
	}
	return info
}
