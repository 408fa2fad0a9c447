package engineadapter

import (
	"time"

	"github.com/seekerror/stdlib/pkg/lang"
)

// Command is one of the messages a caller can send to an Adapter's command
// sink, per spec §4.1.
type Command interface {
	isCommand()
}

// SetPosition tells the engine which position to search from next.
type SetPosition struct {
	FEN   string
	Moves []string // UCI moves played after FEN, usually empty: chesstty always sends full FENs
}

func (SetPosition) isCommand() {}

// Go starts a search. Exactly one of MovetimeMs, Depth, Infinite should be
// meaningful; if none are set the adapter derives movetime from Skill.
type Go struct {
	MovetimeMs lang.Optional[int]
	Depth      lang.Optional[int]
	Infinite   bool
	Skill      int // used only to derive MovetimeMs when neither field above is set
}

func (Go) isCommand() {}

// Stop cancels the in-flight search; the adapter still delivers the
// BestMove the engine was already computing.
type Stop struct{}

func (Stop) isCommand() {}

// SetOption sets a UCI engine option. Must precede the first Go.
type SetOption struct {
	Name  string
	Value string
}

func (SetOption) isCommand() {}

// Quit asks the engine to exit; Adapter.Close sends this then waits.
type Quit struct{}

func (Quit) isCommand() {}

// MovetimeForSkill derives a search movetime from a skill level 0-20, per
// spec §4.1's table.
func MovetimeForSkill(skill int) time.Duration {
	switch {
	case skill <= 5:
		return 200 * time.Millisecond
	case skill <= 10:
		return 500 * time.Millisecond
	case skill <= 15:
		return 1000 * time.Millisecond
	default:
		return 2000 * time.Millisecond
	}
}
