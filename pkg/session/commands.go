package session

import (
	"time"

	"chesstty/pkg/chessmodel"
	"chesstty/pkg/engineadapter"

	"github.com/seekerror/stdlib/pkg/lang"
)

// Command is one message in the actor's command inbox, per spec §4.3. Each
// carries a reply channel where a result is expected, except
// TriggerEngineMove (self-enqueued) and Tick (fire-and-forget, driven by the
// manager's timer driver).
type Command interface {
	isCommand()
}

type GetSnapshot struct {
	Reply chan Snapshot
}

func (GetSnapshot) isCommand() {}

type MakeMove struct {
	Move  chessmodel.Move
	Reply chan error
}

func (MakeMove) isCommand() {}

type UndoMove struct {
	Reply chan error
}

func (UndoMove) isCommand() {}

type Redo struct {
	Reply chan error
}

func (Redo) isCommand() {}

type ResetGame struct {
	FEN   lang.Optional[string]
	Reply chan error
}

func (ResetGame) isCommand() {}

type SetEngine struct {
	Enabled bool
	Skill   int
	Threads lang.Optional[int]
	HashMB  lang.Optional[int]
	Reply   chan error
}

func (SetEngine) isCommand() {}

// TriggerEngineMove is enqueued by the actor itself; it has no reply. The
// actor ignores it unless the session is Playing with an engine attached.
type TriggerEngineMove struct {
	MovetimeMs lang.Optional[int]
}

func (TriggerEngineMove) isCommand() {}

type StopEngine struct {
	Reply chan error
}

func (StopEngine) isCommand() {}

type Pause struct {
	Reply chan error
}

func (Pause) isCommand() {}

type Unpause struct {
	Reply chan error
}

func (Unpause) isCommand() {}

// Tick is produced only by the manager's shared timer driver task.
type Tick struct {
	Now time.Time
}

func (Tick) isCommand() {}

type Shutdown struct {
	Done chan struct{}
}

func (Shutdown) isCommand() {}

// engineEvent is an internal command the per-session engine-event-handler
// task uses to forward adapter events back into the actor's single-writer
// loop; it is not part of the public command surface.
type engineEvent struct {
	ev engineadapter.Event
}

func (engineEvent) isCommand() {}
