package session

import (
	"context"
	"fmt"
	"time"

	"chesstty/pkg/chessmodel"
	"chesstty/pkg/engineadapter"

	"github.com/google/uuid"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
)

// inboxCapacity bounds the actor's single command inbox, per spec §4.3/§5.
const inboxCapacity = 32

// Actor owns one session's mutable state exclusively; every field below is
// touched only from its own run loop goroutine.
type Actor struct {
	id     uuid.UUID
	inbox  chan Command
	bus    *broadcastBus
	logCtx context.Context

	startFEN string
	history  []MoveRecord
	phase    Phase
	ended    lang.Optional[EndedInfo]
	mode     GameMode
	timer    TimerState
	engine   EngineConfig

	adapter        *engineadapter.Adapter
	engineThinking bool
	lastEngineInfo lang.Optional[engineadapter.Info]
	uciLog         []UciLogEntry

	revision uint64
}

// StartOptions configures a new actor, per spec §4.4 Create.
type StartOptions struct {
	ID       uuid.UUID
	FEN      string
	Mode     GameMode
	Timer    TimerState
	Engine   EngineConfig
	EnginePath string
	EngineArgs []string
}

// Handle is what every other task holds to talk to a live session actor.
type Handle struct {
	ID    uuid.UUID
	inbox chan<- Command
	bus   *broadcastBus
}

// Send enqueues cmd, blocking if the inbox is full. Commands originate from
// few, well-behaved callers (rpc dispatch, the manager, the timer driver),
// so an unbounded block here is an acceptable simplification over a
// try-send-then-fail API.
func (h Handle) Send(cmd Command) {
	h.inbox <- cmd
}

// Subscribe registers for this session's event broadcast.
func (h Handle) Subscribe() (<-chan Event, int) {
	return h.bus.Subscribe()
}

// Unsubscribe removes a prior Subscribe.
func (h Handle) Unsubscribe(id int) {
	h.bus.Unsubscribe(id)
}

// Start builds the initial actor state and spawns its run loop, returning a
// Handle and the synchronous initial snapshot (the actor has not processed
// any command yet), per spec §4.4 Create.
func Start(ctx context.Context, opt StartOptions) (Handle, Snapshot) {
	if opt.FEN == "" {
		opt.FEN = chessmodel.Initial
	}

	a := &Actor{
		id:       opt.ID,
		inbox:    make(chan Command, inboxCapacity),
		bus:      newBroadcastBus(),
		logCtx:   ctx,
		startFEN: opt.FEN,
		phase:    Lobby,
		mode:     opt.Mode,
		timer:    opt.Timer,
		engine:   opt.Engine,
	}
	if opt.Mode.Kind != Analysis && opt.Mode.Kind != Review {
		a.phase = Playing
	}

	snap := a.snapshot()

	go a.run(ctx, opt.EnginePath, opt.EngineArgs)

	return Handle{ID: a.id, inbox: a.inbox, bus: a.bus}, snap
}

func (a *Actor) currentFEN() string {
	if len(a.history) == 0 {
		return a.startFEN
	}
	return a.history[len(a.history)-1].FENAfter
}

func (a *Actor) snapshot() Snapshot {
	side := chessmodel.White
	if fen := a.currentFEN(); fen != "" {
		if pos, err := chessmodel.ParseFEN(fen); err == nil {
			side = pos.Turn()
		}
	}
	var lastMove lang.Optional[MoveRecord]
	if n := len(a.history); n > 0 {
		lastMove = lang.Some(a.history[n-1])
	}
	hist := make([]MoveRecord, len(a.history))
	copy(hist, a.history)

	return Snapshot{
		ID:             a.id,
		StartFEN:       a.startFEN,
		FEN:            a.currentFEN(),
		SideToMove:     side,
		History:        hist,
		Phase:          a.phase,
		Ended:          a.ended,
		Mode:           a.mode,
		Timer:          a.timer,
		EngineThinking: a.engineThinking,
		LastMove:       lastMove,
		LastEngineInfo: a.lastEngineInfo,
		Revision:       a.revision,
	}
}

func (a *Actor) broadcastState() {
	a.revision++
	a.bus.Broadcast(StateChanged{Snapshot: a.snapshot()})
}

// run is the actor's single select loop, grounded in the teacher's
// console.Driver.process shape: one goroutine, one inbox, no shared memory.
func (a *Actor) run(ctx context.Context, enginePath string, engineArgs []string) {
	if a.engine.Enabled {
		if err := a.attachEngine(ctx, enginePath, engineArgs); err != nil {
			a.engine.Enabled = false
		}
	}

	for cmd := range a.inbox {
		if a.handle(ctx, cmd) {
			return
		}
	}
}

// handle processes one command; it returns true iff the actor should exit
// (i.e. it handled Shutdown).
func (a *Actor) handle(ctx context.Context, cmd Command) bool {
	switch c := cmd.(type) {
	case GetSnapshot:
		c.Reply <- a.snapshot()

	case MakeMove:
		c.Reply <- a.makeMove(c.Move, nil)

	case UndoMove:
		c.Reply <- a.undo()

	case Redo:
		c.Reply <- newErr(KindNotAllowed, "redo is not supported")

	case ResetGame:
		c.Reply <- a.reset(c.FEN)

	case SetEngine:
		c.Reply <- a.setEngine(ctx, c)

	case TriggerEngineMove:
		a.triggerEngineMove(c.MovetimeMs)

	case StopEngine:
		c.Reply <- a.stopEngine()

	case Pause:
		c.Reply <- a.pause()

	case Unpause:
		c.Reply <- a.unpause()

	case Tick:
		a.tick(c.Now)

	case engineEvent:
		a.handleEngineEvent(c.ev)

	case Shutdown:
		a.shutdown()
		close(c.Done)
		return true
	}
	return false
}

func (a *Actor) makeMove(mv chessmodel.Move, clockMs *int64) error {
	if a.phase != Playing {
		return newErr(KindNotPlaying, "session %v is not in Playing phase", a.id)
	}

	legal, err := chessmodel.LegalMoves(a.currentFEN())
	if err != nil {
		return newErr(KindInternal, "legal moves: %v", err)
	}
	if !containsMoveInModel(legal, mv) {
		return newErr(KindIllegal, "%v is not legal from %v", mv.UCI(), a.currentFEN())
	}

	res, err := chessmodel.ApplyMove(a.currentFEN(), mv)
	if err != nil {
		return newErr(KindIllegal, "%v", err)
	}

	rec := MoveRecord{
		Move:          mv,
		PieceMoved:    res.PieceMoved,
		PieceCaptured: res.PieceCaptured,
		SAN:           res.SAN,
		FENAfter:      res.FENAfter,
	}
	if clockMs != nil {
		rec.ClockMs = lang.Some(*clockMs)
	}
	a.history = append(a.history, rec)

	if res.Status.Terminal {
		info := EndedInfo{Result: res.Status.Result, Reason: res.Status.Reason}
		a.phase = Ended
		a.ended = lang.Some(info)
		a.stopEngineQuiet()
		a.bus.Broadcast(GameEnded{Result: info})
	} else if a.phase == Playing {
		pos, err := chessmodel.ParseFEN(res.FENAfter)
		if err == nil && a.mode.enginePlays(pos.Turn()) {
			a.enqueueSelf(TriggerEngineMove{})
		}
	}

	a.broadcastState()
	return nil
}

// enqueueSelf posts cmd back to this actor's own inbox without blocking the
// current handle call; the inbox is sized to absorb the self-triggered
// engine move alongside ordinary traffic.
func (a *Actor) enqueueSelf(cmd Command) {
	select {
	case a.inbox <- cmd:
	default:
		logw.Errorf(a.logCtx, "session %v: inbox full, dropping self-enqueued %T", a.id, cmd)
	}
}

func containsMoveInModel(moves []chessmodel.Move, mv chessmodel.Move) bool {
	for _, m := range moves {
		if m == mv {
			return true
		}
	}
	return false
}

func (a *Actor) undo() error {
	if a.mode.Kind != HumanVsEngine || a.engine.Skill > 5 {
		return newErr(KindNotAllowed, "undo is only allowed in human-vs-engine at low skill")
	}
	if len(a.history) == 0 {
		return newErr(KindConflict, "no moves to undo")
	}

	last := a.history[len(a.history)-1]
	a.history = a.history[:len(a.history)-1]

	if last.PieceMoved != 0 {
		pos, err := chessmodel.ParseFEN(a.currentFEN())
		if err == nil && a.mode.enginePlays(pos.Turn()) {
			if len(a.history) > 0 {
				a.history = a.history[:len(a.history)-1]
			}
		}
	}

	if a.phase == Ended {
		a.phase = Playing
		a.ended = lang.Optional[EndedInfo]{}
	}
	a.broadcastState()
	return nil
}

func (a *Actor) reset(fen lang.Optional[string]) error {
	f, ok := fen.V()
	if !ok {
		f = chessmodel.Initial
	}
	if _, err := chessmodel.ParseFEN(f); err != nil {
		return newErr(KindInvalid, "invalid fen: %v", err)
	}
	a.startFEN = f
	a.history = nil
	a.phase = Playing
	a.ended = lang.Optional[EndedInfo]{}
	a.engineThinking = false
	a.broadcastState()
	return nil
}

func (a *Actor) setEngine(ctx context.Context, c SetEngine) error {
	a.engine = EngineConfig{Enabled: c.Enabled, Skill: c.Skill, Threads: c.Threads, HashMB: c.HashMB}
	if !c.Enabled {
		a.detachEngine()
		a.broadcastState()
		return nil
	}
	if a.adapter == nil {
		if err := a.attachEngine(ctx, "", nil); err != nil {
			return err
		}
	}
	a.broadcastState()
	return nil
}

func (a *Actor) attachEngine(ctx context.Context, path string, args []string) error {
	if path == "" {
		var err error
		path, err = engineadapter.FindEnginePath("CHESSTTY_ENGINE")
		if err != nil {
			a.bus.Broadcast(ErrorEvent{Msg: fmt.Sprintf("engine startup: %v", err)})
			return newErr(KindEngineStartup, "%v", err)
		}
	}

	adapter, err := engineadapter.Start(ctx, engineadapter.Options{
		Path: path,
		Args: args,
		Legal: func() ([]chessmodel.Move, error) {
			return chessmodel.LegalMoves(a.currentFEN())
		},
	})
	if err != nil {
		a.bus.Broadcast(ErrorEvent{Msg: fmt.Sprintf("engine startup: %v", err)})
		return newErr(KindEngineStartup, "%v", err)
	}
	a.adapter = adapter
	go a.engineEventHandler(adapter)
	return nil
}

func (a *Actor) detachEngine() {
	if a.adapter == nil {
		return
	}
	_ = a.adapter.Close()
	a.adapter = nil
	a.engineThinking = false
}

// engineEventHandler is the per-session engine-event handler task, per spec
// §4.3: it only forwards, never mutates state directly, so the actor
// remains the sole writer.
func (a *Actor) engineEventHandler(adapter *engineadapter.Adapter) {
	for ev := range adapter.Events() {
		a.enqueueSelf(engineEvent{ev: ev})
	}
}

func (a *Actor) handleEngineEvent(ev engineadapter.Event) {
	switch e := ev.(type) {
	case engineadapter.Info:
		a.lastEngineInfo = lang.Some(e)
		a.bus.Broadcast(EngineThinking{Info: e})

	case engineadapter.BestMove:
		a.engineThinking = false
		mv, err := chessmodel.NormalizeCastling(a.currentFEN(), e.Move)
		if err != nil {
			a.bus.Broadcast(ErrorEvent{Msg: fmt.Sprintf("engine returned illegal move: %v", err)})
			a.broadcastState()
			return
		}
		if err := a.makeMove(mv, nil); err != nil {
			a.bus.Broadcast(ErrorEvent{Msg: fmt.Sprintf("engine move rejected: %v", err)})
			a.broadcastState()
		}

	case engineadapter.RawUci:
		entry := UciLogEntry{Direction: e.Direction, RawLine: e.Line, Timestamp: time.Now()}
		a.uciLog = append(a.uciLog, entry)
		if len(a.uciLog) > uciLogCap {
			a.uciLog = a.uciLog[len(a.uciLog)-uciLogCap:]
		}
		a.bus.Broadcast(UciMessage{Entry: entry})

	case engineadapter.Error:
		a.engineThinking = false
		a.bus.Broadcast(ErrorEvent{Msg: e.Msg})
		a.broadcastState()

	case engineadapter.Ready:
		// Handshake-only event; nothing to do once attached.
	}
}

func (a *Actor) triggerEngineMove(movetimeMs lang.Optional[int]) {
	if a.adapter == nil || a.phase != Playing {
		return
	}
	goCmd := engineadapter.Go{Skill: a.engine.Skill}
	if ms, ok := movetimeMs.V(); ok {
		goCmd.MovetimeMs = lang.Some(ms)
	}
	a.adapter.Commands() <- engineadapter.SetPosition{FEN: a.currentFEN()}
	a.adapter.Commands() <- goCmd
	a.engineThinking = true
	a.broadcastState()
}

func (a *Actor) stopEngine() error {
	if a.adapter == nil {
		return newErr(KindConflict, "no engine attached")
	}
	a.stopEngineQuiet()
	a.broadcastState()
	return nil
}

func (a *Actor) stopEngineQuiet() {
	if a.adapter == nil {
		return
	}
	a.adapter.Commands() <- engineadapter.Stop{}
	a.engineThinking = false
}

func (a *Actor) pause() error {
	if a.phase != Playing {
		return newErr(KindConflict, "can only pause a Playing session")
	}
	a.phase = Paused
	a.stopEngineQuiet()
	a.broadcastState()
	return nil
}

func (a *Actor) unpause() error {
	if a.phase != Paused {
		return newErr(KindConflict, "session is not paused")
	}
	a.phase = Playing

	pos, err := chessmodel.ParseFEN(a.currentFEN())
	if err == nil && a.mode.enginePlays(pos.Turn()) {
		a.enqueueSelf(TriggerEngineMove{})
	}
	a.broadcastState()
	return nil
}

func (a *Actor) tick(now time.Time) {
	if a.phase != Playing || !a.timer.timed() {
		return
	}
	side, ok := a.timer.ActiveSide.V()
	if !ok {
		return
	}

	const period = 100 * time.Millisecond
	if side == chessmodel.White {
		a.timer.WhiteRemainingMs -= period.Milliseconds()
		if a.timer.WhiteRemainingMs <= 0 {
			a.timeout(chessmodel.BlackWins)
			return
		}
	} else {
		a.timer.BlackRemainingMs -= period.Milliseconds()
		if a.timer.BlackRemainingMs <= 0 {
			a.timeout(chessmodel.WhiteWins)
			return
		}
	}
	a.broadcastState()
}

func (a *Actor) timeout(result chessmodel.Result) {
	info := EndedInfo{Result: result, Reason: "Timeout"}
	a.phase = Ended
	a.ended = lang.Some(info)
	a.stopEngineQuiet()
	a.bus.Broadcast(GameEnded{Result: info})
	a.broadcastState()
}

func (a *Actor) shutdown() {
	a.detachEngine()
	a.bus.Close()
}
