// Package engineadapter drives one UCI subprocess per spec §4.1: a writer
// task serializes commands to stdin, a reader task parses stdout into
// events, and both mirror raw lines for diagnostics. The shape is grounded
// in the teacher's pkg/engine/util.go line-channel helpers and
// pkg/engine/uci/uci.go's channel-driven protocol loop, with the roles
// reversed: chesstty is the GUI/driver side, not the engine side.
package engineadapter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"chesstty/pkg/chessmodel"

	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/contextx"
	"github.com/seekerror/stdlib/pkg/util/iox"
)

// LegalMovesFunc resolves the legal moves for the position an adapter is
// currently searching, used to normalize castling on bestmove lines.
type LegalMovesFunc func() ([]chessmodel.Move, error)

// Adapter owns one child process speaking UCI on stdin/stdout.
type Adapter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	legal  LegalMovesFunc
	logCtx context.Context

	commands chan Command
	events   chan Event

	closer iox.AsyncCloser
	done   chan struct{}

	mu      sync.Mutex
	exited  bool
	exitErr error
}

// Options configures Start.
type Options struct {
	Path           string
	Args           []string
	HandshakeTimeout time.Duration // default 5s, per spec §5
	Legal          LegalMovesFunc
}

// Start spawns the engine subprocess and performs the uci/isready
// handshake. On handshake timeout or spawn failure it returns an error and
// the process (if started) is killed.
func Start(ctx context.Context, opt Options) (*Adapter, error) {
	if opt.HandshakeTimeout == 0 {
		opt.HandshakeTimeout = 5 * time.Second
	}

	cmd := exec.Command(opt.Path, opt.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engineadapter: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engineadapter: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("engineadapter: spawn %v: %w", opt.Path, err)
	}

	a := &Adapter{
		cmd:      cmd,
		stdin:    stdin,
		legal:    opt.Legal,
		logCtx:   ctx,
		commands: make(chan Command, 16),
		events:   make(chan Event, 256),
		closer:   iox.NewAsyncCloser(),
		done:     make(chan struct{}),
	}

	go a.writer()
	go a.reader(stdout)
	go a.waitExit()

	if err := a.handshake(ctx, opt.HandshakeTimeout); err != nil {
		_ = a.forceKill()
		return nil, err
	}

	logw.Infof(ctx, "engineadapter: started %v (pid %v)", opt.Path, cmd.Process.Pid)
	return a, nil
}

func (a *Adapter) handshake(ctx context.Context, timeout time.Duration) error {
	// Abort the handshake wait immediately if Close is called concurrently,
	// not just on the timeout, mirroring searchctl.Iterative's quit-aware
	// context.
	qctx, qcancel := contextx.WithQuitCancel(ctx, a.closer.Closed())
	defer qcancel()

	hctx, cancel := context.WithTimeout(qctx, timeout)
	defer cancel()

	a.commands <- Go0("uci")
	if err := a.awaitReady(hctx); err != nil {
		return fmt.Errorf("engineadapter: handshake (uci/uciok) failed: %w", err)
	}
	a.commands <- Go0("isready")
	if err := a.awaitReady(hctx); err != nil {
		return fmt.Errorf("engineadapter: handshake (isready/readyok) failed: %w", err)
	}
	return nil
}

func (a *Adapter) awaitReady(ctx context.Context) error {
	for {
		select {
		case ev, ok := <-a.events:
			if !ok {
				return fmt.Errorf("engine closed during handshake")
			}
			if _, isReady := ev.(Ready); isReady {
				return nil
			}
			// Anything else (Info, RawUci) during handshake is fine to drop.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// rawCommand lets Start send literal handshake lines without growing the
// public Command surface.
type rawCommand struct{ line string }

func (rawCommand) isCommand() {}

// Go0 builds a literal one-line command, used only for the handshake.
func Go0(line string) Command { return rawCommand{line: line} }

func (a *Adapter) writer() {
	w := bufio.NewWriter(a.stdin)
	for cmd := range a.commands {
		var line string
		if raw, ok := cmd.(rawCommand); ok {
			line = raw.line
		} else {
			rendered, ok := formatCommand(cmd)
			if !ok {
				continue
			}
			line = rendered
		}

		if _, err := w.WriteString(line + "\n"); err != nil {
			a.emit(Error{Msg: fmt.Sprintf("write failed: %v", err)})
			return
		}
		if err := w.Flush(); err != nil {
			a.emit(Error{Msg: fmt.Sprintf("flush failed: %v", err)})
			return
		}
		a.emit(RawUci{Direction: ToEngine, Line: line})

		if _, isQuit := cmd.(Quit); isQuit {
			_ = a.stdin.Close()
			return
		}
	}
}

func (a *Adapter) reader(stdout io.ReadCloser) {
	defer close(a.events)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		a.emit(RawUci{Direction: FromEngine, Line: line})

		ev, ok := parseLine(line, a.legal)
		if ok {
			a.emit(ev)
		}
	}
}

// emit is used from the writer/reader goroutines before a.events may have
// been closed by the reader's own defer; callers in reader must not call
// this after the scan loop exits, which the code above respects.
func (a *Adapter) emit(ev Event) {
	defer func() { recover() }() // guards the narrow race where the reader has already closed a.events
	select {
	case a.events <- ev:
	default:
		// Event buffer full: drop rather than block the engine's own I/O loop.
	}
}

func (a *Adapter) waitExit() {
	err := a.cmd.Wait()
	a.mu.Lock()
	a.exited = true
	a.exitErr = err
	a.mu.Unlock()
	close(a.done)
}

// Commands returns the command sink.
func (a *Adapter) Commands() chan<- Command { return a.commands }

// Events returns the event source.
func (a *Adapter) Events() <-chan Event { return a.events }

// Close sends Quit, waits up to 1s for graceful exit, then force-kills.
// There is no finalizer: an Adapter that is never closed keeps its
// subprocess and its reader/writer goroutines running.
func (a *Adapter) Close() error {
	select {
	case a.commands <- Quit{}:
	default:
	}
	a.closer.Close()

	select {
	case <-a.done:
		return nil
	case <-time.After(1 * time.Second):
		return a.forceKill()
	}
}

func (a *Adapter) forceKill() error {
	a.mu.Lock()
	exited := a.exited
	a.mu.Unlock()
	if exited {
		return nil
	}
	if a.cmd.Process == nil {
		return nil
	}
	logw.Infof(a.logCtx, "engineadapter: force-killing pid %v after grace period", a.cmd.Process.Pid)
	return a.cmd.Process.Kill()
}
