package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chesstty/pkg/client"
	"chesstty/pkg/rpc"

	"github.com/chzyer/readline"
	"github.com/seekerror/logw"
)

// chesstty-client is a minimal reference client, a stand-in for the full
// terminal UI (explicitly out of scope). It exists to exercise pkg/client
// end to end: connect, create a session, make moves, print the server's
// snapshot after every command. The read-eval-print loop shape is grounded
// in the teacher's pkg/engine/console, with line editing and history
// provided by github.com/chzyer/readline (the CLI library the retrieval
// pack's own chess-server repo uses for the same role).

var addr = flag.String("addr", "ws://localhost:8980/rpc", "server websocket address")

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: chesstty-client [options]

chesstty-client is a line-oriented reference client for a chesstty-server.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := client.Dial(ctx, *addr)
	if err != nil {
		logw.Exitf(ctx, "dialing %v: %v", *addr, err)
	}
	defer conn.Close()

	gs, err := client.OpenSession(ctx, conn, rpc.CreateSessionRequest{})
	if err != nil {
		logw.Exitf(ctx, "creating session: %v", err)
	}
	printSnapshot(gs)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "chesstty> ",
		HistoryFile: historyFile(),
	})
	if err != nil {
		logw.Exitf(ctx, "initializing readline: %v", err)
	}
	defer rl.Close()

	for {
		raw, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			if cerr := gs.Close(ctx); cerr != nil {
				logw.Errorf(ctx, "closing session: %v", cerr)
			}
			return
		}
		if err != nil {
			logw.Errorf(ctx, "readline: %v", err)
			continue
		}

		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "quit", "exit", "q":
			if err := gs.Close(ctx); err != nil {
				logw.Errorf(ctx, "closing session: %v", err)
			}
			return

		case "print", "p":
			printSnapshot(gs)

		default:
			if err := gs.MakeMove(ctx, line); err != nil {
				fmt.Printf("invalid move %q: %v\n", line, err)
				continue
			}
			printSnapshot(gs)
		}
	}
}

// historyFile places readline history alongside other chesstty client state,
// falling back to the working directory if $HOME can't be resolved.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chesstty-client-history"
	}
	return home + "/.chesstty-client-history"
}

func printSnapshot(gs *client.GameSession) {
	snap := gs.Snapshot()
	fmt.Println()
	fmt.Printf("fen:   %v\n", snap.FEN)
	fmt.Printf("turn:  %v\n", snap.SideToMove)
	fmt.Printf("phase: %v\n", snap.Phase)
	fmt.Printf("moves: %d\n", snap.MoveCount())
	if msg := gs.LastError(); msg != "" {
		fmt.Printf("error: %v\n", msg)
	}
	fmt.Println()
}
