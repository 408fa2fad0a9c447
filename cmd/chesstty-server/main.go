package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"chesstty/pkg/engineadapter"
	"chesstty/pkg/persistence"
	"chesstty/pkg/review"
	"chesstty/pkg/rpc"
	"chesstty/pkg/session"

	"github.com/seekerror/logw"
)

const shutdownTimeout = 5 * time.Second

var (
	socketPath = flag.String("socket", os.Getenv("CHESSTTY_SOCKET_PATH"), "unix socket path to listen on (overrides -addr if set)")
	addr       = flag.String("addr", envOr("CHESSTTY_ADDR", ":8980"), "tcp address to listen on")
	dataDir    = flag.String("data-dir", envOr("CHESSTTY_DATA_DIR", "."), "directory holding chesstty.db and legacy json data")
	enginePath = flag.String("engine", os.Getenv("CHESSTTY_ENGINE"), "path to the UCI engine binary (autodetected if unset)")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: chesstty-server [options]

chesstty-server hosts the session, review, and persistence layers behind a
websocket RPC endpoint.
Options:
`)
		flag.PrintDefaults()
	}
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func main() {
	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPath := filepath.Join(*dataDir, "chesstty.db")
	db, err := persistence.Open(ctx, dbPath, *dataDir)
	if err != nil {
		logw.Exitf(ctx, "opening database %v: %v", dbPath, err)
	}
	defer db.Close()

	suspendedRepo := persistence.NewSuspendedRepo(ctx, db)
	positionRepo := persistence.NewPositionRepo(ctx, db)
	finishedRepo := persistence.NewFinishedGameRepo(ctx, db)
	reviewRepo := persistence.NewReviewRepo(ctx, db)
	advancedRepo := persistence.NewAdvancedRepo(ctx, db)

	locate := func() (string, []string, error) {
		if *enginePath != "" {
			return *enginePath, nil, nil
		}
		p, err := engineadapter.FindEnginePath("CHESSTTY_ENGINE")
		return p, nil, err
	}
	reviewLocate := func() (string, []string) {
		p, _, err := locate()
		if err != nil {
			logw.Errorf(ctx, "server: locating analysis engine: %v", err)
		}
		return p, nil
	}

	sessions := session.NewManager(ctx, suspendedRepo, finishedRepo, locate)
	defer sessions.Shutdown()

	reviews := review.NewManager(ctx, review.DefaultConfig(), finishedRepo, reviewRepo, advancedRepo, reviewLocate)
	reviews.RecoverOnStartup()

	server := rpc.NewServer(sessions, reviews, positionRepo, suspendedRepo, finishedRepo, advancedRepo)

	mux := http.NewServeMux()
	mux.Handle("/rpc", server)

	httpServer := &http.Server{Handler: mux}

	ln, err := listener()
	if err != nil {
		logw.Exitf(ctx, "listening: %v", err)
	}

	logw.Infof(ctx, "chesstty-server listening on %v", ln.Addr())
	go func() {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logw.Errorf(ctx, "server: %v", err)
		}
	}()

	<-ctx.Done()
	logw.Infof(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	for _, id := range sessions.IDs() {
		if err := sessions.Close(id); err != nil {
			logw.Errorf(ctx, "server: closing session %v during shutdown: %v", id, err)
		}
	}
}

func listener() (net.Listener, error) {
	if *socketPath != "" {
		_ = os.Remove(*socketPath)
		return net.Listen("unix", *socketPath)
	}
	return net.Listen("tcp", *addr)
}
