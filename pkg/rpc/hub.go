package rpc

import (
	"context"
	"encoding/json"
	"sync"

	"chesstty/pkg/session"

	"github.com/google/uuid"
	"github.com/seekerror/logw"
)

// subscription pumps one session's broadcast bus onto one websocket
// connection's outbound writer, per spec §4.6: StreamSessionEvents upgrades
// a connection into a per-session subscription. Grounded in the
// register/unregister/broadcast hub pattern common to the pack's
// gorilla/websocket servers, narrowed from "one hub of all clients" to "one
// pump per (connection, session) pair" since each connection here already
// owns its own send loop.
type subscription struct {
	sessionID uuid.UUID
	subID     int
	events    <-chan session.Event
	done      chan struct{}
}

// streamSession relays events from a session's broadcast bus into out until
// the bus closes, the connection's context is done, or the subscriber is
// dropped for falling behind (per spec §4.6/§5's bounded-subscriber rule,
// enforced inside the bus itself).
func streamSession(ctx context.Context, h session.Handle, out *connWriter) {
	ch, subID := h.Subscribe()
	defer h.Unsubscribe(subID)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				// Bus closed the subscription: either the session shut down
				// or this subscriber overflowed and was dropped.
				out.Write(Envelope{Kind: KindDropped, SessionID: h.ID.String(), Method: MethodStreamSessionEvents})
				return
			}
			payload, err := json.Marshal(eventPayload(ev))
			if err != nil {
				logw.Errorf(ctx, "rpc: marshaling event for session %v: %v", h.ID, err)
				continue
			}
			out.Write(Envelope{Kind: KindEvent, SessionID: h.ID.String(), Method: eventMethod(ev), Payload: payload})
		case <-ctx.Done():
			return
		}
	}
}

func eventMethod(ev session.Event) string {
	switch ev.(type) {
	case session.StateChanged:
		return "StateChanged"
	case session.EngineThinking:
		return "EngineThinking"
	case session.UciMessage:
		return "UciMessage"
	case session.GameEnded:
		return "GameEnded"
	case session.ErrorEvent:
		return "ErrorEvent"
	default:
		return "Unknown"
	}
}

func eventPayload(ev session.Event) any {
	return ev
}

// connWriter serializes concurrent writes to one websocket connection, per
// the hub/client pattern grounded in the pack's gorilla/websocket servers: a
// single writer goroutine drains a buffered channel so unary replies and
// streamed events never race on the same connection.
type connWriter struct {
	send     chan Envelope
	closeOne sync.Once
}

func newConnWriter(buf int) *connWriter {
	return &connWriter{send: make(chan Envelope, buf)}
}

// Write enqueues env, dropping it if the connection is already closing.
func (w *connWriter) Write(env Envelope) {
	defer func() { recover() }()
	w.send <- env
}

func (w *connWriter) Close() {
	w.closeOne.Do(func() { close(w.send) })
}
