// Package client is the reference client-side session model, per spec §4.7
// and the redesign note in §9: the server snapshot is the only truth the
// client ever holds, so Conn never derives board state itself — it applies
// whatever Snapshot arrives on the wire.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"chesstty/pkg/rpc"

	"github.com/gorilla/websocket"
)

// Conn is a single websocket connection to a chesstty server, correlating
// call/result envelopes by ID and fanning event envelopes out to whichever
// GameSession subscribed to that session id.
type Conn struct {
	conn *websocket.Conn

	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan rpc.Envelope
	streams map[string]chan rpc.Envelope

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial opens a websocket connection to addr (e.g. "ws://localhost:8080/rpc")
// and starts its read loop.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %v: %w", addr, err)
	}
	c := &Conn{
		conn:    conn,
		pending: make(map[string]chan rpc.Envelope),
		streams: make(map[string]chan rpc.Envelope),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.conn.Close()
}

func (c *Conn) readLoop() {
	defer c.cleanup()
	for {
		var env rpc.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		switch env.Kind {
		case rpc.KindResult, rpc.KindError:
			c.mu.Lock()
			ch, ok := c.pending[env.ID]
			if ok {
				delete(c.pending, env.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- env
			}
		case rpc.KindEvent, rpc.KindDropped:
			c.mu.Lock()
			ch, ok := c.streams[env.SessionID]
			c.mu.Unlock()
			if ok {
				select {
				case ch <- env:
				default:
					// Subscriber's own channel is full; drop rather than
					// block the shared read loop for every other session.
				}
			}
		}
	}
}

func (c *Conn) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = nil
	for _, ch := range c.streams {
		close(ch)
	}
	c.streams = nil
}

// Call sends a unary request and blocks for its matching response.
func (c *Conn) Call(ctx context.Context, method string, req, resp any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	id := fmt.Sprintf("%d", c.nextID.Add(1))
	ch := make(chan rpc.Envelope, 1)

	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return fmt.Errorf("client: connection closed")
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.conn.WriteJSON(rpc.Envelope{ID: id, Kind: rpc.KindCall, Method: method, Payload: payload}); err != nil {
		return err
	}

	select {
	case env, ok := <-ch:
		if !ok {
			return fmt.Errorf("client: connection closed while awaiting %v", method)
		}
		if env.Kind == rpc.KindError {
			return fmt.Errorf("client: %v: %v", method, env.Error)
		}
		if resp == nil || len(env.Payload) == 0 {
			return nil
		}
		return json.Unmarshal(env.Payload, resp)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// subscribe registers sessionID for event delivery and returns the channel
// the read loop will push onto.
func (c *Conn) subscribe(sessionID string) <-chan rpc.Envelope {
	ch := make(chan rpc.Envelope, 64)
	c.mu.Lock()
	if c.streams != nil {
		c.streams[sessionID] = ch
	}
	c.mu.Unlock()
	return ch
}

func (c *Conn) unsubscribe(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streams != nil {
		delete(c.streams, sessionID)
	}
}
