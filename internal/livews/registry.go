package livews

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	ws "nhooyr.io/websocket"

	"yuzu/souschef/internal/orchestrator"
)

// Registry keeps at most one browser connection per session and delivers
// orchestrator pushes to it.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*ws.Conn

	// pushTimeout bounds one Push so a client that stops reading cannot hold
	// the session lane.
	pushTimeout time.Duration
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*ws.Conn), pushTimeout: writeTimeout}
}

// Replace sets the connection for a session and closes the previous one if present.
func (r *Registry) Replace(sessionID string, c *ws.Conn) (prevClosed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.conns[sessionID]; ok && old != nil {
		_ = old.Close(ws.StatusNormalClosure, "replaced")
		prevClosed = true
	}
	r.conns[sessionID] = c
	return
}

func (r *Registry) Get(sessionID string) *ws.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[sessionID]
}

// Remove drops c if it is still the session's connection.
func (r *Registry) Remove(sessionID string, c *ws.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[sessionID] == c {
		delete(r.conns, sessionID)
	}
}

// SendJSON writes v to the session's socket. No connection is not an error.
func (r *Registry) SendJSON(ctx context.Context, sessionID string, v any) error {
	c := r.Get(sessionID)
	if c == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Write(ctx, ws.MessageText, b)
}

// Push implements orchestrator.Sink.
func (r *Registry) Push(ctx context.Context, msg orchestrator.Message) error {
	ctx, cancel := context.WithTimeout(ctx, r.pushTimeout)
	defer cancel()
	return r.SendJSON(ctx, msg.SessionID, msg)
}
