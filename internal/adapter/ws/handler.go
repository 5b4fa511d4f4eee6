// Package ws implements the websocket change feed. Clients only listen; any
// frame they send is discarded.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	writeTimeout = 5 * time.Second
	sendBuffer   = 16
)

// Message is the envelope for all websocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn is one client. Broadcast queues on send; writeLoop drains it.
type conn struct {
	ws     *websocket.Conn
	send   chan []byte
	cancel context.CancelFunc
}

// Hub tracks connected clients and fans messages out to them. A client whose
// queue is full is disconnected rather than slowing everyone else down.
type Hub struct {
	mu          sync.RWMutex
	conns       map[*conn]struct{}
	originHosts []string
}

// NewHub creates a Hub. originHosts lists extra host patterns allowed to
// connect cross-origin; same-origin requests are always accepted.
func NewHub(originHosts ...string) *Hub {
	return &Hub{
		conns:       make(map[*conn]struct{}),
		originHosts: originHosts,
	}
}

// HandleWS upgrades the request and registers the connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	// Server read/write timeouts would otherwise close long-lived connections.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originHosts,
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	// CloseRead discards client frames and ends ctx when the client goes away.
	ctx, cancel := context.WithCancel(ws.CloseRead(context.WithoutCancel(r.Context())))
	c := &conn{ws: ws, send: make(chan []byte, sendBuffer), cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()

	slog.Info("websocket connected", "remote", r.RemoteAddr, "clients", n)
	go h.writeLoop(ctx, c)
}

func (h *Hub) writeLoop(ctx context.Context, c *conn) {
	defer func() {
		h.remove(c)
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

// Broadcast queues msg for every client without waiting on the network.
func (h *Hub) Broadcast(_ context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	var slow []*conn
	h.mu.RLock()
	for c := range h.conns {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("disconnecting slow websocket client", "type", msg.Type)
		h.remove(c)
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		c.cancel()
		_ = c.ws.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.conns, c)
	}
}

// remove forgets c and stops its write loop, which closes the socket.
func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected", "clients", len(h.conns))
	}
}
