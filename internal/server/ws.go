package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHub fans each refresh cycle's Update out to connected dashboard pages.
type wsHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	last    []byte
	log     *slog.Logger
}

func newWSHub(logger *slog.Logger) *wsHub {
	return &wsHub{
		clients: make(map[*websocket.Conn]struct{}),
		log:     logger,
	}
}

func (h *wsHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	// Replay the last update so a fresh page renders without waiting for
	// the next cycle. The replay happens before the conn joins the hub;
	// gorilla conns do not allow concurrent writers.
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	if last != nil {
		_ = conn.WriteMessage(websocket.TextMessage, last)
	}

	h.add(conn)
	go h.readPump(conn)
}

func (h *wsHub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *wsHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *wsHub) broadcast(update Update) {
	data, err := json.Marshal(update)
	if err != nil {
		h.log.Error("ws marshal failed", "error", err)
		return
	}
	h.mu.Lock()
	h.last = data
	for c := range h.clients {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			c.Close()
			delete(h.clients, c)
		}
	}
	h.mu.Unlock()
}

func (h *wsHub) readPump(c *websocket.Conn) {
	defer func() {
		h.remove(c)
		_ = c.Close()
	}()
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
