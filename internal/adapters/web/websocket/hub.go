// Package websocket pushes simulator output to browser clients and accepts
// navigation commands from them.
package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
	"github.com/lcalzada-xor/aegis/internal/core/ports"
	"github.com/lcalzada-xor/aegis/internal/telemetry"
)

// Message types pushed to clients.
const (
	TypeSnapshot = "snapshot"
	TypePacket   = "packet"
	TypeStats    = "stats"
	TypeAlert    = "alert"
	TypeView     = "view"
	TypeError    = "error"

	// TypeNavigate is the only command accepted from clients.
	TypeNavigate = "navigate"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64
	maxMessage = 4096
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// SnapshotPayload is sent once to every new client.
type SnapshotPayload struct {
	ActiveView domain.View             `json:"activeView"`
	Events     []domain.NetworkEvent   `json:"events"`
	Points     []domain.AggregatePoint `json:"points"`
}

// ViewSource provides the data a new client is primed with and applies
// navigation commands.
type ViewSource interface {
	ports.TelemetryReader
	ActiveView() domain.View
	SetActiveView(v domain.View) error
}

type client struct {
	conn *gws.Conn
	send chan []byte
}

// Hub fans messages out to connected clients. Each client has its own writer
// goroutine and bounded queue; a client whose queue is full is disconnected.
type Hub struct {
	source   ViewSource
	upgrader gws.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub. Browser connections must come from the same host as
// the request unless their origin is listed in allowedOrigins.
func NewHub(source ViewSource, allowedOrigins ...string) *Hub {
	h := &Hub{
		source:  source,
		clients: make(map[*client]struct{}),
	}
	h.upgrader = gws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r, allowedOrigins)
		},
	}
	return h
}

func checkOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if origin == a {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err == nil && u.Host == r.Host {
		return true
	}
	slog.Warn("WebSocket: rejected origin", "origin", origin)
	return false
}

// HandleWebSocket upgrades the connection, sends a snapshot and starts the
// client's reader and writer.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if data, err := encode(Message{Type: TypeSnapshot, Payload: SnapshotPayload{
		ActiveView: h.source.ActiveView(),
		Events:     h.source.Events(),
		Points:     h.source.Points(),
	}}); err == nil {
		c.send <- data
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	telemetry.WebsocketClients.Inc()
	slog.Info("WebSocket connected", "remote", r.RemoteAddr, "clients", count)

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(gws.TextMessage, data); err != nil {
			h.remove(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
}

func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(maxMessage)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleCommand(c, data)
	}
}

func (h *Hub) handleCommand(c *client, data []byte) {
	var cmd struct {
		Type    string `json:"type"`
		Payload struct {
			View string `json:"view"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.Type != TypeNavigate {
		return
	}
	if err := h.source.SetActiveView(domain.View(cmd.Payload.View)); err != nil {
		h.sendTo(c, Message{Type: TypeError, Payload: map[string]string{"error": err.Error()}})
	}
}

// remove unregisters c and closes its queue. Safe to call more than once.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	telemetry.WebsocketClients.Dec()
	slog.Info("WebSocket disconnected", "clients", count)
}

// OnTick implements ports.TickObserver.
func (h *Hub) OnTick(event domain.NetworkEvent, point domain.AggregatePoint) {
	h.Broadcast(Message{Type: TypePacket, Payload: event})
	h.Broadcast(Message{Type: TypeStats, Payload: point})
	if event.Severity != domain.SeverityLow {
		h.Broadcast(Message{Type: TypeAlert, Payload: event})
	}
}

// OnViewChange announces active-view transitions.
func (h *Hub) OnViewChange(_, to domain.View) {
	h.Broadcast(Message{Type: TypeView, Payload: map[string]domain.View{"view": to}})
}

// Broadcast queues msg for every client without blocking.
func (h *Hub) Broadcast(msg Message) {
	data, err := encode(msg)
	if err != nil {
		slog.Error("WebSocket: marshal failed", "type", msg.Type, "error", err)
		return
	}

	var slow []*client
	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		slog.Warn("WebSocket: dropping slow client")
		h.remove(c)
	}
}

func (h *Hub) sendTo(c *client, msg Message) {
	data, err := encode(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
