// Package ws streams board events to WebSocket clients. It is a second
// transport over the same broker the SSE endpoint uses.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/starford/flexiboard/internal/metrics"
	"github.com/starford/flexiboard/internal/sse"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Client frames are small control messages.
	maxMessageSize = 4 * 1024
)

// Frame is the JSON shape of every message on the socket.
type Frame struct {
	Type    string          `json:"type"`
	BoardID string          `json:"board_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithMetrics counts connected clients.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithAllowedOrigins restricts the Origin header on upgrade. An empty list
// or "*" accepts any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) { h.origins = origins }
}

// Handler upgrades GET /api/ws and forwards broker messages. The optional
// board_id query parameter narrows the stream; clients may change it later
// by sending {"type":"subscribe","board_id":"..."}.
type Handler struct {
	broker   *sse.Broker
	upgrader websocket.Upgrader
	origins  []string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewHandler creates a WebSocket handler over broker.
func NewHandler(broker *sse.Broker, opts ...Option) *Handler {
	h := &Handler{broker: broker, logger: slog.Default()}
	for _, o := range opts {
		o(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.origins) == 0 || slices.Contains(h.origins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.origins, origin)
}

// client is one connected socket.
type client struct {
	conn    *websocket.Conn
	control chan Frame
	done    chan struct{}

	mu      sync.Mutex
	boardID string
}

func (c *client) board() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boardID
}

func (c *client) follow(boardID string) {
	c.mu.Lock()
	c.boardID = boardID
	c.mu.Unlock()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}
	if h.metrics != nil {
		h.metrics.TrackClient("ws", 1)
		defer h.metrics.TrackClient("ws", -1)
	}

	c := &client{
		conn:    conn,
		control: make(chan Frame, 8),
		done:    make(chan struct{}),
		boardID: r.URL.Query().Get("board_id"),
	}
	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	go h.readPump(c)
	h.writePump(c, ch)
}

// readPump handles client frames until the connection fails. It never
// writes; replies go through the control channel.
func (h *Handler) readPump(c *client) {
	defer close(c.done)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Debug("ws: read failed", slog.String("error", err.Error()))
			}
			return
		}
		switch f.Type {
		case "subscribe":
			c.follow(f.BoardID)
			c.reply(Frame{Type: "subscribed", BoardID: f.BoardID})
		case "ping":
			c.reply(Frame{Type: "pong"})
		default:
			c.reply(Frame{Type: "error", Data: json.RawMessage(`{"error":"unknown message type"}`)})
		}
	}
}

func (c *client) reply(f Frame) {
	select {
	case c.control <- f:
	default:
	}
}

// writePump owns every write to the connection.
func (h *Handler) writePump(c *client, ch <-chan sse.Message) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg, ok := <-ch:
			if !ok {
				// Broker closed.
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if !msg.Matches(c.board()) {
				continue
			}
			if err := write(c.conn, Frame{Type: msg.Type, BoardID: msg.BoardID, Data: msg.Data}); err != nil {
				return
			}

		case f := <-c.control:
			if err := write(c.conn, f); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func write(conn *websocket.Conn, f Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}
