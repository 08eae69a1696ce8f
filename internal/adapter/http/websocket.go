package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/couchcryptid/ocean-data-service/internal/animation"
	"github.com/couchcryptid/ocean-data-service/internal/domain"
	"github.com/couchcryptid/ocean-data-service/internal/observability"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 * 1024
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 5 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  4096,
}

// streamMessage is sent to stream clients.
type streamMessage struct {
	Type  string           `json:"type"` // "state" or "error"
	State *animation.State `json:"state,omitempty"`
	Error string           `json:"error,omitempty"`
}

// streamCommand is received from stream clients. Action is one of the REST
// action names, or "frame", "speed", "loop" and "state".
type streamCommand struct {
	Action string   `json:"action"`
	Frame  *int     `json:"frame,omitempty"`
	Speed  *float64 `json:"speed,omitempty"`
	Loop   string   `json:"loop,omitempty"`
}

func stateMessage(st animation.State) []byte {
	b, err := json.Marshal(streamMessage{Type: "state", State: &st})
	if err != nil {
		return nil
	}
	return b
}

func errorMessage(err error) []byte {
	b, _ := json.Marshal(streamMessage{Type: "error", Error: err.Error()})
	return b
}

// Hub fans scheduler state out to every connected stream client. A client
// whose send buffer is full is dropped rather than blocking the scheduler.
type Hub struct {
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		logger:  logger,
		metrics: metrics,
		clients: make(map[*streamClient]struct{}),
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *streamClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.WebSocketClients.Inc()
	h.logger.Debug("stream client connected", "client", c.id, "remote", c.remote)
	return true
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *streamClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.WebSocketClients.Dec()
	h.logger.Debug("stream client disconnected", "client", c.id)
}

// Broadcast queues msg for every client without blocking.
func (h *Hub) Broadcast(msg []byte) {
	if msg == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping slow stream client", "client", c.id)
			h.removeLocked(c)
		}
	}
}

// send queues msg for one client, dropping it if the buffer is full.
func (h *Hub) send(c *streamClient, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok || msg == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

type streamClient struct {
	id     string
	remote string
	conn   *websocket.Conn
	send   chan []byte
}

func (s *Server) handleAnimationStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &streamClient{
		id:     uuid.New().String(),
		remote: r.RemoteAddr,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
	if !s.hub.register(c) {
		conn.WriteControl(websocket.CloseMessage, //nolint:errcheck // closing anyway
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	s.hub.send(c, stateMessage(s.deps.Animation.State()))

	go s.writePump(c)
	go s.readPump(c)
}

// readPump applies client commands until the connection fails.
func (s *Server) readPump(c *streamClient) {
	defer func() {
		s.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // surfaced by the next read
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("stream read failed", "client", c.id, "error", err)
			}
			return
		}
		if err := s.handleCommand(c, message); err != nil {
			s.hub.send(c, errorMessage(err))
		}
	}
}

// handleCommand applies one command. State changes reach every client via
// the scheduler subscription, so only "state" replies directly.
func (s *Server) handleCommand(c *streamClient, message []byte) error {
	var cmd streamCommand
	dec := json.NewDecoder(bytes.NewReader(message))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cmd); err != nil {
		return fmt.Errorf("%w: invalid command: %v", domain.ErrValidation, err)
	}

	sch := s.deps.Animation
	switch cmd.Action {
	case "state":
		s.hub.send(c, stateMessage(sch.State()))
	case "frame":
		if cmd.Frame == nil {
			return fmt.Errorf("%w: frame is required", domain.ErrValidation)
		}
		sch.JumpToFrame(*cmd.Frame)
	case "speed":
		if cmd.Speed == nil {
			return fmt.Errorf("%w: speed is required", domain.ErrValidation)
		}
		sch.SetSpeed(*cmd.Speed)
	case "loop":
		mode, err := animation.ParseLoopMode(cmd.Loop)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		sch.SetLoopMode(mode)
	default:
		if _, err := applyAction(sch, cmd.Action); err != nil {
			return err
		}
	}
	return nil
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (s *Server) writePump(c *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // surfaced by the write
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck // closing anyway
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // surfaced by the write
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
