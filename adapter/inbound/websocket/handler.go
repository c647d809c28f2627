// Package websocket streams delivered file events to connected clients.
package websocket

import (
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// DefaultSendBuffer is the number of events queued per client before drops
	DefaultSendBuffer = 256
)

// Event is the JSON envelope sent for every delivered change
type Event struct {
	ID         string       `json:"id"`
	Host       string       `json:"host"`
	Path       string       `json:"path"`
	FileName   string       `json:"fileName"`
	Action     model.Action `json:"action"`
	ActionName string       `json:"actionName"`
	Time       time.Time    `json:"time"`
}

// Handler fans events out to websocket clients
type Handler struct {
	upgrader   websocket.Upgrader
	host       string
	logger     outbound.Logger
	sendBuffer int

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	dropped atomic.Uint64
}

// client is one streaming connection and its optional filter
type client struct {
	id      string
	conn    *websocket.Conn
	send    chan Event
	path    string
	actions model.Action
	once    sync.Once
}

// NewHandler creates a handler stamping events with host
func NewHandler(host string, logger outbound.Logger) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		host:       host,
		logger:     logger,
		sendBuffer: DefaultSendBuffer,
		clients:    make(map[*client]struct{}),
	}
}

// Publish queues the event for every matching client. It has the
// model.Callback signature and never blocks: slow clients lose events.
func (h *Handler) Publish(path, fileName string, action model.Action) {
	event := Event{
		ID:         uuid.NewString(),
		Host:       h.host,
		Path:       path,
		FileName:   fileName,
		Action:     action,
		ActionName: model.ActionName(action),
		Time:       time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.accepts(event) {
			continue
		}
		select {
		case c.send <- event:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events lost to full client buffers
func (h *Handler) Dropped() uint64 {
	return h.dropped.Load()
}

// ClientCount returns the number of connected clients
func (h *Handler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection upgrades the request. Optional query parameters "path" and
// "actions" (comma separated names) restrict the stream.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	actions := model.ActionAll
	if raw := r.URL.Query().Get("actions"); raw != "" {
		mask, err := model.ParseActions(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		actions = mask
	}

	path := r.URL.Query().Get("path")
	if path != "" {
		path = filepath.Clean(path)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Error upgrading to WebSocket", "error", err)
		return
	}

	c := &client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan Event, h.sendBuffer),
		path:    path,
		actions: actions,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("Event stream client connected", "client", c.id, "path", path)

	go h.writePump(c)
	go h.readPump(c)
}

// readPump consumes control frames until the client goes away
func (h *Handler) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket error", "client", c.id, "error", err)
			}
			return
		}
	}
}

func (h *Handler) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Server shutting down"))
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// remove unregisters c and stops its writer
func (h *Handler) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		c.stop()
		h.logger.Debug("Event stream client disconnected", "client", c.id)
	}
}

// Cleanup disconnects every client and rejects new ones
func (h *Handler) Cleanup() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.stop()
	}

	h.logger.Info("WebSocket handler cleanup complete", "clients", len(clients))
}

func (c *client) stop() {
	c.once.Do(func() { close(c.send) })
}

func (c *client) accepts(e Event) bool {
	if c.actions&e.Action == 0 {
		return false
	}
	return c.path == "" || c.path == e.Path
}
