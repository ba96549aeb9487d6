package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/sitepipe/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBuffer = 16
)

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      Scope     `json:"type"`
	Binding   string    `json:"binding,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Client represents a WebSocket client connection
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks live-reload connections and broadcasts reload messages to
// them.
type Hub struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	allowOrigin func(origin string) error
	logger      logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	isShutdown   atomic.Bool
}

// NewHub creates a hub. allowOrigin vets the Origin header of every upgrade
// request.
func NewHub(allowOrigin func(origin string) error, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[*websocket.Conn]*Client),
		allowOrigin: allowOrigin,
		logger:      logger.WithComponent("livereload"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// HandleWebSocket upgrades the request and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.isShutdown.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if h.allowOrigin != nil {
		if err := h.allowOrigin(r.Header.Get("Origin")); err != nil {
			h.logger.Warn(r.Context(), err, "WebSocket connection rejected", "remote", r.RemoteAddr)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// origin already validated above
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if !h.register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go h.writeToClient(client)
	h.readFromClient(client)
}

func (h *Hub) register(client *Client) bool {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if h.isShutdown.Load() {
		return false
	}
	h.clients[client.conn] = client
	h.logger.Debug(h.ctx, "WebSocket client connected", "clients", len(h.clients))
	return true
}

// unregister removes a client; the send channel is closed exactly once,
// by whoever removes the client from the map.
func (h *Hub) unregister(conn *websocket.Conn) {
	h.clientsMutex.Lock()
	client, exists := h.clients[conn]
	if exists {
		delete(h.clients, conn)
		close(client.send)
	}
	remaining := len(h.clients)
	h.clientsMutex.Unlock()

	if exists {
		h.logger.Debug(h.ctx, "WebSocket client disconnected", "clients", remaining)
	}
}

// readFromClient drains client frames until the connection ends. Browsers
// never send anything meaningful; reading keeps control frames flowing.
func (h *Hub) readFromClient(client *Client) {
	defer h.unregister(client.conn)
	for {
		if _, _, err := client.conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) writeToClient(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer client.conn.Close(websocket.StatusNormalClosure, "")

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(h.ctx, writeWait)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(h.ctx, writeWait)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-h.ctx.Done():
			return
		}
	}
}

// BroadcastMessage sends message to every connected client. A client whose
// buffer is full is disconnected; its page reloads when it reconnects.
func (h *Hub) BroadcastMessage(message UpdateMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.clientsMutex.RLock()
	var slow []*websocket.Conn
	for conn, client := range h.clients {
		select {
		case client.send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	h.clientsMutex.RUnlock()

	for _, conn := range slow {
		h.unregister(conn)
	}
	return nil
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Shutdown closes every client connection.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.clientsMutex.Lock()
		h.isShutdown.Store(true)
		for conn, client := range h.clients {
			delete(h.clients, conn)
			close(client.send)
		}
		h.clientsMutex.Unlock()
		h.cancel()
	})
	return nil
}
