package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mytodos/internal/metrics"
	"mytodos/internal/models"
)

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
	closeGrace     = 100 * time.Millisecond
)

// MessageTypeTodos tags a full todo list push.
const MessageTypeTodos = "todos"

// TodosMessage is the payload pushed to websocket clients.
type TodosMessage struct {
	Type  string        `json:"type"`
	Todos []models.Todo `json:"todos"`
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	cancel context.CancelFunc
}

// Hub fans rendered todo lists out to connected websocket clients.
type Hub struct {
	upgrader websocket.Upgrader
	snapshot func() []models.Todo
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewHub creates a Hub. snapshot supplies the list sent to a client on connect.
func NewHub(snapshot func() []models.Todo, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		snapshot: snapshot,
		logger:   logger,
		clients:  make(map[*wsClient]struct{}),
	}
}

func encodeTodosMessage(todos []models.Todo) ([]byte, error) {
	if todos == nil {
		todos = []models.Todo{}
	}
	return json.Marshal(TodosMessage{Type: MessageTypeTodos, Todos: todos})
}

// Broadcast queues todos for every client. A client whose queue is full is
// disconnected rather than allowed to stall the caller.
func (hub *Hub) Broadcast(todos []models.Todo) {
	msg, err := encodeTodosMessage(todos)
	if err != nil {
		hub.logger.Error("failed to encode todo list", zap.Error(err))
		return
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()

	for c := range hub.clients {
		select {
		case c.send <- msg:
		default:
			hub.logger.Warn("websocket client too slow, disconnecting",
				zap.String("remote_addr", c.conn.RemoteAddr().String()))
			c.cancel()
		}
	}
}

// HandleWebSocket upgrades the request and streams todo lists to the client,
// starting with the current one.
//
//nolint:contextcheck // WebSocket connections outlive the HTTP request context
func (hub *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	// The request context ends when this handler returns.
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsClient{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		cancel: cancel,
	}

	hub.mu.Lock()
	if msg, err := encodeTodosMessage(hub.snapshot()); err == nil {
		c.send <- msg
	} else {
		hub.logger.Error("failed to encode todo list", zap.Error(err))
	}
	hub.clients[c] = struct{}{}
	hub.mu.Unlock()
	metrics.WebSocketClients.Inc()

	hub.logger.Info("websocket client connected", zap.String("remote_addr", conn.RemoteAddr().String()))

	go hub.writePump(ctx, c)
	go hub.readPump(ctx, c)
}

// readPump drains incoming frames so pongs and close frames are processed.
func (hub *Hub) readPump(ctx context.Context, c *wsClient) {
	defer func() {
		hub.removeClient(c)
		if err := c.conn.Close(); err != nil {
			hub.logger.Debug("error closing connection", zap.Error(err))
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		hub.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hub.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump sends queued lists and keepalive pings until ctx is done.
func (hub *Hub) writePump(ctx context.Context, c *wsClient) {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.sendCloseMessage(c.conn)
			return
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				hub.logger.Debug("failed to send todo list", zap.Error(err))
				c.cancel()
				return
			}
		case <-pingTicker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				hub.logger.Debug("failed to send ping", zap.Error(err))
				c.cancel()
				return
			}
		}
	}
}

// sendCloseMessage sends a close message to the connection.
func (hub *Hub) sendCloseMessage(conn *websocket.Conn) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		hub.logger.Debug("failed to set write deadline for close", zap.Error(err))
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		hub.logger.Debug("failed to send close message", zap.Error(err))
	}
}

// removeClient removes a client from the clients map.
func (hub *Hub) removeClient(c *wsClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if _, exists := hub.clients[c]; exists {
		c.cancel()
		delete(hub.clients, c)
		metrics.WebSocketClients.Dec()
		hub.logger.Info("websocket client disconnected", zap.String("remote_addr", c.conn.RemoteAddr().String()))
	}
}

// ClientCount returns the number of connected clients.
func (hub *Hub) ClientCount() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}

// CloseAllConnections closes all active WebSocket connections.
func (hub *Hub) CloseAllConnections() {
	hub.mu.Lock()
	clients := make([]*wsClient, 0, len(hub.clients))
	for c := range hub.clients {
		clients = append(clients, c)
	}
	hub.mu.Unlock()

	// Cancelling makes each writePump send a close frame.
	for _, c := range clients {
		c.cancel()
	}

	time.Sleep(closeGrace)

	for _, c := range clients {
		hub.removeClient(c)
		if err := c.conn.Close(); err != nil {
			hub.logger.Debug("error closing connection", zap.Error(err))
		}
	}

	hub.logger.Info("all websocket connections closed")
}
