package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/live-service/internal/config"
	pkglog "github.com/weiawesome/wes-io-live/live-service/pkg/log"
)

// ErrClientGone is returned when sending to a connection that is not registered.
var ErrClientGone = errors.New("client not connected")

// ErrSendBufferFull is returned when a slow client is being evicted.
var ErrSendBufferFull = errors.New("client send buffer full")

// ErrHubStopped is returned by Register after Stop.
var ErrHubStopped = errors.New("hub stopped")

// DisconnectHandler is called once when a client's read loop ends.
type DisconnectHandler func(*Client)

// Client is one WebSocket connection.
type Client struct {
	ID          string
	Hub         *Hub
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time

	disconnectHandler DisconnectHandler
	releaseOnce       sync.Once
}

// NewClient builds a client with the hub's send buffer size.
func NewClient(id string, h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:          id,
		Hub:         h,
		Conn:        conn,
		Send:        make(chan []byte, h.config.SendBuffer),
		ConnectedAt: time.Now(),
	}
}

// SetDisconnectHandler sets the handler to be called on disconnect.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.disconnectHandler = handler
}

// Hub tracks live connections and delivers encoded messages to them.
// Sends never block: a client whose buffer is full is evicted.
type Hub struct {
	clients  map[string]*Client
	stopOnce sync.Once
	stopped  bool
	mu       sync.RWMutex
	config   config.WebSocketConfig

	// one count per registered client, released once it is unregistered
	active sync.WaitGroup
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return &Hub{
		clients: make(map[string]*Client),
		config:  cfg,
	}
}

// Stop closes every connection and refuses new ones. Read loops
// then fire their disconnect handlers; Wait blocks until they have returned.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.stopped = true
		for _, c := range h.clients {
			c.Conn.Close()
		}
		h.mu.Unlock()
	})
}

// Wait blocks until every registered client has been unregistered, which for
// a client with a running ReadPump is after its disconnect handler returned.
func (h *Hub) Wait(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		h.active.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register adds a client. It is visible to Send as soon as Register returns.
// Every registered client must eventually be passed to Unregister.
func (h *Hub) Register(client *Client) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrHubStopped
	}
	h.clients[client.ID] = client
	h.active.Add(1)
	h.mu.Unlock()
	l := pkglog.L()
	l.Info().Str(pkglog.FieldConnectionID, client.ID).Msg("client registered")
	return nil
}

// Unregister removes a client and closes its send channel. It is safe to
// call more than once.
func (h *Hub) Unregister(client *Client) {
	defer client.releaseOnce.Do(h.active.Done)
	if h.remove(client) {
		l := pkglog.L()
		l.Info().Str(pkglog.FieldConnectionID, client.ID).Msg("client unregistered")
	}
}

func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[client.ID]; ok && cur == client {
		delete(h.clients, client.ID)
		close(client.Send)
		return true
	}
	return false
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send queues an encoded message for one client.
func (h *Hub) Send(clientID string, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return ErrClientGone
	}
	select {
	case client.Send <- data:
		return nil
	default:
		l := pkglog.L()
		l.Warn().Str(pkglog.FieldConnectionID, clientID).Msg("send buffer full, closing connection")
		// closing the socket ends ReadPump, which runs the normal disconnect path
		go client.Conn.Close()
		return ErrSendBufferFull
	}
}

// SendToClient encodes message as JSON and sends it.
func (h *Hub) SendToClient(clientID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return h.Send(clientID, data)
}

// ReadPump reads frames and hands each one to handler in order. When the
// connection ends it runs the disconnect handler before unregistering.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		if c.disconnectHandler != nil {
			c.disconnectHandler(c)
		}
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				l := pkglog.L()
				l.Warn().Err(err).Str(pkglog.FieldConnectionID, c.ID).Msg("websocket read error")
			}
			return
		}
		handler(c, message)
	}
}

// WritePump writes queued messages and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues a JSON message for this client. Used for
// transport-level replies such as pong and decode errors.
func (c *Client) SendMessage(message interface{}) error {
	return c.Hub.SendToClient(c.ID, message)
}
