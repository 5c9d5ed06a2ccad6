package www

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/icodeforyou/pvsoiling/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Client struct {
	logger *slog.Logger
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	name   string
}

func NewClient(hub *Hub, w http.ResponseWriter, r *http.Request, name string) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		logger: hub.logger.With(slog.String("client", name)),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		name:   name,
	}, nil
}

// ReadPump only handles pongs and notices when the client goes away.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("web socket set read deadline failed", slog.Any("error", err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				c.logger.Debug("web socket closed unexpectedly", slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("web socket set write deadline failed", slog.Any("error", err))
				return
			}

			if !ok {
				if err := c.conn.WriteMessage(ws.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("web socket close message failed", slog.Any("error", err))
				}
				return
			}

			if err := c.conn.WriteMessage(ws.TextMessage, message); err != nil {
				c.logger.Warn("web socket write failed", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("web socket set write deadline failed", slog.Any("error", err))
				return
			}
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				c.logger.Debug("web socket ping message failed", slog.Any("error", err))
				return
			}
		}
	}
}

// Hub keeps the connected clients and broadcasts events to all of them.
type Hub struct {
	Broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
	clients    map[*Client]bool
	mutex      sync.Mutex
	logger     *slog.Logger
	done       chan struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Broadcast:  make(chan []byte, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return

		case client := <-h.Register:
			h.logger.Debug("registering client", "clientName", client.name)

			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()

		case client := <-h.Unregister:
			h.logger.Debug("unregistering client", "clientName", client.name)

			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			h.mutex.Lock()
			activeClients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				activeClients = append(activeClients, client)
			}
			h.mutex.Unlock()

			for _, client := range activeClients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("client send buffer full, dropping message", "clientName", client.name)
				}
			}
		}
	}
}

// Add registers a client unless the hub has stopped.
func (h *Hub) Add(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Publish hands the event to the hub without waiting, events are dropped
// when the hub falls behind.
func (h *Hub) Publish(_ context.Context, e notify.Event) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("error marshaling event: %w", err)
	}

	select {
	case h.Broadcast <- msg:
		return nil
	default:
		return fmt.Errorf("websocket hub is busy, dropped %s event", e.Kind)
	}
}
