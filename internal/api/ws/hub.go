package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/your-org/eventlens/internal/observability"
	"github.com/your-org/eventlens/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is handled by the router
	},
}

// Client is one connected progress subscriber.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	eventID uuid.UUID
}

type message struct {
	eventID uuid.UUID
	data    []byte
}

// Hub fans upload progress out to the subscribers of each event.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub event loop. Call this in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				observability.WSConnections.Dec()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "event_id", client.eventID)

		case client := <-h.unregister:
			h.remove(client)
			slog.Debug("ws client disconnected", "event_id", client.eventID)

		case msg := <-h.broadcast:
			var slow []*Client
			h.mu.RLock()
			for client := range h.clients {
				if client.eventID != msg.eventID {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			// Client buffer full, disconnect
			for _, client := range slow {
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		observability.WSConnections.Dec()
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends a progress event to the subscribers of its event. It never
// blocks the caller; if the hub is saturated the event is dropped.
func (h *Hub) Publish(evt *dto.UploadProgressEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("marshal ws event", "error", err)
		return
	}
	select {
	case h.broadcast <- message{eventID: evt.EventID, data: data}:
	default:
		slog.Warn("ws broadcast queue full, dropping progress event", "event_id", evt.EventID, "index", evt.Index)
	}
}

// Serve upgrades the request and subscribes it to eventID.
func (h *Hub) Serve(c *gin.Context, eventID uuid.UUID) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:    conn,
		send:    make(chan []byte, 64),
		eventID: eventID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	for {
		// Incoming messages are ignored; reading detects disconnection.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
