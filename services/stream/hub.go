package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Constants for stream configuration
const (
	MaxClients    = 100 // Maximum concurrent WebSocket clients
	writeTimeout  = 10 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = 30 * time.Second
	sendQueueSize = 256
)

// Event types published on the stream
const (
	EventAlertTriggered = "alert_triggered"
	EventMonitorStarted = "monitor_started"
	EventMonitorStopped = "monitor_stopped"
)

// Event is a message broadcast to all subscribers
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// Client represents a connected WebSocket subscriber
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans alert events out to WebSocket subscribers
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	shutdown   chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewHub creates the event hub and starts its dispatch loop
func NewHub() *Hub {
	hub := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, sendQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	go hub.run()
	return hub
}

// Shutdown stops the hub and closes every client connection
func (h *Hub) Shutdown() {
	close(h.shutdown)

	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	log.Println("Alert event stream shutdown complete")
}

// run dispatches register, unregister and broadcast requests
func (h *Hub) run() {
	for {
		select {
		case <-h.shutdown:
			return

		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= MaxClients {
				h.mu.Unlock()
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
				client.conn.Close()
				log.Printf("Stream client rejected: max clients reached (%d)", MaxClients)
				continue
			}
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Printf("Stream client connected. Total clients: %d", clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Printf("Stream client disconnected. Total clients: %d", clientCount)

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("Error marshaling stream event: %v", err)
				continue
			}

			h.mu.Lock()
			deadClients := make([]*Client, 0)
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Client buffer full, mark for removal
					deadClients = append(deadClients, client)
				}
			}
			for _, client := range deadClients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for broadcast. Events are dropped when the hub is
// saturated or shut down so publishers never block.
func (h *Hub) Publish(eventType string, data interface{}) {
	event := Event{
		Type: eventType,
		Data: data,
		Time: time.Now().Format(time.RFC3339),
	}

	select {
	case h.broadcast <- event:
	default:
		log.Printf("Stream event dropped (type=%s): broadcast queue full", eventType)
	}
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades a request and subscribes it to the stream
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	atCapacity := len(h.clients) >= MaxClients
	h.mu.RUnlock()

	if atCapacity {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

// writePump writes events and keepalive pings to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes the connection to detect disconnects and answer pongs.
// Subscribers are listen-only; inbound payloads are discarded.
func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}
	}
}
