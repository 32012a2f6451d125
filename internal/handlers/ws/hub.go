package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/campus-stories-backend/internal/notify"
)

// ClientConnection wraps a WebSocket connection with metadata
type ClientConnection struct {
	Conn       *websocket.Conn
	UserID     uint
	LastPong   time.Time
	PingTicker *time.Ticker
	CloseChan  chan struct{}

	closeOnce sync.Once
}

// shutdown stops the ping loop. Safe to call more than once: a replaced
// connection is shut down by the reconnect and again by its own teardown.
func (c *ClientConnection) shutdown() {
	c.closeOnce.Do(func() {
		if c.PingTicker != nil {
			c.PingTicker.Stop()
		}
		close(c.CloseChan)
	})
}

// Hub manages all active WebSocket connections and pushes story change
// notifications to them. Pushes are hints: a client that misses one finds
// out on its next feed read.
type Hub struct {
	clients      map[uint]*ClientConnection
	clientsMux   sync.RWMutex
	pingInterval time.Duration
	pongTimeout  time.Duration
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	hub := &Hub{
		clients:      make(map[uint]*ClientConnection),
		pingInterval: 30 * time.Second,
		pongTimeout:  90 * time.Second,
	}

	go hub.connectionHealthChecker()

	return hub
}

// SubscribeBroker forwards story change events from the broker to every
// connected client until the subscription is cancelled.
func (h *Hub) SubscribeBroker(broker *notify.Broker) *notify.Subscription {
	sub := broker.Subscribe(notify.KindStory)
	go func() {
		for ev := range sub.C {
			msgType := "story.created"
			if ev.Op == notify.OpDelete {
				msgType = "story.deleted"
			}
			h.Broadcast(map[string]interface{}{
				"type":     msgType,
				"story_id": ev.StoryID,
				"owner_id": ev.OwnerID,
			})
		}
	}()
	return sub
}

// Register adds a client connection with health monitoring. A reconnect for
// the same user replaces and shuts down the previous socket.
func (h *Hub) Register(userID uint, conn *websocket.Conn) *ClientConnection {
	clientConn := &ClientConnection{
		Conn:       conn,
		UserID:     userID,
		LastPong:   time.Now(),
		PingTicker: time.NewTicker(h.pingInterval),
		CloseChan:  make(chan struct{}),
	}

	conn.SetPongHandler(func(appData string) error {
		h.clientsMux.Lock()
		if client, exists := h.clients[userID]; exists {
			client.LastPong = time.Now()
		}
		h.clientsMux.Unlock()
		return nil
	})

	conn.SetReadDeadline(time.Now().Add(h.pongTimeout))

	h.track(clientConn)

	go h.pingRoutine(clientConn)

	return clientConn
}

// track inserts the connection into the client map. The previous connection
// for the same user, if any, is shut down so its orphaned ping loop cannot
// later fail and tear down the replacement.
func (h *Hub) track(client *ClientConnection) {
	h.clientsMux.Lock()
	prev := h.clients[client.UserID]
	h.clients[client.UserID] = client
	count := len(h.clients)
	h.clientsMux.Unlock()

	if prev != nil {
		prev.shutdown()
	}
	log.Printf("User %d connected to hub (total: %d)", client.UserID, count)
}

// Remove drops a specific connection. A stale teardown (the old socket of a
// user who already reconnected) shuts down only itself and leaves the live
// connection in place.
func (h *Hub) Remove(client *ClientConnection) {
	h.clientsMux.Lock()
	if current, exists := h.clients[client.UserID]; exists && current == client {
		delete(h.clients, client.UserID)
	}
	count := len(h.clients)
	h.clientsMux.Unlock()

	client.shutdown()
	log.Printf("User %d disconnected from hub (total: %d)", client.UserID, count)
}

// IsOnline checks if a user is connected
func (h *Hub) IsOnline(userID uint) bool {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	_, exists := h.clients[userID]
	return exists
}

// SendToUser sends data to a specific user. Offline users are skipped;
// story pushes are not queued for later delivery.
func (h *Hub) SendToUser(userID uint, data interface{}) error {
	h.clientsMux.RLock()
	clientConn, exists := h.clients[userID]
	h.clientsMux.RUnlock()

	if !exists {
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling data for user %d: %v", userID, err)
		return err
	}

	if err := clientConn.Conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
		log.Printf("Error sending message to user %d: %v", userID, err)
		h.Remove(clientConn)
		return err
	}

	return nil
}

// Broadcast sends data to all connected users
func (h *Hub) Broadcast(data interface{}) {
	h.clientsMux.RLock()
	clients := make(map[uint]*ClientConnection, len(h.clients))
	for id, conn := range h.clients {
		clients[id] = conn
	}
	h.clientsMux.RUnlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling broadcast data: %v", err)
		return
	}

	for userID, clientConn := range clients {
		if err := clientConn.Conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			log.Printf("Error broadcasting to user %d: %v", userID, err)
			h.Remove(clientConn)
		}
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

// pingRoutine sends periodic ping messages to keep connection alive
func (h *Hub) pingRoutine(client *ClientConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Ping routine recovered from panic for user %d: %v", client.UserID, r)
		}
	}()

	for {
		select {
		case <-client.CloseChan:
			return
		case <-client.PingTicker.C:
			h.clientsMux.RLock()
			current, exists := h.clients[client.UserID]
			h.clientsMux.RUnlock()

			if !exists || current != client {
				return
			}

			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				log.Printf("Ping failed for user %d: %v", client.UserID, err)
				h.Remove(client)
				return
			}
		}
	}
}

// connectionHealthChecker monitors connection health and removes dead connections
func (h *Hub) connectionHealthChecker() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		h.clientsMux.RLock()
		deadConnections := make([]*ClientConnection, 0)
		now := time.Now()

		for _, client := range h.clients {
			if now.Sub(client.LastPong) > h.pongTimeout {
				deadConnections = append(deadConnections, client)
			}
		}
		h.clientsMux.RUnlock()

		for _, client := range deadConnections {
			log.Printf("Removing dead connection for user %d (no pong received)", client.UserID)
			h.Remove(client)
		}
	}
}
