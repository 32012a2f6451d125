package handlers

import (
	"encoding/json"
	"log"

	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/campus-stories-backend/internal/handlers/ws"
	"github.com/noteduco342/campus-stories-backend/internal/notify"
	"github.com/noteduco342/campus-stories-backend/internal/service"
)

type WebSocketHandler struct {
	storyService *service.StoryService
	hub          *ws.Hub
	brokerSub    *notify.Subscription
}

func NewWebSocketHandler(storyService *service.StoryService, broker *notify.Broker) *WebSocketHandler {
	hub := ws.NewHub()
	return &WebSocketHandler{
		storyService: storyService,
		hub:          hub,
		brokerSub:    hub.SubscribeBroker(broker),
	}
}

// GetHub returns the hub instance (useful for sending messages from other handlers)
func (h *WebSocketHandler) GetHub() *ws.Hub {
	return h.hub
}

// clientFrame is the envelope for messages sent by connected clients.
type clientFrame struct {
	Type    string `json:"type"`
	StoryID uint   `json:"story_id"`
}

func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	userID := c.Locals("userID").(uint)

	client := h.hub.Register(userID, c)
	defer h.hub.Remove(client)

	log.Printf("User %d connected via WebSocket", userID)

	for {
		_, messageBytes, err := c.ReadMessage()
		if err != nil {
			log.Printf("Error reading message from user %d: %v", userID, err)
			break
		}

		var frame clientFrame
		if err := json.Unmarshal(messageBytes, &frame); err != nil {
			log.Printf("Invalid frame from user %d: %v", userID, err)
			continue
		}

		switch frame.Type {
		case "ping":
			_ = c.WriteJSON(map[string]string{"type": "pong"})
		case "story.viewed":
			if frame.StoryID != 0 {
				h.storyService.MarkViewed(frame.StoryID, userID)
			}
		default:
			log.Printf("Unknown frame type %q from user %d", frame.Type, userID)
		}
	}

	log.Printf("User %d disconnected from WebSocket", userID)
}
