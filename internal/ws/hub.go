package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"userhub/internal/models"
)

// Frame is one JSON message sent to a device session. Snapshot frames carry
// the full authoritative user list; notification frames carry one platform
// notification for the device to render.
type Frame struct {
	Type         string                       `json:"type"` // "snapshot" or "notification"
	Users        []models.User                `json:"users,omitempty"`
	Notification *models.PlatformNotification `json:"notification,omitempty"`
}

// Hub maintains the set of connected device sessions and pushes frames to
// them. Slow sessions are dropped rather than allowed to block a broadcast.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	logger *zap.Logger
}

// NewHub creates a new device-session hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run starts the hub's main loop and blocks until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("device session registered", zap.String("device_token", client.deviceToken))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("device session unregistered", zap.String("device_token", client.deviceToken))
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// Connected returns the number of attached device sessions.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastSnapshot replaces every session's view with the given list.
func (h *Hub) BroadcastSnapshot(users []models.User) error {
	return h.broadcast(Frame{Type: "snapshot", Users: users})
}

// BroadcastNotification renders a platform notification on every session.
func (h *Hub) BroadcastNotification(n models.PlatformNotification) error {
	return h.broadcast(Frame{Type: "notification", Notification: &n})
}

func (h *Hub) broadcast(frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal %s frame: %w", frame.Type, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("dropping frame for slow device session",
				zap.String("device_token", client.deviceToken))
		}
	}
	return nil
}
