package handlers

import (
	"github.com/gofiber/fiber/v2"

	"userhub/internal/notifications"
)

// NotificationHandler exposes the in-app feed and the gateway status.
type NotificationHandler struct {
	feed    *notifications.Feed
	gateway *notifications.Gateway
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(feed *notifications.Feed, gateway *notifications.Gateway) *NotificationHandler {
	return &NotificationHandler{
		feed:    feed,
		gateway: gateway,
	}
}

// RegisterRoutes registers the notification routes with the Fiber app.
func (h *NotificationHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/notifications", h.HandleListNotifications)
	router.Delete("/notifications/:id", h.HandleDismissNotification)
	router.Get("/status", h.HandleStatus)
}

// HandleListNotifications returns the current banners, newest first.
func (h *NotificationHandler) HandleListNotifications(c *fiber.Ctx) error {
	return c.JSON(h.feed.List())
}

// HandleDismissNotification removes a banner immediately. Dismissing an
// absent id succeeds; the feed treats it as a no-op.
func (h *NotificationHandler) HandleDismissNotification(c *fiber.Ctx) error {
	h.feed.Dismiss(c.Params("id"))
	return c.JSON(fiber.Map{
		"message": "Notification dismissed",
	})
}

// HandleStatus returns the gateway's capability booleans.
func (h *NotificationHandler) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(h.gateway.Status())
}
