package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"userhub/internal/models"
	"userhub/internal/services"
)

// FanoutHandler exposes the broadcast procedures over HTTP, the way the
// hosted functions expose them to clients.
type FanoutHandler struct {
	fanout *services.FanoutService
	logger *zap.Logger
}

// NewFanoutHandler creates a new FanoutHandler.
func NewFanoutHandler(fanout *services.FanoutService, logger *zap.Logger) *FanoutHandler {
	return &FanoutHandler{
		fanout: fanout,
		logger: logger,
	}
}

// RegisterRoutes registers the fan-out routes with the Fiber app.
func (h *FanoutHandler) RegisterRoutes(router fiber.Router) {
	fanoutRoutes := router.Group("/fanout")
	fanoutRoutes.Post("/push", h.HandlePushBroadcast)
	fanoutRoutes.Post("/email", h.HandleEmailBroadcast)
}

// PushBroadcastRequest is the push fan-out call's input.
type PushBroadcastRequest struct {
	Action      models.CrudAction `json:"action"`
	UserData    models.User       `json:"userData"`
	SenderToken string            `json:"senderToken"`
}

// EmailBroadcastRequest is the email fan-out call's input.
type EmailBroadcastRequest struct {
	Action    models.CrudAction `json:"action"`
	UserData  models.User       `json:"userData"`
	UserEmail string            `json:"userEmail"`
}

// HandlePushBroadcast sends one multicast push to every registered device
// token except the sender's. The call fails only when the token read fails;
// delivery problems come back in the result counts.
func (h *FanoutHandler) HandlePushBroadcast(c *fiber.Ctx) error {
	var req PushBroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	result, err := h.fanout.PushBroadcast(c.Context(), req.Action, req.UserData, req.SenderToken)
	if err != nil {
		h.logger.Error("push broadcast failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(result)
	}
	return c.JSON(result)
}

// HandleEmailBroadcast emails every registered address except the sender's,
// tolerating partial failure.
func (h *FanoutHandler) HandleEmailBroadcast(c *fiber.Ctx) error {
	var req EmailBroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	result, err := h.fanout.EmailBroadcast(c.Context(), req.Action, req.UserData, req.UserEmail)
	if err != nil {
		h.logger.Error("email broadcast failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(result)
	}
	return c.JSON(result)
}
