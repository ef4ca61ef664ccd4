package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"userhub/internal/models"
	"userhub/internal/repositories"
	"userhub/internal/services"
)

// UserHandler handles HTTP requests for the user screen.
type UserHandler struct {
	service *services.UserService
	logger  *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the user routes with the Fiber app.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/users")
	userRoutes.Get("/", h.HandleListUsers)
	userRoutes.Post("/", h.HandleAddUser)
	userRoutes.Patch("/:id", h.HandleUpdateUser)
	userRoutes.Delete("/:id", h.HandleDeleteUser)
}

// HandleListUsers returns the authoritative user list, newest first.
func (h *UserHandler) HandleListUsers(c *fiber.Ctx) error {
	users, err := h.service.Refresh(c.Context())
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve users",
			"error":   err.Error(),
		})
	}
	return c.JSON(users)
}

// HandleAddUser validates the form and creates a new user.
func (h *UserHandler) HandleAddUser(c *fiber.Ctx) error {
	var form models.UserForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	user, fieldErrors, err := h.service.Add(c.Context(), form)
	if err != nil {
		h.logger.Error("failed to add user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not add user",
			"error":   err.Error(),
		})
	}
	if !fieldErrors.Empty() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  fieldErrors,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleUpdateUser validates the form and patches an existing user.
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	id := c.Params("id")

	var form models.UserForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	user, fieldErrors, err := h.service.Update(c.Context(), id, form)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		h.logger.Error("failed to update user", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update user",
			"error":   err.Error(),
		})
	}
	if !fieldErrors.Empty() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  fieldErrors,
		})
	}

	return c.JSON(user)
}

// HandleDeleteUser removes a user. The caller must confirm the removal with
// confirm=true; nothing is mutated until then.
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	id := c.Params("id")

	if c.Query("confirm") != "true" {
		return c.Status(fiber.StatusPreconditionRequired).JSON(fiber.Map{
			"message": "Deletion requires confirmation. Repeat the request with confirm=true.",
		})
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		h.logger.Error("failed to delete user", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not delete user",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "User deleted successfully",
	})
}
