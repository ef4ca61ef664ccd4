package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"userhub/internal/handlers"
	"userhub/internal/models"
	"userhub/internal/notifications"
	"userhub/internal/repositories"
	"userhub/internal/services"
	"userhub/internal/validation"
)

// nullHub satisfies both broadcaster interfaces without a live socket.
type nullHub struct{}

func (nullHub) BroadcastNotification(models.PlatformNotification) error { return nil }
func (nullHub) BroadcastSnapshot([]models.User) error                   { return nil }

type testServer struct {
	app  *fiber.App
	repo *repositories.MockUserRepository
	feed *notifications.Feed
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	logger := zap.NewNop()
	repo := repositories.NewMockUserRepository()
	feed := notifications.NewFeed(logger)
	transport := notifications.UnavailableTransport()
	hub := nullHub{}

	gateway := notifications.NewGateway(transport, hub, feed, notifications.ConfigPrompter{Allow: true}, logger)
	gateway.Initialize()
	dispatcher := notifications.NewDispatcher(transport, gateway, logger)

	userService := services.NewUserService(repo, validation.New(), dispatcher, gateway, feed, hub, logger)
	fanoutService := services.NewFanoutService(repo, transport, noopMailer{}, logger)

	app := fiber.New()
	handlers.NewUserHandler(userService, logger).RegisterRoutes(app)
	handlers.NewNotificationHandler(feed, gateway).RegisterRoutes(app)
	handlers.NewFanoutHandler(fanoutService, logger).RegisterRoutes(app)

	return &testServer{app: app, repo: repo, feed: feed}
}

type noopMailer struct{}

func (noopMailer) Send(to, subject, htmlBody string) error { return nil }

func (s *testServer) request(t *testing.T, method, target string, payload interface{}) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, target, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (s *testServer) seedUser(t *testing.T, name, email, age string) models.User {
	t.Helper()

	resp := s.request(t, http.MethodPost, "/users/", models.UserForm{Name: name, Email: email, Age: age})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user models.User
	decode(t, resp, &user)
	return user
}

func TestAddUser(t *testing.T) {
	server := setupServer(t)

	resp := server.request(t, http.MethodPost, "/users/", models.UserForm{
		Name: "Ada Lovelace", Email: "ada@x.com", Age: "36",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var user models.User
	decode(t, resp, &user)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "Ada Lovelace", user.Name)
}

func TestAddUserValidationFailure(t *testing.T) {
	server := setupServer(t)

	resp := server.request(t, http.MethodPost, "/users/", models.UserForm{
		Name: "Ada99", Email: "not-an-email", Age: "130",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Message string            `json:"message"`
		Errors  map[string]string `json:"errors"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "Validation failed", body.Message)
	assert.Contains(t, body.Errors, "name")
	assert.Contains(t, body.Errors, "email")
	assert.Contains(t, body.Errors, "age")

	// Nothing was written.
	users, err := server.repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestListUsersNewestFirst(t *testing.T) {
	server := setupServer(t)
	server.seedUser(t, "Ada Lovelace", "ada@x.com", "36")
	newest := server.seedUser(t, "Grace Hopper", "grace@x.com", "49")

	resp := server.request(t, http.MethodGet, "/users/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var users []models.User
	decode(t, resp, &users)
	require.Len(t, users, 2)
	assert.Equal(t, newest.ID, users[0].ID)
}

func TestUpdateUser(t *testing.T) {
	server := setupServer(t)
	user := server.seedUser(t, "Ada Lovelace", "ada@x.com", "36")

	resp := server.request(t, http.MethodPatch, "/users/"+user.ID, models.UserForm{
		Name: "Ada King", Email: "ada@lovelace.org", Age: "37",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.User
	decode(t, resp, &updated)
	assert.Equal(t, user.ID, updated.ID)
	assert.Equal(t, "Ada King", updated.Name)
	assert.Equal(t, "37", updated.Age)
}

func TestUpdateUserNotFound(t *testing.T) {
	server := setupServer(t)

	resp := server.request(t, http.MethodPatch, "/users/does-not-exist", models.UserForm{
		Name: "Ada Lovelace", Email: "ada@x.com", Age: "36",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteUserRequiresConfirmation(t *testing.T) {
	server := setupServer(t)
	user := server.seedUser(t, "Ada Lovelace", "ada@x.com", "36")

	resp := server.request(t, http.MethodDelete, "/users/"+user.ID, nil)
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)

	// The record is untouched until the caller confirms.
	got, err := server.repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.Name)
}

func TestDeleteUserConfirmed(t *testing.T) {
	server := setupServer(t)
	user := server.seedUser(t, "Ada Lovelace", "ada@x.com", "36")

	resp := server.request(t, http.MethodDelete, fmt.Sprintf("/users/%s?confirm=true", user.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err := server.repo.GetByID(context.Background(), user.ID)
	assert.ErrorIs(t, err, repositories.ErrUserNotFound)
}

func TestDeleteUserNotFound(t *testing.T) {
	server := setupServer(t)

	resp := server.request(t, http.MethodDelete, "/users/ghost?confirm=true", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotificationFeedRoutes(t *testing.T) {
	server := setupServer(t)

	// Two records so the second insert raises a success banner.
	server.seedUser(t, "Ada Lovelace", "ada@x.com", "36")
	server.seedUser(t, "Grace Hopper", "grace@x.com", "49")

	resp := server.request(t, http.MethodGet, "/notifications", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var banners []models.Notification
	decode(t, resp, &banners)
	require.NotEmpty(t, banners)
	assert.Contains(t, banners[0].Message, "Grace Hopper has been added")

	resp = server.request(t, http.MethodDelete, "/notifications/"+banners[0].ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, server.feed.List())

	// Dismissing an unknown id is a no-op, never an error.
	resp = server.request(t, http.MethodDelete, "/notifications/unknown", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGatewayStatusRoute(t *testing.T) {
	server := setupServer(t)

	resp := server.request(t, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status models.GatewayStatus
	decode(t, resp, &status)
	// The transport is unavailable in this configuration.
	assert.False(t, status.TransportAvailable)
	assert.False(t, status.CanSendRemote)
	assert.True(t, status.PermissionGranted)
}

func TestPushBroadcastRouteNoDevices(t *testing.T) {
	server := setupServer(t)
	server.seedUser(t, "Ada Lovelace", "ada@x.com", "36")

	resp := server.request(t, http.MethodPost, "/fanout/push", handlers.PushBroadcastRequest{
		Action:   models.ActionCreate,
		UserData: models.User{Name: "Ada Lovelace"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.BroadcastResult
	decode(t, resp, &result)
	assert.True(t, result.Success)
	assert.Equal(t, "no registered devices", result.Message)
}

func TestEmailBroadcastRouteExcludesSender(t *testing.T) {
	server := setupServer(t)
	server.seedUser(t, "Ada Lovelace", "ada@x.com", "36")
	server.seedUser(t, "Grace Hopper", "grace@x.com", "49")

	resp := server.request(t, http.MethodPost, "/fanout/email", handlers.EmailBroadcastRequest{
		Action:    models.ActionUpdate,
		UserData:  models.User{Name: "Ada Lovelace", Email: "ada@x.com", Age: "37"},
		UserEmail: "ada@x.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.BroadcastResult
	decode(t, resp, &result)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)
}
