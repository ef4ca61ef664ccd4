package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"userhub/internal/models"
	"userhub/internal/notifications"
	"userhub/internal/repositories"
	"userhub/pkg/rabbitmq"
)

// EmailSender delivers one message to one recipient.
type EmailSender interface {
	Send(to, subject, htmlBody string) error
}

// MulticastMessage is the single push message the delivery service fans out
// to every listed device token.
type MulticastMessage struct {
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// FanoutService implements the broadcast handlers: push to every registered
// device token except the sender's, and email to every registered address
// except the sender's.
type FanoutService struct {
	repo      repositories.UserRepository
	transport notifications.PushTransport
	mailer    EmailSender
	logger    *zap.Logger
}

// NewFanoutService creates a FanoutService.
func NewFanoutService(
	repo repositories.UserRepository,
	transport notifications.PushTransport,
	mailer EmailSender,
	logger *zap.Logger,
) *FanoutService {
	return &FanoutService{
		repo:      repo,
		transport: transport,
		mailer:    mailer,
		logger:    logger,
	}
}

// PushBroadcast collects every device token except the sender's and sends one
// multicast push. It only returns an error when reading the tokens fails;
// a delivery problem is reported through the result instead.
func (s *FanoutService) PushBroadcast(ctx context.Context, action models.CrudAction, userData models.User, senderToken string) (models.BroadcastResult, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return models.BroadcastResult{Success: false, Message: "failed to read device tokens"},
			fmt.Errorf("failed to list users: %w", err)
	}

	var tokens []string
	for _, u := range users {
		if u.DeviceToken == "" || u.DeviceToken == senderToken {
			continue
		}
		tokens = append(tokens, u.DeviceToken)
	}

	if len(tokens) == 0 {
		return models.BroadcastResult{Success: true, Message: "no registered devices"}, nil
	}

	title, body := pushCopy(action, userData.Name)
	msg := MulticastMessage{
		Tokens: tokens,
		Title:  title,
		Body:   body,
		Data:   map[string]string{"action": string(action)},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return models.BroadcastResult{
			Success:      false,
			FailureCount: len(tokens),
			Message:      "failed to encode multicast message",
		}, nil
	}

	if err := s.transport.Publish(rabbitmq.QueuePushMulticast, payload); err != nil {
		s.logger.Warn("multicast publish failed", zap.Error(err))
		return models.BroadcastResult{
			Success:      false,
			FailureCount: len(tokens),
			Message:      "push delivery unavailable",
		}, nil
	}

	s.logger.Info("multicast push sent",
		zap.String("action", string(action)),
		zap.Int("recipients", len(tokens)))
	return models.BroadcastResult{
		Success:      true,
		SuccessCount: len(tokens),
		Message:      "multicast push sent",
	}, nil
}

// EmailBroadcast sends individually to every registered address except the
// sender's, counting fulfilled and rejected sends independently. Partial
// failure is tolerated, never retried.
func (s *FanoutService) EmailBroadcast(ctx context.Context, action models.CrudAction, userData models.User, senderEmail string) (models.BroadcastResult, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return models.BroadcastResult{Success: false, Message: "failed to read recipient addresses"},
			fmt.Errorf("failed to list users: %w", err)
	}

	var recipients []string
	for _, u := range users {
		if u.Email == "" || u.Email == senderEmail {
			continue
		}
		recipients = append(recipients, u.Email)
	}

	if len(recipients) == 0 {
		return models.BroadcastResult{Success: true, Message: "no recipients"}, nil
	}

	subject, html := emailCopy(action, userData)

	var sent, failed int
	for _, to := range recipients {
		if err := s.mailer.Send(to, subject, html); err != nil {
			s.logger.Warn("email send failed", zap.String("to", to), zap.Error(err))
			failed++
			continue
		}
		sent++
	}

	return models.BroadcastResult{
		Success:      true,
		SuccessCount: sent,
		FailureCount: failed,
		Message:      fmt.Sprintf("emails sent to %d of %d recipients", sent, len(recipients)),
	}, nil
}

// HandlePushMessage adapts a queued broadcast envelope into PushBroadcast.
// The sender is excluded by its device token.
func (s *FanoutService) HandlePushMessage(ctx context.Context, body []byte) error {
	var env notifications.BroadcastEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode broadcast envelope: %w", err)
	}
	result, err := s.PushBroadcast(ctx, env.Action, env.User, env.User.DeviceToken)
	if err != nil {
		return err
	}
	s.logger.Info("queued push broadcast handled",
		zap.String("action", string(env.Action)),
		zap.Int("success", result.SuccessCount),
		zap.Int("failure", result.FailureCount))
	return nil
}

// HandleEmailMessage adapts a queued broadcast envelope into EmailBroadcast.
// The sender is excluded by its email address.
func (s *FanoutService) HandleEmailMessage(ctx context.Context, body []byte) error {
	var env notifications.BroadcastEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode broadcast envelope: %w", err)
	}
	result, err := s.EmailBroadcast(ctx, env.Action, env.User, env.User.Email)
	if err != nil {
		return err
	}
	s.logger.Info("queued email broadcast handled",
		zap.String("action", string(env.Action)),
		zap.Int("success", result.SuccessCount),
		zap.Int("failure", result.FailureCount))
	return nil
}

func pushCopy(action models.CrudAction, name string) (title, body string) {
	switch action {
	case models.ActionCreate:
		return "New User Added", fmt.Sprintf("%s has been added to the directory", name)
	case models.ActionUpdate:
		return "User Updated", fmt.Sprintf("%s's information has been updated", name)
	case models.ActionDelete:
		return "User Removed", fmt.Sprintf("%s has been removed from the directory", name)
	default:
		return "Directory Notification", "A directory record changed"
	}
}

func emailCopy(action models.CrudAction, user models.User) (subject, html string) {
	switch action {
	case models.ActionCreate:
		subject = fmt.Sprintf("New user: %s", user.Name)
		html = fmt.Sprintf(
			"<h2>New User Added</h2><p><b>%s</b> has been added to the directory.</p><p>Email: %s<br>Age: %s</p>",
			user.Name, user.Email, user.Age)
	case models.ActionUpdate:
		subject = fmt.Sprintf("User updated: %s", user.Name)
		html = fmt.Sprintf(
			"<h2>User Updated</h2><p><b>%s</b>'s information has been updated.</p><p>Email: %s<br>Age: %s</p>",
			user.Name, user.Email, user.Age)
	case models.ActionDelete:
		subject = fmt.Sprintf("User removed: %s", user.Name)
		html = fmt.Sprintf(
			"<h2>User Removed</h2><p><b>%s</b> has been removed from the directory.</p>",
			user.Name)
	default:
		subject = "Directory notification"
		html = "<p>A directory record changed.</p>"
	}
	return subject, html
}
