package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"userhub/internal/models"
	"userhub/internal/notifications"
	"userhub/internal/repositories"
	"userhub/internal/validation"
)

// SnapshotBroadcaster pushes the authoritative user list to connected device
// sessions.
type SnapshotBroadcaster interface {
	BroadcastSnapshot(users []models.User) error
}

// UserService sequences the user screen's operations: validate the form,
// mutate the store, fire the notification paths, refresh the visible
// snapshot. Notification failures never roll back or block the mutation.
type UserService struct {
	repo       repositories.UserRepository
	validator  *validation.FormValidator
	dispatcher *notifications.Dispatcher
	gateway    *notifications.Gateway
	feed       *notifications.Feed
	devices    SnapshotBroadcaster
	logger     *zap.Logger

	mu         sync.Mutex
	visible    []models.User
	submitting bool
}

// NewUserService creates a UserService.
func NewUserService(
	repo repositories.UserRepository,
	validator *validation.FormValidator,
	dispatcher *notifications.Dispatcher,
	gateway *notifications.Gateway,
	feed *notifications.Feed,
	devices SnapshotBroadcaster,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		repo:       repo,
		validator:  validator,
		dispatcher: dispatcher,
		gateway:    gateway,
		feed:       feed,
		devices:    devices,
		logger:     logger,
	}
}

// Add validates the form, writes the record, fires notifications and
// prepends the record to the visible list. A non-empty FieldErrors return
// means the form was rejected before any write.
func (s *UserService) Add(ctx context.Context, form models.UserForm) (*models.User, validation.FieldErrors, error) {
	if errs := s.validator.ValidateForm(form); !errs.Empty() {
		return nil, errs, nil
	}

	s.setSubmitting(true)
	defer s.setSubmitting(false)

	user := &models.User{
		Name:        strings.TrimSpace(form.Name),
		Email:       strings.TrimSpace(form.Email),
		Age:         strings.TrimSpace(form.Age),
		DeviceToken: form.DeviceToken,
	}

	wasEmpty := len(s.Visible()) == 0

	if err := s.repo.Create(ctx, user); err != nil {
		s.failOperation("add user", err)
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Notifications run before the visible list updates; their failures
	// are logged inside the dispatcher and never abort the mutation.
	s.dispatcher.NotifyCrudOperation(models.ActionCreate, *user, nil, !s.repo.Remote())

	s.prependVisible(*user)

	if !wasEmpty {
		s.feed.Push(notifications.CrudMessage(models.ActionCreate, user.Name), models.SeveritySuccess)
	}

	return user, nil, nil
}

// Update requires an existing edit target, validates the form and patches the
// record. The notification carries both the new and the prior record.
func (s *UserService) Update(ctx context.Context, id string, form models.UserForm) (*models.User, validation.FieldErrors, error) {
	prior, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load edit target: %w", err)
	}

	if errs := s.validator.ValidateForm(form); !errs.Empty() {
		return nil, errs, nil
	}

	s.setSubmitting(true)
	defer s.setSubmitting(false)

	updated := *prior
	updated.Name = strings.TrimSpace(form.Name)
	updated.Email = strings.TrimSpace(form.Email)
	updated.Age = strings.TrimSpace(form.Age)
	if form.DeviceToken != "" {
		updated.DeviceToken = form.DeviceToken
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		s.failOperation("update user", err)
		return nil, nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.dispatcher.NotifyCrudOperation(models.ActionUpdate, updated, prior, !s.repo.Remote())

	s.replaceVisible(updated)
	s.feed.Push(notifications.CrudMessage(models.ActionUpdate, updated.Name), models.SeverityInfo)

	return &updated, nil, nil
}

// Delete removes the record. Confirmation was already collected by the
// caller; this method never prompts. When the prior snapshot cannot be
// located the notification is skipped but the removal still proceeds.
func (s *UserService) Delete(ctx context.Context, id string) error {
	s.setSubmitting(true)
	defer s.setSubmitting(false)

	prior, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("record to delete not found; notification will be skipped",
			zap.String("id", id), zap.Error(err))
		prior = nil
	}

	hadMultiple := len(s.Visible()) > 1

	if err := s.repo.Delete(ctx, id); err != nil {
		s.failOperation("delete user", err)
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if prior != nil {
		s.dispatcher.NotifyCrudOperation(models.ActionDelete, *prior, nil, !s.repo.Remote())
	}

	s.removeVisible(id)

	if hadMultiple && prior != nil {
		s.feed.Push(notifications.CrudMessage(models.ActionDelete, prior.Name), models.SeverityWarning)
	}

	return nil
}

// Refresh reloads the list from the store and replaces the visible snapshot
// wholesale, the way a live-query callback delivers results.
func (s *UserService) Refresh(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	s.ApplySnapshot(users)
	return users, nil
}

// ApplySnapshot replaces the visible list with an authoritative snapshot and
// forwards it to connected device sessions. A later snapshot fully replaces
// the current one; snapshots are never merged.
func (s *UserService) ApplySnapshot(users []models.User) {
	s.mu.Lock()
	s.visible = make([]models.User, len(users))
	copy(s.visible, users)
	s.mu.Unlock()

	s.broadcastSnapshot()
}

// Visible returns a copy of the current visible list, newest first.
func (s *UserService) Visible() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.User, len(s.visible))
	copy(out, s.visible)
	return out
}

// Submitting reports whether a mutation is in flight.
func (s *UserService) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

func (s *UserService) setSubmitting(v bool) {
	s.mu.Lock()
	s.submitting = v
	s.mu.Unlock()
}

func (s *UserService) prependVisible(user models.User) {
	s.mu.Lock()
	s.visible = append([]models.User{user}, s.visible...)
	s.mu.Unlock()

	s.broadcastSnapshot()
}

func (s *UserService) replaceVisible(user models.User) {
	s.mu.Lock()
	for i := range s.visible {
		if s.visible[i].ID == user.ID {
			s.visible[i] = user
			break
		}
	}
	s.mu.Unlock()

	s.broadcastSnapshot()
}

func (s *UserService) removeVisible(id string) {
	s.mu.Lock()
	for i := range s.visible {
		if s.visible[i].ID == id {
			s.visible = append(s.visible[:i], s.visible[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.broadcastSnapshot()
}

func (s *UserService) broadcastSnapshot() {
	if s.devices == nil {
		return
	}
	if err := s.devices.BroadcastSnapshot(s.Visible()); err != nil {
		s.logger.Warn("failed to broadcast snapshot", zap.Error(err))
	}
}

// failOperation surfaces a write failure: an error fallback notification plus
// an in-app warning banner. The failed mutation itself is reported to the
// caller separately.
func (s *UserService) failOperation(op string, err error) {
	s.logger.Error("operation failed", zap.String("op", op), zap.Error(err))
	s.gateway.Fallback("Operation failed", fmt.Sprintf("Could not %s. Please try again.", op))
	s.feed.Push(fmt.Sprintf("Could not %s", op), models.SeverityWarning)
}
