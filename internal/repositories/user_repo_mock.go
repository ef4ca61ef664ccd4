package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"userhub/internal/models"
)

// MockUserRepository is an in-memory implementation of UserRepository. It
// keeps an ordered list, newest first, so it behaves like the store's
// descending live query.
type MockUserRepository struct {
	users []models.User
	mu    sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{}
}

// List returns all users, newest first.
func (r *MockUserRepository) List(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, len(r.users))
	copy(out, r.users)
	return out, nil
}

// GetByID returns a user by its ID.
func (r *MockUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.users {
		if r.users[i].ID == id {
			u := r.users[i]
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user with ID %s: %w", id, ErrUserNotFound)
}

// Create adds a new user at the front of the list, stamping it with the
// process clock.
func (r *MockUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	r.users = append([]models.User{*user}, r.users...)
	return nil
}

// Update replaces an existing user in place.
func (r *MockUserRepository) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		if r.users[i].ID == user.ID {
			user.CreatedAt = r.users[i].CreatedAt
			r.users[i] = *user
			return nil
		}
	}
	return fmt.Errorf("user with ID %s: %w", user.ID, ErrUserNotFound)
}

// Delete removes a user by its ID.
func (r *MockUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		if r.users[i].ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("user with ID %s: %w", id, ErrUserNotFound)
}

// Remote reports false: the list lives in process memory only.
func (r *MockUserRepository) Remote() bool {
	return false
}
