package repositories

import (
	"context"
	"errors"

	"userhub/internal/models"
)

// ErrUserNotFound is returned when a lookup, update or delete targets an
// unknown user id.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the interface for user data access.
// List returns users ordered by creation time, newest first.
type UserRepository interface {
	List(ctx context.Context) ([]models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error

	// Remote reports whether this repository is backed by the remote
	// document store. Local repositories lose their data on process exit.
	Remote() bool
}
