package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"userhub/internal/models"
)

// SQLiteUserRepository is the local fallback store, used when the remote
// document store is unreachable at startup. It runs over an in-memory SQLite
// database, so its contents are lost on process exit.
type SQLiteUserRepository struct {
	db *gorm.DB
}

// NewSQLiteUserRepository opens an in-memory SQLite database and migrates
// the user table.
func NewSQLiteUserRepository() (*SQLiteUserRepository, error) {
	return newSQLiteUserRepository("file::memory:?cache=shared")
}

func newSQLiteUserRepository(dsn string) (*SQLiteUserRepository, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate user table: %w", err)
	}
	return &SQLiteUserRepository{db: db}, nil
}

// List retrieves all users ordered by creation time, newest first.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetByID retrieves a single user by its ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with ID %s: %w", id, ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to get user by ID %s: %w", id, err)
	}
	return &user, nil
}

// Create inserts a new user. IDs and timestamps come from the process since
// there is no store to assign them.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Update patches an existing user's row in place. The id and creation time
// never change; a missing row surfaces as zero matched rows, never an insert.
func (r *SQLiteUserRepository) Update(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(user)
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user with ID %s: %w", user.ID, ErrUserNotFound)
	}
	return nil
}

// Delete removes a user by its ID.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user with ID %s: %w", id, ErrUserNotFound)
	}
	return nil
}

// Remote reports false: this is the local-only fallback.
func (r *SQLiteUserRepository) Remote() bool {
	return false
}
