package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userhub/internal/models"
)

func TestMockRepositoryOrdersNewestFirst(t *testing.T) {
	repo := NewMockUserRepository()
	ctx := context.Background()

	first := &models.User{Name: "Ada Lovelace", Email: "ada@x.com", Age: "36"}
	second := &models.User{Name: "Grace Hopper", Email: "grace@x.com", Age: "49"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, second.ID, users[0].ID)
	assert.Equal(t, first.ID, users[1].ID)
}

func TestMockRepositoryNotFound(t *testing.T) {
	repo := NewMockUserRepository()
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = repo.Update(ctx, &models.User{ID: "missing"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = repo.Delete(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMockRepositoryUpdatePreservesCreatedAt(t *testing.T) {
	repo := NewMockUserRepository()
	ctx := context.Background()

	user := &models.User{Name: "Ada Lovelace", Email: "ada@x.com", Age: "36"}
	require.NoError(t, repo.Create(ctx, user))
	created := user.CreatedAt

	patched := &models.User{ID: user.ID, Name: "Ada King", Email: "ada@lovelace.org", Age: "37"}
	require.NoError(t, repo.Update(ctx, patched))
	assert.Equal(t, created, patched.CreatedAt)

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada King", got.Name)
}

func TestMockRepositoryDelete(t *testing.T) {
	repo := NewMockUserRepository()
	ctx := context.Background()

	user := &models.User{Name: "Ada Lovelace", Email: "ada@x.com", Age: "36"}
	require.NoError(t, repo.Create(ctx, user))
	require.NoError(t, repo.Delete(ctx, user.ID))

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestMockRepositoryIsLocal(t *testing.T) {
	assert.False(t, NewMockUserRepository().Remote())
}
