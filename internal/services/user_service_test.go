package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"userhub/internal/models"
	"userhub/internal/notifications"
	"userhub/internal/services"
	"userhub/internal/validation"
	"userhub/pkg/rabbitmq"
)

// MockUserRepository is a mock implementation of repositories.UserRepository.
type MockUserRepository struct {
	mock.Mock
	remote bool
}

func (m *MockUserRepository) List(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) Remote() bool { return m.remote }

// fakeTransport records publishes per queue.
type fakeTransport struct {
	published   map[string][][]byte
	failPublish bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{published: make(map[string][][]byte)}
}

func (t *fakeTransport) Available() bool            { return true }
func (t *fakeTransport) DeclareChannel(string) error { return nil }
func (t *fakeTransport) Publish(queue string, body []byte) error {
	if t.failPublish {
		return errors.New("publish failed")
	}
	t.published[queue] = append(t.published[queue], body)
	return nil
}

// fakeDeviceHub records platform notifications and snapshots.
type fakeDeviceHub struct {
	notifications []models.PlatformNotification
	snapshots     [][]models.User
}

func (h *fakeDeviceHub) BroadcastNotification(n models.PlatformNotification) error {
	h.notifications = append(h.notifications, n)
	return nil
}

func (h *fakeDeviceHub) BroadcastSnapshot(users []models.User) error {
	h.snapshots = append(h.snapshots, users)
	return nil
}

type allowPrompter struct{}

func (allowPrompter) Request(string) (bool, error) { return true, nil }

type testEnv struct {
	repo      *MockUserRepository
	transport *fakeTransport
	hub       *fakeDeviceHub
	feed      *notifications.Feed
	service   *services.UserService
}

func newTestEnv(remote bool) *testEnv {
	repo := &MockUserRepository{remote: remote}
	transport := newFakeTransport()
	hub := &fakeDeviceHub{}
	feed := notifications.NewFeed(zap.NewNop())

	gateway := notifications.NewGateway(transport, hub, feed, allowPrompter{}, zap.NewNop())
	gateway.Initialize()
	dispatcher := notifications.NewDispatcher(transport, gateway, zap.NewNop())

	service := services.NewUserService(repo, validation.New(), dispatcher, gateway, feed, hub, zap.NewNop())

	return &testEnv{repo: repo, transport: transport, hub: hub, feed: feed, service: service}
}

func TestUserService_AddWithStoreAvailable(t *testing.T) {
	env := newTestEnv(true)

	// The store assigns an id and timestamp on write.
	env.repo.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) {
			u := args.Get(1).(*models.User)
			u.ID = "65f0c2a9e4b0a1b2c3d4e5f6"
		}).Return(nil).Once()

	before := len(env.service.Visible())
	user, fieldErrors, err := env.service.Add(context.Background(), models.UserForm{
		Name: "Ada Lovelace", Email: "ada@x.com", Age: "36",
	})

	require.NoError(t, err)
	assert.True(t, fieldErrors.Empty())
	require.NotNil(t, user)
	assert.Equal(t, "65f0c2a9e4b0a1b2c3d4e5f6", user.ID)

	// The visible list grew by exactly one and the new record is first.
	visible := env.service.Visible()
	assert.Len(t, visible, before+1)
	assert.Equal(t, user.ID, visible[0].ID)

	// Push and email broadcasters invoked once each with action CREATE.
	require.Len(t, env.transport.published[rabbitmq.QueuePushBroadcast], 1)
	require.Len(t, env.transport.published[rabbitmq.QueueEmailBroadcast], 1)

	env.repo.AssertExpectations(t)
}

func TestUserService_AddValidationFailureSkipsWrite(t *testing.T) {
	env := newTestEnv(true)

	user, fieldErrors, err := env.service.Add(context.Background(), models.UserForm{
		Name: "Ada1", Email: "bad", Age: "200",
	})

	assert.NoError(t, err)
	assert.Nil(t, user)
	assert.False(t, fieldErrors.Empty())
	env.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, env.service.Visible())
}

func TestUserService_AddWriteFailure(t *testing.T) {
	env := newTestEnv(true)

	env.repo.On("Create", mock.Anything, mock.Anything).
		Return(errors.New("store offline")).Once()

	user, _, err := env.service.Add(context.Background(), models.UserForm{
		Name: "Ada Lovelace", Email: "ada@x.com", Age: "36",
	})

	assert.Error(t, err)
	assert.Nil(t, user)
	assert.Empty(t, env.service.Visible(), "a failed write never reaches the visible list")
	assert.False(t, env.service.Submitting(), "submitting clears on the error path")

	// Error fallback banner plus warning banner.
	assert.NotEmpty(t, env.feed.List())
	assert.Empty(t, env.transport.published[rabbitmq.QueuePushBroadcast], "no broadcast for a failed mutation")
}

func TestUserService_AddLocalOnlyMode(t *testing.T) {
	env := newTestEnv(false)

	env.repo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.User).ID = "local-1"
		}).Return(nil).Once()

	_, fieldErrors, err := env.service.Add(context.Background(), models.UserForm{
		Name: "Ada Lovelace", Email: "ada@x.com", Age: "36",
	})

	require.NoError(t, err)
	assert.True(t, fieldErrors.Empty())

	// Local notification only: the device saw it, nothing was published.
	assert.Len(t, env.hub.notifications, 1)
	assert.Empty(t, env.transport.published[rabbitmq.QueuePushBroadcast])
	assert.Empty(t, env.transport.published[rabbitmq.QueueEmailBroadcast])
}

func TestUserService_AddBannerOnlyWhenListWasNonEmpty(t *testing.T) {
	env := newTestEnv(true)

	env.repo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.User).ID = "u1"
		}).Return(nil).Once()

	// First insert into an empty list: no success banner.
	_, _, err := env.service.Add(context.Background(), models.UserForm{
		Name: "Ada Lovelace", Email: "ada@x.com", Age: "36",
	})
	require.NoError(t, err)
	assert.Empty(t, env.feed.List())

	// Second insert: the list was non-empty, a banner appears.
	env.repo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.User).ID = "u2"
		}).Return(nil).Once()
	_, _, err = env.service.Add(context.Background(), models.UserForm{
		Name: "Grace Hopper", Email: "grace@x.com", Age: "49",
	})
	require.NoError(t, err)
	assert.Len(t, env.feed.List(), 1)
}

func TestUserService_UpdateFailureLeavesVisibleUnchanged(t *testing.T) {
	env := newTestEnv(true)

	original := models.User{ID: "u1", Name: "Ada Lovelace", Email: "ada@x.com", Age: "36"}
	env.service.ApplySnapshot([]models.User{original})

	env.repo.On("GetByID", mock.Anything, "u1").Return(&original, nil).Once()
	env.repo.On("Update", mock.Anything, mock.Anything).
		Return(errors.New("write rejected")).Once()

	_, _, err := env.service.Update(context.Background(), "u1", models.UserForm{
		Name: "Ada King", Email: "ada@lovelace.org", Age: "37",
	})

	assert.Error(t, err)
	visible := env.service.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, original, visible[0], "no partial write is observable")
	assert.False(t, env.service.Submitting())
}

func TestUserService_UpdateCarriesPriorRecord(t *testing.T) {
	env := newTestEnv(true)

	prior := models.User{ID: "u1", Name: "Ada Lovelace", Email: "ada@x.com", Age: "36"}
	env.service.ApplySnapshot([]models.User{prior})

	env.repo.On("GetByID", mock.Anything, "u1").Return(&prior, nil).Once()
	env.repo.On("Update", mock.Anything, mock.Anything).Return(nil).Once()

	updated, fieldErrors, err := env.service.Update(context.Background(), "u1", models.UserForm{
		Name: "Ada King", Email: "ada@lovelace.org", Age: "37",
	})

	require.NoError(t, err)
	assert.True(t, fieldErrors.Empty())
	assert.Equal(t, "Ada King", updated.Name)

	visible := env.service.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "Ada King", visible[0].Name)

	require.Len(t, env.transport.published[rabbitmq.QueuePushBroadcast], 1)
}

func TestUserService_UpdateRequiresEditTarget(t *testing.T) {
	env := newTestEnv(true)

	env.repo.On("GetByID", mock.Anything, "missing").
		Return(nil, errors.New("user with ID missing: user not found")).Once()

	_, _, err := env.service.Update(context.Background(), "missing", models.UserForm{
		Name: "Ada Lovelace", Email: "ada@x.com", Age: "36",
	})
	assert.Error(t, err)
	env.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUserService_DeleteRemovesFromVisible(t *testing.T) {
	env := newTestEnv(true)

	a := models.User{ID: "u1", Name: "Ada Lovelace"}
	b := models.User{ID: "u2", Name: "Grace Hopper"}
	env.service.ApplySnapshot([]models.User{a, b})

	env.repo.On("GetByID", mock.Anything, "u1").Return(&a, nil).Once()
	env.repo.On("Delete", mock.Anything, "u1").Return(nil).Once()

	require.NoError(t, env.service.Delete(context.Background(), "u1"))

	visible := env.service.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "u2", visible[0].ID)

	// More than one record before removal: a banner is emitted.
	assert.Len(t, env.feed.List(), 1)
}

func TestUserService_DeleteOnlyUserEmitsNoBanner(t *testing.T) {
	env := newTestEnv(true)

	only := models.User{ID: "u1", Name: "Ada Lovelace"}
	env.service.ApplySnapshot([]models.User{only})

	env.repo.On("GetByID", mock.Anything, "u1").Return(&only, nil).Once()
	env.repo.On("Delete", mock.Anything, "u1").Return(nil).Once()

	require.NoError(t, env.service.Delete(context.Background(), "u1"))

	assert.Empty(t, env.service.Visible())
	assert.Empty(t, env.feed.List(), "list length was <=1 before removal")
}

func TestUserService_DeleteSkipsNotificationWhenRecordMissing(t *testing.T) {
	env := newTestEnv(true)

	env.repo.On("GetByID", mock.Anything, "ghost").
		Return(nil, errors.New("user with ID ghost: user not found")).Once()
	// The remote removal still proceeds.
	env.repo.On("Delete", mock.Anything, "ghost").Return(nil).Once()

	require.NoError(t, env.service.Delete(context.Background(), "ghost"))

	assert.Empty(t, env.transport.published[rabbitmq.QueuePushBroadcast])
	assert.Empty(t, env.hub.notifications)
	env.repo.AssertExpectations(t)
}

func TestUserService_ApplySnapshotReplacesWholesale(t *testing.T) {
	env := newTestEnv(true)

	env.service.ApplySnapshot([]models.User{{ID: "u1"}, {ID: "u2"}})
	env.service.ApplySnapshot([]models.User{{ID: "u3"}})

	visible := env.service.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "u3", visible[0].ID)

	// Every snapshot reached the device sessions.
	assert.Len(t, env.hub.snapshots, 2)
}
