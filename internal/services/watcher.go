package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"userhub/internal/models"
	"userhub/internal/repositories"
)

// ClassifyChange maps a change-stream operation to a CRUD action: a document
// that did not exist before is a CREATE, one that no longer exists is a
// DELETE, everything else is an UPDATE.
func ClassifyChange(operationType string) models.CrudAction {
	switch operationType {
	case "insert":
		return models.ActionCreate
	case "delete":
		return models.ActionDelete
	default:
		return models.ActionUpdate
	}
}

// StoreWatcher consumes the users collection's change stream. Every write
// re-invokes the push broadcaster with the derived payload and refreshes the
// visible snapshot, the way the store's live query feeds the screen.
//
// Manual broadcasts and this trigger can both fire for the same write; that
// duplicate delivery matches the current product behavior and the trigger
// tags its invocations so the overlap shows up in logs.
type StoreWatcher struct {
	repo   *repositories.MongoUserRepository
	fanout *FanoutService
	users  *UserService
	logger *zap.Logger
}

// NewStoreWatcher creates a StoreWatcher.
func NewStoreWatcher(repo *repositories.MongoUserRepository, fanout *FanoutService, users *UserService, logger *zap.Logger) *StoreWatcher {
	return &StoreWatcher{
		repo:   repo,
		fanout: fanout,
		users:  users,
		logger: logger,
	}
}

// Run blocks on the change stream until the context is cancelled or the
// stream breaks.
func (w *StoreWatcher) Run(ctx context.Context) error {
	stream, err := w.repo.Watch(ctx)
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var event repositories.ChangeEvent
		if err := stream.Decode(&event); err != nil {
			w.logger.Warn("failed to decode change event", zap.Error(err))
			continue
		}
		w.handle(ctx, event)
	}

	if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (w *StoreWatcher) handle(ctx context.Context, event repositories.ChangeEvent) {
	action := ClassifyChange(event.OperationType)
	user := event.User()

	// The trigger has no sender; nobody is excluded from the fan-out.
	result, err := w.fanout.PushBroadcast(ctx, action, user, "")
	if err != nil {
		w.logger.Warn("trigger push broadcast failed",
			zap.String("source", "trigger"),
			zap.String("action", string(action)),
			zap.Error(err))
	} else {
		w.logger.Info("trigger push broadcast",
			zap.String("source", "trigger"),
			zap.String("action", string(action)),
			zap.Int("success", result.SuccessCount),
			zap.Int("failure", result.FailureCount))
	}

	if w.users != nil {
		if _, err := w.users.Refresh(ctx); err != nil {
			w.logger.Warn("failed to refresh snapshot after store write", zap.Error(err))
		}
	}
}
