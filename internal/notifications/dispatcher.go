package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"userhub/internal/models"
	"userhub/pkg/rabbitmq"
)

// BroadcastEnvelope is the message the dispatcher publishes for the fan-out
// handlers. Updates carry the prior record as well, for auditability.
type BroadcastEnvelope struct {
	Action    models.CrudAction `json:"action"`
	User      models.User       `json:"user"`
	Prior     *models.User      `json:"prior,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Result is the best-effort outcome of a remote dispatch. Callers inspect it
// for logging only; it never drives the control flow of the primary
// operation.
type Result struct {
	Err error
}

// Failed reports whether the dispatch failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Reason describes the failure, or is empty on success.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// CrudMessage is the user-facing text for a CRUD notification.
func CrudMessage(action models.CrudAction, name string) string {
	switch action {
	case models.ActionCreate:
		return fmt.Sprintf("%s has been added", name)
	case models.ActionUpdate:
		return fmt.Sprintf("%s's information has been updated", name)
	case models.ActionDelete:
		return fmt.Sprintf("%s has been removed", name)
	default:
		return fmt.Sprintf("%s's record changed", name)
	}
}

func titleFor(action models.CrudAction) string {
	switch action {
	case models.ActionCreate:
		return "User Added"
	case models.ActionUpdate:
		return "User Updated"
	case models.ActionDelete:
		return "User Removed"
	default:
		return "Directory Notification"
	}
}

// SeverityFor maps a CRUD action to its presentation severity.
func SeverityFor(action models.CrudAction) models.Severity {
	switch action {
	case models.ActionCreate:
		return models.SeveritySuccess
	case models.ActionDelete:
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}

// Dispatcher sends CRUD notifications: always through the local gateway,
// and to the push and email fan-out queues when a remote transport exists.
type Dispatcher struct {
	transport PushTransport
	gateway   *Gateway
	logger    *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(transport PushTransport, gateway *Gateway, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		gateway:   gateway,
		logger:    logger,
	}
}

// PushBroadcast enqueues a push fan-out request. Best-effort: the result is
// for logging only.
func (d *Dispatcher) PushBroadcast(action models.CrudAction, user models.User, prior *models.User) Result {
	return d.publish(rabbitmq.QueuePushBroadcast, action, user, prior)
}

// EmailBroadcast enqueues an email fan-out request, symmetric to
// PushBroadcast.
func (d *Dispatcher) EmailBroadcast(action models.CrudAction, user models.User, prior *models.User) Result {
	return d.publish(rabbitmq.QueueEmailBroadcast, action, user, prior)
}

func (d *Dispatcher) publish(queue string, action models.CrudAction, user models.User, prior *models.User) Result {
	if !d.transport.Available() {
		d.logger.Info("remote broadcast skipped: transport unavailable",
			zap.String("queue", queue), zap.String("action", string(action)))
		return Result{Err: ErrTransportUnavailable}
	}

	envelope := BroadcastEnvelope{
		Action:    action,
		User:      user,
		Prior:     prior,
		Timestamp: time.Now(),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to marshal broadcast envelope: %w", err)}
	}

	if err := d.transport.Publish(queue, body); err != nil {
		return Result{Err: fmt.Errorf("failed to publish to %s: %w", queue, err)}
	}
	return Result{}
}

// NotifyCrudOperation covers every notification path for one mutation: the
// local gateway always runs; the remote broadcasts run only when the
// operation is not local-only and the transport is available. Remote
// failures are logged, never surfaced.
func (d *Dispatcher) NotifyCrudOperation(action models.CrudAction, user models.User, prior *models.User, isLocalOnly bool) {
	message := CrudMessage(action, user.Name)
	d.gateway.Display(titleFor(action), message, SeverityFor(action))

	if isLocalOnly || !d.transport.Available() {
		d.logger.Debug("remote notifications skipped",
			zap.String("action", string(action)),
			zap.Bool("local_only", isLocalOnly))
		return
	}

	if res := d.PushBroadcast(action, user, prior); res.Failed() {
		d.logger.Warn("push broadcast failed",
			zap.String("action", string(action)),
			zap.String("reason", res.Reason()))
	}
	if res := d.EmailBroadcast(action, user, prior); res.Failed() {
		d.logger.Warn("email broadcast failed",
			zap.String("action", string(action)),
			zap.String("reason", res.Reason()))
	}
}
