package notifications

import (
	"sync"

	"go.uber.org/zap"

	"userhub/internal/models"
	"userhub/pkg/rabbitmq"
)

// GatewayState tracks the gateway's initialization lifecycle.
type GatewayState int

const (
	StateUninitialized GatewayState = iota
	StateChannelsCreated
	StatePermissionRequested
	StateReady
)

// Prompter asks the device owner a yes/no permission question.
type Prompter interface {
	Request(message string) (bool, error)
}

// ConfigPrompter answers permission prompts from configuration, for headless
// deployments where nobody is present to tap a dialog.
type ConfigPrompter struct {
	Allow bool
}

func (p ConfigPrompter) Request(string) (bool, error) {
	return p.Allow, nil
}

// DeviceBroadcaster delivers platform notifications to connected device
// sessions.
type DeviceBroadcaster interface {
	BroadcastNotification(n models.PlatformNotification) error
}

const (
	permissionPrompt = "Allow UserHub to send you notifications about directory changes?"
	permissionDenied = "Notifications are disabled. Alerts will appear in the in-app feed only; you can enable notifications later in settings."
)

// Gateway wraps device notification delivery. It is constructed explicitly
// and initialized once: Uninitialized -> ChannelsCreated ->
// PermissionRequested -> Ready.
type Gateway struct {
	transport PushTransport
	devices   DeviceBroadcaster
	feed      *Feed
	prompter  Prompter
	logger    *zap.Logger

	mu                 sync.Mutex
	state              GatewayState
	channelsCreated    bool
	permissionGranted  bool
	transportAvailable bool
}

// NewGateway builds an uninitialized gateway.
func NewGateway(transport PushTransport, devices DeviceBroadcaster, feed *Feed, prompter Prompter, logger *zap.Logger) *Gateway {
	return &Gateway{
		transport: transport,
		devices:   devices,
		feed:      feed,
		prompter:  prompter,
		logger:    logger,
		state:     StateUninitialized,
	}
}

// Initialize runs channel creation, the permission request and the transport
// probe. Each step is guarded on its own: a failure is logged and the
// remaining steps still run.
func (g *Gateway) Initialize() {
	g.createChannels()
	g.requestPermission()
	g.probeTransport()

	g.mu.Lock()
	g.state = StateReady
	g.mu.Unlock()
	g.logger.Info("notification gateway ready",
		zap.Bool("channels_created", g.channelsCreated),
		zap.Bool("permission_granted", g.permissionGranted),
		zap.Bool("transport_available", g.transportAvailable))
}

// State returns the current lifecycle state.
func (g *Gateway) State() GatewayState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gateway) createChannels() {
	created := true
	for _, channel := range rabbitmq.NotificationChannels {
		if err := g.transport.DeclareChannel(channel); err != nil {
			g.logger.Warn("failed to create notification channel",
				zap.String("channel", channel), zap.Error(err))
			created = false
		}
	}

	g.mu.Lock()
	g.channelsCreated = created
	g.state = StateChannelsCreated
	g.mu.Unlock()
}

func (g *Gateway) requestPermission() {
	defer func() {
		g.mu.Lock()
		g.state = StatePermissionRequested
		g.mu.Unlock()
	}()

	g.mu.Lock()
	granted := g.permissionGranted
	g.mu.Unlock()
	if granted {
		return
	}

	granted, err := g.prompter.Request(permissionPrompt)
	if err != nil {
		g.logger.Warn("permission prompt failed", zap.Error(err))
		return
	}

	g.mu.Lock()
	g.permissionGranted = granted
	g.mu.Unlock()

	if !granted {
		// Secondary explanatory prompt; the answer is ignored and there
		// is no automatic retry.
		if _, err := g.prompter.Request(permissionDenied); err != nil {
			g.logger.Warn("permission explanation prompt failed", zap.Error(err))
		}
	}
}

func (g *Gateway) probeTransport() {
	g.mu.Lock()
	g.transportAvailable = g.transport.Available()
	g.mu.Unlock()
}

// Display renders a platform notification on connected device sessions. With
// permission absent, or when delivery fails, it falls back to the in-app
// path.
func (g *Gateway) Display(title, body string, severity models.Severity) {
	g.mu.Lock()
	granted := g.permissionGranted
	g.mu.Unlock()

	if !granted {
		g.Fallback(title, body)
		return
	}

	notification := models.PlatformNotification{
		Title:       title,
		Body:        body,
		Severity:    severity,
		Channel:     channelFor(severity),
		Color:       colorFor(severity),
		VibrationMs: vibrationFor(severity),
		Actions:     []string{"View", "Dismiss"},
	}

	if g.devices == nil {
		g.logger.Warn("no device broadcaster configured")
		g.Fallback(title, body)
		return
	}
	if err := g.devices.BroadcastNotification(notification); err != nil {
		g.logger.Warn("platform notification failed", zap.Error(err))
		g.Fallback(title, body)
	}
}

// Fallback attempts the in-app banner (toast analog) and then a warning log
// (alert analog). Each attempt is guarded independently so one failing does
// not suppress the other.
func (g *Gateway) Fallback(title, body string) {
	if g.feed != nil {
		g.feed.Push(title+": "+body, models.SeverityInfo)
	} else {
		g.logger.Warn("no feed configured for fallback toast")
	}

	g.logger.Warn("notification fallback alert",
		zap.String("title", title),
		zap.String("body", body))
}

// Status returns the gateway's capability booleans.
func (g *Gateway) Status() models.GatewayStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	return models.GatewayStatus{
		TransportAvailable: g.transportAvailable,
		PermissionGranted:  g.permissionGranted,
		ChannelsCreated:    g.channelsCreated,
		CanSendRemote:      g.permissionGranted && g.transportAvailable,
	}
}

func channelFor(severity models.Severity) string {
	switch severity {
	case models.SeverityWarning:
		return "high_priority"
	case models.SeveritySuccess:
		return "crud_operations"
	default:
		return "default"
	}
}

func colorFor(severity models.Severity) string {
	switch severity {
	case models.SeveritySuccess:
		return "#4CAF50"
	case models.SeverityWarning:
		return "#FF9800"
	default:
		return "#2196F3"
	}
}

func vibrationFor(severity models.Severity) int {
	switch severity {
	case models.SeveritySuccess:
		return 50
	case models.SeverityInfo:
		return 100
	case models.SeverityWarning:
		return 200
	default:
		return 100
	}
}
