package models

import "time"

// Severity classifies a notification for presentation purposes.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Notification is a transient in-app banner. Entries live in the feed for a
// few seconds and are never persisted.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// PlatformNotification is the payload delivered to connected device sessions.
// Vibration duration and color are hints the device honors when rendering.
type PlatformNotification struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Severity    Severity `json:"severity"`
	Channel     string   `json:"channel"`
	Color       string   `json:"color"`
	VibrationMs int      `json:"vibration_ms"`
	Actions     []string `json:"actions"`
}

// GatewayStatus exposes the notification gateway's capabilities read-only.
type GatewayStatus struct {
	TransportAvailable bool `json:"transport_available"`
	PermissionGranted  bool `json:"permission_granted"`
	ChannelsCreated    bool `json:"channels_created"`
	CanSendRemote      bool `json:"can_send_remote"`
}

// BroadcastResult is the outcome of a fan-out call. Partial failures are
// reported through the counts, never retried.
type BroadcastResult struct {
	Success      bool   `json:"success"`
	SuccessCount int    `json:"successCount,omitempty"`
	FailureCount int    `json:"failureCount,omitempty"`
	Message      string `json:"message,omitempty"`
}
