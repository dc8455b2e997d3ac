// Package announce publishes sign lifecycle and state events to a local
// MQTT broker, with abstraction for testing. Announcing is optional; when
// no broker is configured the Nop publisher is used.
package announce

import (
	"encoding/json"
	"time"
)

// EventsTopic is where sign state changes are published for the given
// device hostname.
func EventsTopic(host string) string {
	return "onair/" + host + "/events"
}

// SystemTopic is where lifecycle events are published for the given
// device hostname.
func SystemTopic(host string) string {
	return "onair/" + host + "/system"
}

// Lifecycle event names.
const (
	EventStartup  = "STARTUP"
	EventMode     = "MODE"
	EventReset    = "RESET"
	EventShutdown = "SHUTDOWN"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishSign sends a sign state change to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishSign(event SignEvent) error

	// PublishSystem sends a lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the broker connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SignEvent represents one sign state change.
type SignEvent struct {
	Timestamp time.Time
	Mode      string // "off", "on", "breathing"
	PeriodMs  int    // breathing only
	MinPct    int    // breathing only
	MaxPct    int    // breathing only
}

// SystemEvent represents a lifecycle event.
type SystemEvent struct {
	Timestamp time.Time
	Event     string // EventStartup, EventMode, EventReset, EventShutdown
	Mode      string // "portal" or "sta" (STARTUP, MODE)
	Reason    string // e.g. "SIGTERM", "SIGINT" (shutdown only)
	Version   string // firmware version (startup only)
	IP        string // station address (startup only, when connected)
	Retained  bool   // whether the broker should retain the message
}

// SignPayload represents the sign event message structure.
type SignPayload struct {
	Sign SignPayloadInner `json:"sign"`
}

// SignPayloadInner contains the sign state details.
type SignPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Mode      string `json:"mode"`
	PeriodMs  int    `json:"period_ms,omitempty"`
	MinPct    int    `json:"min_pct,omitempty"`
	MaxPct    int    `json:"max_pct,omitempty"`
}

// FormatSignPayload creates the JSON payload for a sign event.
func FormatSignPayload(event SignEvent) ([]byte, error) {
	payload := SignPayload{
		Sign: SignPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Mode:      event.Mode,
			PeriodMs:  event.PeriodMs,
			MinPct:    event.MinPct,
			MaxPct:    event.MaxPct,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the lifecycle event message structure.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the lifecycle event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Mode      string `json:"mode,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Version   string `json:"version,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a lifecycle event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Mode:      event.Mode,
			Reason:    event.Reason,
			Version:   event.Version,
			IP:        event.IP,
		},
	}
	return json.Marshal(payload)
}
