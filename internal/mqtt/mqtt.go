// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/shelf-companion/internal/logic"
)

// Topic is the MQTT topic for shelf events (slot changes, touch intents,
// reminders).
const Topic = "study/shelf/events"

// TopicTelemetry is the MQTT topic for periodic snapshot telemetry.
const TopicTelemetry = "study/shelf/telemetry"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "study/shelf/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a shelf event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(msg Message) error

	// PublishTelemetry sends a pre-formatted snapshot payload.
	PublishTelemetry(payload []byte) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Message is a shelf event together with the state it left behind.
type Message struct {
	Event       logic.Event
	Mood        logic.Mood
	BooksPlaced int
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the event message payload structure.
type Payload struct {
	Shelf ShelfPayload `json:"shelf"`
}

// ShelfPayload contains the shelf event details.
type ShelfPayload struct {
	Timestamp   string `json:"timestamp"`
	Event       string `json:"event"`
	Slot        string `json:"slot,omitempty"`
	BooksPlaced int    `json:"booksPlaced"`
	Emotion     string `json:"emotion"`
}

// FormatPayload creates the JSON payload for a shelf event.
func FormatPayload(msg Message) ([]byte, error) {
	payload := Payload{
		Shelf: ShelfPayload{
			Timestamp:   msg.Event.Timestamp.UTC().Format(time.RFC3339),
			Event:       string(msg.Event.Type),
			Slot:        msg.Event.SlotName,
			BooksPlaced: msg.BooksPlaced,
			Emotion:     string(msg.Mood),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the payload for simple system events that don't
// carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full
// status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
