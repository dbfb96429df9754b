package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/shelf-companion/internal/logic"
)

func testMessage() Message {
	return Message{
		Event: logic.Event{
			Timestamp: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
			Type:      logic.EventPlaced,
			Slot:      0,
			SlotName:  "math",
		},
		Mood:        logic.MoodCalm,
		BooksPlaced: 1,
	}
}

func TestFormatPayload(t *testing.T) {
	payload, err := FormatPayload(testMessage())
	if err != nil {
		t.Fatalf("FormatPayload: %v", err)
	}

	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Shelf.Timestamp != "2026-01-01T12:00:00Z" {
		t.Errorf("Timestamp: got %q", p.Shelf.Timestamp)
	}
	if p.Shelf.Event != "PLACED" {
		t.Errorf("Event: got %q, want PLACED", p.Shelf.Event)
	}
	if p.Shelf.Slot != "math" {
		t.Errorf("Slot: got %q, want math", p.Shelf.Slot)
	}
	if p.Shelf.BooksPlaced != 1 {
		t.Errorf("BooksPlaced: got %d, want 1", p.Shelf.BooksPlaced)
	}
	if p.Shelf.Emotion != "calm" {
		t.Errorf("Emotion: got %q, want calm", p.Shelf.Emotion)
	}
}

func TestFormatPayloadOmitsEmptySlot(t *testing.T) {
	msg := testMessage()
	msg.Event.Type = logic.EventReminder
	msg.Event.Slot = -1
	msg.Event.SlotName = ""

	payload, err := FormatPayload(msg)
	if err != nil {
		t.Fatalf("FormatPayload: %v", err)
	}

	var decoded map[string]map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["shelf"]["slot"]; ok {
		t.Error("slot key should be omitted for non-slot events")
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("FormatSystemPayload: %v", err)
	}

	var p SystemPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.System.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", p.System.Event)
	}
	if p.System.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", p.System.Reason)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"custom":"payload"}`)
	event := SystemEvent{Event: "STARTUP", RawPayload: raw}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("FormatSystemPayload: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("payload: got %s, want raw passthrough", payload)
	}
}

func TestFakePublisherRecords(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Publish(testMessage()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := f.PublishTelemetry([]byte(`{"status":"live"}`)); err != nil {
		t.Fatalf("PublishTelemetry: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	if len(f.Messages) != 1 || f.Messages[0].Event.Type != logic.EventPlaced {
		t.Errorf("Messages: got %+v", f.Messages)
	}
	if len(f.Telemetry) != 1 {
		t.Errorf("Telemetry: got %d entries, want 1", len(f.Telemetry))
	}
	if len(f.SystemEvents) != 1 || f.SystemEvents[0].Event != "STARTUP" {
		t.Errorf("SystemEvents: got %+v", f.SystemEvents)
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	wantErr := errors.New("broker down")
	f.PublishError = wantErr

	if err := f.Publish(testMessage()); err != wantErr {
		t.Errorf("Publish: got %v, want injected error", err)
	}
	if err := f.PublishTelemetry(nil); err != wantErr {
		t.Errorf("PublishTelemetry: got %v, want injected error", err)
	}
	if len(f.Messages) != 0 || len(f.Telemetry) != 0 {
		t.Error("failed publishes should record nothing")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(testMessage())
	f.Connected = true
	f.Close()

	f.Reset()
	if len(f.Messages) != 0 || f.Closed || f.Connected {
		t.Errorf("Reset left state behind: %+v", f)
	}
}
