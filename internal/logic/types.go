// Package logic contains pure business logic for the shelf companion:
// presence tracking, the emotion phase machine, and touch classification.
// This package has NO external dependencies (no GPIO, MQTT, OS, or
// time.Sleep). Time is always injectable via parameters.
package logic

import "time"

// NumSlots is the number of tracked book slots.
const NumSlots = 5

// NoiseFloor is the minimum press duration that counts as a touch.
const NoiseFloor = 50 * time.Millisecond

// Mood is the externally-reported emotional label. It is derived, never
// stored: a pure function of phase and presence count.
type Mood string

const (
	MoodNeutral  Mood = "neutral"
	MoodCalm     Mood = "calm"
	MoodHappy    Mood = "happy"
	MoodProud    Mood = "proud"
	MoodSleepy   Mood = "sleepy" // renderer vocabulary only, not produced here
	MoodSad      Mood = "sad"
	MoodVerySad  Mood = "verysad"
	MoodReminder Mood = "reminder"
)

// Phase is the emotion engine's top-level mode. Exactly one is active.
type Phase string

const (
	PhaseBootCalm Phase = "BOOT_CALM"
	PhaseNormal   Phase = "NORMAL"
	PhaseCalmHold Phase = "CALM_HOLD"
	PhaseDegrade  Phase = "DEGRADE"
)

// EventType identifies an emitted core event.
type EventType string

const (
	// Slot change events (from the presence tracker).
	EventPlaced  EventType = "PLACED"
	EventRemoved EventType = "REMOVED"

	// Fired once when the placed count ascends to NumSlots.
	EventAllPlaced EventType = "ALL_PLACED"

	// Fired once on first entry into the final degrade stage.
	EventReminder EventType = "REMINDER"

	// Touch intents.
	EventQuickStatus   EventType = "QUICK_STATUS"
	EventDetailedStats EventType = "DETAILED_STATS"
)

// Event is a core event to be fed to the emotion engine and published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Slot      int    // slot index for PLACED/REMOVED, -1 otherwise
	SlotName  string // empty for non-slot events
}

// Qualifying reports whether the event forces the emotion engine back to
// the Normal phase. Slot changes and short presses qualify; long presses
// deliberately do not.
func (e Event) Qualifying() bool {
	switch e.Type {
	case EventPlaced, EventRemoved, EventQuickStatus:
		return true
	}
	return false
}

// SlotInput is one sample of all raw slot signals.
type SlotInput struct {
	Raw   [NumSlots]bool
	Time  time.Time
	Epoch uint32 // clock epoch seconds for duration accounting
}

// SlotView is a read-only view of one slot for snapshot assembly.
type SlotView struct {
	Name      string
	Present   bool
	LiveTotal uint32
}

// epochDelta returns now-then in seconds, clamped to zero if the clock
// appears to have regressed (e.g. a backwards time sync mid-accrual).
func epochDelta(now, then uint32) uint32 {
	if now <= then {
		return 0
	}
	return now - then
}
