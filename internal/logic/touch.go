package logic

import "time"

// TouchClassifier debounces the single touch input and classifies each
// completed press by its duration: below NoiseFloor it is ignored, below
// the long-press threshold it is a quick-status intent (which qualifies as
// an interaction and resets the emotion engine), at or above it a
// detailed-stats intent (which does not reset — observed behavior from the
// device, kept as-is pending product clarification).
type TouchClassifier struct {
	debounce  time.Duration
	longPress time.Duration

	pressed      bool // stable (debounced) state
	pending      bool
	hasPending   bool
	pendingSince time.Time

	// First instant the press was observed, so the settle window does not
	// shave the measured duration.
	pressStart time.Time
}

// NewTouchClassifier creates a classifier with the given settle window and
// long-press threshold.
func NewTouchClassifier(debounce, longPress time.Duration) *TouchClassifier {
	return &TouchClassifier{debounce: debounce, longPress: longPress}
}

// Process takes one raw touch sample. It returns a single intent event when
// a press completes, nil otherwise.
func (t *TouchClassifier) Process(raw bool, now time.Time) []Event {
	if raw == t.pressed {
		t.hasPending = false
		return nil
	}

	if !t.hasPending || t.pending != raw {
		t.pending = raw
		t.hasPending = true
		t.pendingSince = now
		return nil
	}

	if now.Sub(t.pendingSince) < t.debounce {
		return nil
	}

	// Accepted transition.
	accepted := t.pendingSince
	t.pressed = raw
	t.hasPending = false

	if t.pressed {
		t.pressStart = accepted
		return nil
	}

	duration := accepted.Sub(t.pressStart)
	switch {
	case duration < NoiseFloor:
		return nil
	case duration < t.longPress:
		return []Event{{Timestamp: now, Type: EventQuickStatus, Slot: -1}}
	default:
		return []Event{{Timestamp: now, Type: EventDetailedStats, Slot: -1}}
	}
}

// Pressed reports the stable touch state.
func (t *TouchClassifier) Pressed() bool {
	return t.pressed
}
