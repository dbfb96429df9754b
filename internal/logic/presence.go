package logic

import "time"

// slotState tracks debounce and duration accounting for a single slot.
type slotState struct {
	name string

	// Current stable (debounced) presence.
	present bool
	// Pending presence during debounce; valid only while hasPending.
	pending      bool
	hasPending   bool
	pendingSince time.Time

	// Duration accounting.
	tracking    bool
	placedEpoch uint32
	cumulative  uint32
}

// PresenceTracker debounces raw slot signals and maintains accumulated
// presence duration per slot.
type PresenceTracker struct {
	debounce time.Duration
	slots    [NumSlots]slotState

	// Re-armed whenever the placed count drops below NumSlots, so the
	// all-placed event fires exactly once per ascent to a full shelf.
	allPlacedArmed bool
}

// NewPresenceTracker creates a tracker for the given slot names. All slots
// start absent with zero accumulated time.
func NewPresenceTracker(names [NumSlots]string, debounce time.Duration) *PresenceTracker {
	t := &PresenceTracker{
		debounce:       debounce,
		allPlacedArmed: true,
	}
	for i := range t.slots {
		t.slots[i].name = names[i]
	}
	return t
}

// Process takes one sample of all raw slot signals and returns any accepted
// change events, plus the one-shot all-placed event when the count ascends
// to NumSlots. Rejected (still-bouncing) transitions produce nothing.
func (t *PresenceTracker) Process(in SlotInput) []Event {
	var events []Event

	for i := range t.slots {
		if !t.processSlot(&t.slots[i], in.Raw[i], in.Time, in.Epoch) {
			continue
		}
		kind := EventRemoved
		if t.slots[i].present {
			kind = EventPlaced
		}
		events = append(events, Event{
			Timestamp: in.Time,
			Type:      kind,
			Slot:      i,
			SlotName:  t.slots[i].name,
		})
	}

	if t.PresenceCount() == NumSlots {
		if t.allPlacedArmed {
			t.allPlacedArmed = false
			events = append(events, Event{Timestamp: in.Time, Type: EventAllPlaced, Slot: -1})
		}
	} else {
		t.allPlacedArmed = true
	}

	return events
}

// processSlot runs debounce for one slot and applies duration accounting on
// an accepted transition. Returns true if the stable state changed.
func (t *PresenceTracker) processSlot(s *slotState, raw bool, now time.Time, epoch uint32) bool {
	if raw == s.present {
		// Back at the stable state, drop any pending transition.
		s.hasPending = false
		return false
	}

	if !s.hasPending || s.pending != raw {
		s.pending = raw
		s.hasPending = true
		s.pendingSince = now
		return false
	}

	if now.Sub(s.pendingSince) < t.debounce {
		return false
	}

	s.present = raw
	s.hasPending = false

	if s.present {
		s.tracking = true
		s.placedEpoch = epoch
	} else if s.tracking {
		s.cumulative += epochDelta(epoch, s.placedEpoch)
		s.tracking = false
		s.placedEpoch = 0
	}
	return true
}

// LiveTotal returns the total seconds slot i has been present, including
// the in-flight interval if it is present right now. Read-only.
func (t *PresenceTracker) LiveTotal(i int, epoch uint32) uint32 {
	s := &t.slots[i]
	total := s.cumulative
	if s.tracking {
		total += epochDelta(epoch, s.placedEpoch)
	}
	return total
}

// TotalLive returns the sum of live totals across all slots.
func (t *PresenceTracker) TotalLive(epoch uint32) uint32 {
	var sum uint32
	for i := range t.slots {
		sum += t.LiveTotal(i, epoch)
	}
	return sum
}

// PresenceCount returns how many slots are currently (stably) present.
func (t *PresenceTracker) PresenceCount() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].present {
			n++
		}
	}
	return n
}

// Present reports the stable presence of slot i.
func (t *PresenceTracker) Present(i int) bool {
	return t.slots[i].present
}

// Views returns a snapshot view of every slot at the given epoch.
func (t *PresenceTracker) Views(epoch uint32) [NumSlots]SlotView {
	var views [NumSlots]SlotView
	for i := range t.slots {
		views[i] = SlotView{
			Name:      t.slots[i].name,
			Present:   t.slots[i].present,
			LiveTotal: t.LiveTotal(i, epoch),
		}
	}
	return views
}
