package logic

import "time"

// EmotionConfig holds the phase machine's timing windows.
type EmotionConfig struct {
	BootCalm     time.Duration // calm grace period after boot
	CalmHold     time.Duration // calm window after the shelf fills up
	DegradeEvery time.Duration // interval between degrade stages
	MaxStage     int
}

// DefaultEmotionConfig returns the stock timing windows.
func DefaultEmotionConfig() EmotionConfig {
	return EmotionConfig{
		BootCalm:     5 * time.Minute,
		CalmHold:     10 * time.Minute,
		DegradeEvery: 10 * time.Minute,
		MaxStage:     5,
	}
}

// degradeMoods maps a degrade stage to its mood. Indexed by stage, clamped.
var degradeMoods = []Mood{MoodCalm, MoodNeutral, MoodNeutral, MoodSad, MoodVerySad, MoodReminder}

// EmotionEngine is the phase machine deriving the companion's mood from
// boot time, collective presence, and elapsed idle time.
//
// The degrade stage is recomputed from elapsed time on every tick rather
// than incremented, so the machine tolerates missed or delayed ticks and
// Tick is safe to call at any cadence.
type EmotionEngine struct {
	cfg EmotionConfig

	phase     Phase
	bootTime  time.Time
	enteredAt time.Time // when the current phase was entered

	// One-shot guard: set when the reminder fires, cleared on reset.
	reminderFired bool
}

// NewEmotionEngine creates an engine in the BootCalm phase.
func NewEmotionEngine(cfg EmotionConfig, bootTime time.Time) *EmotionEngine {
	return &EmotionEngine{
		cfg:       cfg,
		phase:     PhaseBootCalm,
		bootTime:  bootTime,
		enteredAt: bootTime,
	}
}

// Tick advances the phase machine. events are the core events produced this
// cycle (slot changes, all-placed, touch intents). Returns any events the
// engine itself emits (currently only the one-shot reminder).
func (e *EmotionEngine) Tick(now time.Time, events []Event) []Event {
	qualifying := false
	allPlaced := false
	for _, ev := range events {
		if ev.Qualifying() {
			qualifying = true
		}
		if ev.Type == EventAllPlaced {
			allPlaced = true
		}
	}

	switch e.phase {
	case PhaseBootCalm:
		if qualifying || now.Sub(e.bootTime) >= e.cfg.BootCalm {
			e.enter(PhaseNormal, now)
		}

	case PhaseCalmHold:
		if qualifying {
			e.enter(PhaseNormal, now)
		} else if now.Sub(e.enteredAt) >= e.cfg.CalmHold {
			e.enter(PhaseDegrade, now)
		}

	case PhaseDegrade:
		if qualifying {
			e.enter(PhaseNormal, now)
		}
	}

	// A full shelf promotes Normal to CalmHold, including when the slot
	// change that completed it reset us to Normal in this same tick.
	if e.phase == PhaseNormal && allPlaced {
		e.enter(PhaseCalmHold, now)
	}

	var out []Event
	if e.phase == PhaseDegrade && e.Stage(now) == e.cfg.MaxStage && !e.reminderFired {
		e.reminderFired = true
		out = append(out, Event{Timestamp: now, Type: EventReminder, Slot: -1})
	}
	return out
}

func (e *EmotionEngine) enter(p Phase, now time.Time) {
	e.phase = p
	e.enteredAt = now
	if p == PhaseNormal {
		e.reminderFired = false
	}
}

// Phase returns the active phase.
func (e *EmotionEngine) Phase() Phase {
	return e.phase
}

// Stage returns the degrade stage at the given instant: elapsed time since
// phase entry divided by the degrade interval, clamped at MaxStage. Zero
// outside the Degrade phase.
func (e *EmotionEngine) Stage(now time.Time) int {
	if e.phase != PhaseDegrade {
		return 0
	}
	elapsed := now.Sub(e.enteredAt)
	if elapsed < 0 {
		return 0
	}
	stage := int(elapsed / e.cfg.DegradeEvery)
	if stage > e.cfg.MaxStage {
		stage = e.cfg.MaxStage
	}
	return stage
}

// Mood derives the current mood from the active phase and the number of
// slots present. Pure; no state is touched.
func (e *EmotionEngine) Mood(now time.Time, presenceCount int) Mood {
	switch e.phase {
	case PhaseBootCalm, PhaseCalmHold:
		return MoodCalm
	case PhaseDegrade:
		stage := e.Stage(now)
		if stage >= len(degradeMoods) {
			stage = len(degradeMoods) - 1
		}
		return degradeMoods[stage]
	}

	switch {
	case presenceCount == 0:
		return MoodNeutral
	case presenceCount <= 2:
		return MoodCalm
	case presenceCount <= 4:
		return MoodHappy
	default:
		return MoodProud
	}
}
