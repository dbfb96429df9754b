// Package telemetry provides a thread-safe snapshot tracker for the
// shelf-companion daemon. The scheduling loop writes the core state once
// per cycle; HTTP handlers and the websocket hub read point-in-time copies.
package telemetry

import (
	"sync"
	"time"

	"github.com/sweeney/shelf-companion/internal/logic"
)

// Config contains daemon configuration, echoed into lifecycle events.
type Config struct {
	PollMs     int64
	DebounceMs int64
	PublishMs  int64
	BootCalmMs int64
	CalmHoldMs int64
	DegradeMs  int64
	Broker     string
	HTTPAddr   string
}

// State is the core state written by the scheduling loop each cycle.
type State struct {
	Phase         logic.Phase
	Stage         int
	Mood          logic.Mood
	PresenceCount int
	Slots         [logic.NumSlots]logic.SlotView
	TotalLive     uint32
	Epoch         uint32
	ClockValid    bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	State
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			State: State{
				Phase: logic.PhaseBootCalm,
				Mood:  logic.MoodCalm,
			},
		},
	}
}

// Update replaces the core state. Called from the scheduling loop on every
// tick, so readers always see one whole cycle's worth of state at once.
func (t *Tracker) Update(st State) {
	t.mu.Lock()
	t.snap.State = st
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
