package telemetry

import (
	"encoding/json"
	"time"

	"github.com/sweeney/shelf-companion/internal/logic"
)

// Wire is the snapshot schema consumed by the dashboard and any renderer.
type Wire struct {
	Status            string     `json:"status"`
	Uptime            uint32     `json:"uptime"`
	Emotion           string     `json:"emotion"`
	BooksPlaced       int        `json:"booksPlaced"`
	Time              string     `json:"time"`
	Books             []BookWire `json:"books"`
	TotalStudySeconds uint32     `json:"totalStudySeconds"`
	DegradeStage      int        `json:"degradeStage"`
	BootCalm          bool       `json:"bootCalm"`
	CalmHold          bool       `json:"calmHold"`
	DegradeActive     bool       `json:"degradeActive"`
}

// BookWire is one slot entry on the wire.
type BookWire struct {
	Name         string `json:"name"`
	Present      bool   `json:"present"`
	TotalSeconds uint32 `json:"totalSeconds"`
}

// BuildWire converts a snapshot into the wire schema. The device always
// reports status "live"; "demo" is reserved for the dashboard's simulator.
func BuildWire(snap Snapshot) Wire {
	books := make([]BookWire, logic.NumSlots)
	for i, s := range snap.Slots {
		books[i] = BookWire{Name: s.Name, Present: s.Present, TotalSeconds: s.LiveTotal}
	}

	clock := "N/A"
	if snap.ClockValid {
		clock = time.Unix(int64(snap.Epoch), 0).UTC().Format(time.RFC3339)
	}

	uptime := snap.Uptime().Truncate(time.Second).Seconds()
	if uptime < 0 {
		uptime = 0
	}

	return Wire{
		Status:            "live",
		Uptime:            uint32(uptime),
		Emotion:           string(snap.Mood),
		BooksPlaced:       snap.PresenceCount,
		Time:              clock,
		Books:             books,
		TotalStudySeconds: snap.TotalLive,
		DegradeStage:      snap.Stage,
		BootCalm:          snap.Phase == logic.PhaseBootCalm,
		CalmHold:          snap.Phase == logic.PhaseCalmHold,
		DegradeActive:     snap.Phase == logic.PhaseDegrade,
	}
}

// FormatJSON returns the wire snapshot as JSON.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.Marshal(BuildWire(snap))
	return data
}

// Lifecycle is the payload for MQTT system events (STARTUP, SHUTDOWN),
// carrying the full wire snapshot at the moment of the event.
type Lifecycle struct {
	System LifecycleInner `json:"system"`
}

// LifecycleInner contains the lifecycle event details.
type LifecycleInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Snapshot  Wire   `json:"snapshot"`
}

// FormatLifecycle returns the JSON payload for a lifecycle system event.
func FormatLifecycle(snap Snapshot, event, reason string) []byte {
	data, _ := json.Marshal(Lifecycle{
		System: LifecycleInner{
			Timestamp: snap.Now.UTC().Format(time.RFC3339),
			Event:     event,
			Reason:    reason,
			Snapshot:  BuildWire(snap),
		},
	})
	return data
}
