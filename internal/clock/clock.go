// Package clock provides the device clock: epoch seconds from the system
// wall clock when one is available, or a monotonic uptime counter when not.
// The counter never regresses, even across a backwards time sync.
package clock

import (
	"errors"
	"sync"
	"time"
)

// EpochFloor is the sanity floor for epoch values. Anything at or below it
// (boards without an RTC boot near epoch zero) is treated as "no real time".
const EpochFloor = 1_000_000_000

// ErrInvalidEpoch is returned by Sync for epochs at or below EpochFloor.
var ErrInvalidEpoch = errors.New("clock: epoch below sanity floor")

// Source supplies monotonic wall-clock seconds. Now never fails; a source
// without real time degrades to an uptime counter and reports Valid()==false.
type Source interface {
	// Now returns the current epoch in seconds. Non-decreasing across
	// successive calls, including across a Sync.
	Now() uint32

	// Valid reports whether Now is backed by real wall-clock time.
	Valid() bool
}

// Wall is the production Source. It anchors an epoch to a monotonic
// reference point and advances it with the monotonic clock, so NTP steps to
// the system clock after startup cannot make it jump or regress.
type Wall struct {
	mu      sync.Mutex
	anchor  time.Time // monotonic reference
	epoch   uint32    // epoch seconds at anchor
	valid   bool
	lastOut uint32 // last value handed out, regression clamp
}

// NewWall creates a Wall clock. If the system clock is past the sanity
// floor it is adopted as the epoch; otherwise the clock starts as an
// uptime counter from zero and stays invalid until Sync is called.
func NewWall() *Wall {
	w := &Wall{anchor: time.Now()}
	if e := w.anchor.Unix(); e > EpochFloor {
		w.epoch = uint32(e)
		w.valid = true
	}
	return w
}

// Now returns the current epoch seconds.
func (w *Wall) Now() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nowLocked(time.Now())
}

func (w *Wall) nowLocked(t time.Time) uint32 {
	elapsed := t.Sub(w.anchor)
	if elapsed < 0 {
		elapsed = 0
	}
	out := w.epoch + uint32(elapsed/time.Second)
	if out < w.lastOut {
		out = w.lastOut
	}
	w.lastOut = out
	return out
}

// Valid reports whether the clock is backed by real time.
func (w *Wall) Valid() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.valid
}

// Sync adopts an externally supplied epoch (e.g. from the dashboard's
// clock-sync request) and marks the clock valid. Epochs at or below the
// sanity floor are rejected and leave the clock unchanged. A sync that
// would move time backwards is accepted but Now keeps returning the
// already-reached value until real time catches up.
func (w *Wall) Sync(epoch uint32) error {
	if epoch <= EpochFloor {
		return ErrInvalidEpoch
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.anchor = time.Now()
	w.epoch = epoch
	w.valid = true
	return nil
}
