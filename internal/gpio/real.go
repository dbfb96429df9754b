//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads from actual hardware using the Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	slots [NumSlots]*gpiocdev.Line
	touch *gpiocdev.Line
}

// NewRealReader requests the slot and touch lines on gpiochip0.
func NewRealReader(slotPins [NumSlots]int, touchPin int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealReader{chip: chip}

	// Request lines as input with pull-down to match Pi boot defaults, so
	// behavior stays consistent with the external sense modules.
	for i, pin := range slotPins {
		line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request slot %d pin %d: %w", i, pin, err)
		}
		r.slots[i] = line
	}

	touch, err := chip.RequestLine(touchPin, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request touch pin %d: %w", touchPin, err)
	}
	r.touch = touch

	return r, nil
}

// Read returns the logical states of all lines.
// Slot lines are inverted: raw active (1) = absent, raw inactive (0) = present.
// The touch line is active high.
func (r *RealReader) Read() (Sample, error) {
	var s Sample
	for i, line := range r.slots {
		raw, err := line.Value()
		if err != nil {
			return Sample{}, fmt.Errorf("read slot %d: %w", i, err)
		}
		s.Slots[i] = raw == 0
	}

	raw, err := r.touch.Value()
	if err != nil {
		return Sample{}, fmt.Errorf("read touch: %w", err)
	}
	s.Touch = raw == 1

	return s, nil
}

// Close releases GPIO resources. Lines are reconfigured to input with
// pull-down (the Pi boot default) before closing so external modules do not
// see unexpected levels across a restart.
func (r *RealReader) Close() error {
	var errs []error

	closeLine := func(name string, line *gpiocdev.Line) {
		if line == nil {
			return
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}

	for i, line := range r.slots {
		closeLine(fmt.Sprintf("slot %d", i), line)
	}
	closeLine("touch", r.touch)

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
